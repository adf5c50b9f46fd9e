package models

// Participant represents a visitor who joined the activity.
// Win and DrawAt are set together with Participated and cleared together on reset.
type Participant struct {
	PID          int    `json:"pid"`
	ClientID     string `json:"clientId,omitempty"`
	Participated bool   `json:"participated"`
	Win          *bool  `json:"win,omitempty"`
	JoinedAt     int64  `json:"joinedAt"`         // ms since epoch
	DrawAt       *int64 `json:"drawAt,omitempty"` // ms since epoch
}

// Won reports whether the participant has drawn a winning face.
func (p *Participant) Won() bool {
	return p.Win != nil && *p.Win
}

// ActivityState is the lifecycle state of the activity. Only StateOpen permits draws.
type ActivityState string

const (
	StateWaiting ActivityState = "waiting"
	StateOpen    ActivityState = "open"
	StateClosed  ActivityState = "closed"
)

// Valid reports whether s is one of the three known states.
func (s ActivityState) Valid() bool {
	switch s {
	case StateWaiting, StateOpen, StateClosed:
		return true
	}
	return false
}

// ActivityConfig selects how many faces of a deck are winning ("red") faces.
type ActivityConfig struct {
	RedCountMode int `json:"redCountMode"` // 0|1|2|3
}

// Face is a single card face in a dealt deck.
type Face string

const (
	FaceWin   Face = "win"
	FaceBlank Face = "blank"
)

// Round is a single-use dealt arrangement, redeemed at most once.
type Round struct {
	Faces     []Face `json:"faces"`
	CreatedAt int64  `json:"createdAt"`
}

// Stats summarizes participants for the public status endpoint.
type Stats struct {
	TotalParticipants int `json:"totalParticipants"`
	Participated      int `json:"participated"`
	Winners           int `json:"winners"`
}

// DrawResult is the outcome of a participant draw.
type DrawResult struct {
	PID    int    `json:"pid"`
	Win    bool   `json:"win"`
	Choice int    `json:"choice"`
	Faces  []Face `json:"faces"`
}
