package services

import (
	"context"
	"time"

	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/store"
)

// LotteryService ties the registry, the activity state and the rounds together
// for the participant-facing operations.
type LotteryService struct {
	store        store.Store
	Participants *ParticipantService
	Activity     *ActivityService
	Rounds       *RoundService
}

// NewLotteryService creates a LotteryService over s.
func NewLotteryService(s store.Store, roundTTL time.Duration) *LotteryService {
	return &LotteryService{
		store:        s,
		Participants: NewParticipantService(s),
		Activity:     NewActivityService(s),
		Rounds:       NewRoundService(s, roundTTL),
	}
}

// DrawRequest identifies the drawing client and its chosen face.
type DrawRequest struct {
	ClientID  string
	CookiePID *int
	Choice    int
}

// Draw resolves the participant (pid cookie first, then client id, creating a
// participant for an unknown client id) and performs its single draw.
func (s *LotteryService) Draw(ctx context.Context, req DrawRequest) (*models.DrawResult, error) {
	if !s.Activity.IsOpen(ctx) {
		return nil, ErrActivityNotOpen
	}

	var participant *models.Participant
	if req.CookiePID != nil {
		participant = s.Participants.FindByPID(ctx, *req.CookiePID)
	}
	if participant == nil && req.ClientID != "" {
		p, err := s.Participants.Join(ctx, req.ClientID, nil)
		if err != nil {
			return nil, err
		}
		participant = p
	}
	if participant == nil {
		return nil, ErrNoPID
	}

	cfg := s.Activity.GetConfig(ctx)
	return s.Participants.Draw(ctx, participant.PID, req.Choice, cfg.RedCountMode)
}

// Deal deals a round of size faces under the current config.
func (s *LotteryService) Deal(ctx context.Context, size int) (string, []models.Face, error) {
	if !s.Activity.IsOpen(ctx) {
		return "", nil, ErrActivityNotOpen
	}
	cfg := s.Activity.GetConfig(ctx)
	return s.Rounds.Deal(ctx, cfg.RedCountMode, size)
}

// Stats counts participants, drawn participants and winners.
func Stats(participants []*models.Participant) models.Stats {
	stats := models.Stats{TotalParticipants: len(participants)}
	for _, p := range participants {
		if p.Participated {
			stats.Participated++
		}
		if p.Won() {
			stats.Winners++
		}
	}
	return stats
}

// Status returns the activity state, the config and the participant stats.
func (s *LotteryService) Status(ctx context.Context) (models.ActivityState, models.ActivityConfig, models.Stats, error) {
	state := s.Activity.GetState(ctx)
	cfg := s.Activity.GetConfig(ctx)
	participants, err := s.Participants.List(ctx)
	if err != nil {
		return state, cfg, models.Stats{}, err
	}
	return state, cfg, Stats(participants), nil
}

// CleanUpExpired drops expired keys from backends that do not expire them
// on their own. It is run periodically by the janitor.
func (s *LotteryService) CleanUpExpired(ctx context.Context) {
	purger, ok := s.store.(store.Purger)
	if !ok {
		return
	}
	removed, err := purger.PurgeExpired(ctx)
	if err != nil {
		logger.Errorf("cleanup of expired keys failed: %v", err)
		return
	}
	if removed > 0 {
		logger.Infof("removed %d expired keys", removed)
	}
}
