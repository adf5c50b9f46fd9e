package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/store"
)

// PIDSpace is the number of distinct participant ids; the counter wraps after MaxPID.
const (
	PIDSpace = 1001
	MaxPID   = PIDSpace - 1
)

// ParticipantService assigns participant ids, maps client identities to
// participants and enforces at most one draw per participant.
type ParticipantService struct {
	store store.Store
	now   func() time.Time
}

// NewParticipantService creates a ParticipantService.
func NewParticipantService(s store.Store) *ParticipantService {
	return &ParticipantService{store: s, now: time.Now}
}

// NextPID returns the current counter value modulo PIDSpace and advances the counter.
func (s *ParticipantService) NextPID(ctx context.Context) (int, error) {
	n, err := s.store.Incr(ctx, nextPIDKey)
	if err != nil {
		return 0, fmt.Errorf("next pid: %w", err)
	}
	return int((n - 1) % PIDSpace), nil
}

// load returns the participant stored under pid together with the raw bytes read.
// A missing or unreadable record yields a nil participant.
func (s *ParticipantService) load(ctx context.Context, pid int) (*models.Participant, []byte) {
	var p models.Participant
	raw, err := getJSON(ctx, s.store, participantKey(pid), &p)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warningf("participant %d lookup failed: %v", pid, err)
		}
		return nil, nil
	}
	return &p, raw
}

// FindByPID returns the participant with pid, or nil.
func (s *ParticipantService) FindByPID(ctx context.Context, pid int) *models.Participant {
	p, _ := s.load(ctx, pid)
	return p
}

// FindByClientID returns the participant associated with clientID, or nil.
func (s *ParticipantService) FindByClientID(ctx context.Context, clientID string) *models.Participant {
	if clientID == "" {
		return nil
	}
	var pid int
	if _, err := getJSON(ctx, s.store, clientIDKey(clientID), &pid); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warningf("client id lookup failed: %v", err)
		}
		return nil
	}
	return s.FindByPID(ctx, pid)
}

// Join returns the participant for clientID, falling back to the participant
// remembered by cookiePID, and creates one when neither resolves.
// Repeated calls with the same clientID return the same participant.
func (s *ParticipantService) Join(ctx context.Context, clientID string, cookiePID *int) (*models.Participant, error) {
	if p := s.FindByClientID(ctx, clientID); p != nil {
		return p, nil
	}
	if cookiePID != nil {
		if p, raw := s.load(ctx, *cookiePID); p != nil {
			if clientID == "" || p.ClientID != "" {
				return p, nil
			}
			return s.attachClientID(ctx, p, raw, clientID)
		}
	}
	return s.create(ctx, clientID)
}

// attachClientID backfills clientID on an existing participant.
func (s *ParticipantService) attachClientID(ctx context.Context, p *models.Participant, raw []byte, clientID string) (*models.Participant, error) {
	claimed, err := s.store.SetNX(ctx, clientIDKey(clientID), pidJSON(p.PID), 0)
	if err != nil {
		return nil, fmt.Errorf("claim client id: %w", err)
	}
	if !claimed {
		if other := s.FindByClientID(ctx, clientID); other != nil {
			return other, nil
		}
		return p, nil
	}

	updated := *p
	updated.ClientID = clientID
	next, err := json.Marshal(&updated)
	if err != nil {
		return nil, err
	}
	swapped, err := s.store.CompareAndSwap(ctx, participantKey(p.PID), raw, next, 0)
	if err != nil {
		return nil, fmt.Errorf("attach client id: %w", err)
	}
	if !swapped {
		// The record changed underneath us; the mapping still points at it.
		if fresh := s.FindByPID(ctx, p.PID); fresh != nil {
			return fresh, nil
		}
	}
	return &updated, nil
}

// create allocates a fresh pid, skipping ids still held by stored participants.
func (s *ParticipantService) create(ctx context.Context, clientID string) (*models.Participant, error) {
	for attempt := 0; attempt < PIDSpace; attempt++ {
		pid, err := s.NextPID(ctx)
		if err != nil {
			return nil, err
		}
		p := &models.Participant{
			PID:      pid,
			ClientID: clientID,
			JoinedAt: s.now().UnixMilli(),
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		created, err := s.store.SetNX(ctx, participantKey(pid), raw, 0)
		if err != nil {
			return nil, fmt.Errorf("create participant: %w", err)
		}
		if !created {
			continue
		}
		if clientID == "" {
			logger.Infof("participant %d joined", pid)
			return p, nil
		}

		claimed, err := s.store.SetNX(ctx, clientIDKey(clientID), pidJSON(pid), 0)
		if err != nil {
			_ = s.store.Delete(ctx, participantKey(pid))
			return nil, fmt.Errorf("claim client id: %w", err)
		}
		if claimed {
			logger.Infof("participant %d joined with client id %s", pid, clientID)
			return p, nil
		}
		if existing := s.FindByClientID(ctx, clientID); existing != nil {
			// A concurrent join for the same client won.
			_ = s.store.Delete(ctx, participantKey(pid))
			return existing, nil
		}
		// The mapping points at a participant that no longer exists.
		if err := s.store.Set(ctx, clientIDKey(clientID), pidJSON(pid), 0); err != nil {
			return nil, fmt.Errorf("claim client id: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("create participant: all %d pids are taken", PIDSpace)
}

// Draw deals a deck for redCountMode, reveals face choice for participant pid
// and records the outcome. A participant draws at most once: the record is
// written with a compare-and-swap against the exact bytes read.
func (s *ParticipantService) Draw(ctx context.Context, pid, choice, redCountMode int) (*models.DrawResult, error) {
	p, raw := s.load(ctx, pid)
	if p == nil {
		return nil, ErrNotFound
	}
	if p.Participated {
		return nil, &AlreadyParticipatedError{PID: p.PID, Win: p.Won()}
	}
	if choice < 0 || choice >= DeckSize {
		return nil, ErrInvalidChoice
	}

	faces, err := GenerateFaces(redCountMode, DeckSize)
	if err != nil {
		return nil, err
	}
	win := faces[choice] == models.FaceWin
	drawAt := s.now().UnixMilli()

	updated := *p
	updated.Participated = true
	updated.Win = &win
	updated.DrawAt = &drawAt
	next, err := json.Marshal(&updated)
	if err != nil {
		return nil, err
	}

	swapped, err := s.store.CompareAndSwap(ctx, participantKey(pid), raw, next, 0)
	if err != nil {
		return nil, fmt.Errorf("record draw: %w", err)
	}
	if !swapped {
		if fresh := s.FindByPID(ctx, pid); fresh != nil && fresh.Participated {
			return nil, &AlreadyParticipatedError{PID: fresh.PID, Win: fresh.Won()}
		}
		return nil, ErrConcurrentUpdate
	}

	logger.Infof("participant %d drew %d from %s: win=%v redCountMode=%d",
		pid, choice, joinFaces(faces), win, redCountMode)
	return &models.DrawResult{PID: pid, Win: win, Choice: choice, Faces: faces}, nil
}

// ResetOne clears the draw of participant pid, keeping its pid, client id and
// join time. Unknown pids get an empty record; created reports that case.
func (s *ParticipantService) ResetOne(ctx context.Context, pid int) (p *models.Participant, created bool, err error) {
	if pid < 0 || pid > MaxPID {
		return nil, false, ErrInvalidPID
	}
	existing := s.FindByPID(ctx, pid)
	if existing != nil {
		p = &models.Participant{PID: pid, ClientID: existing.ClientID, JoinedAt: existing.JoinedAt}
	} else {
		p = &models.Participant{PID: pid, JoinedAt: s.now().UnixMilli()}
		created = true
	}
	if err := setJSON(ctx, s.store, participantKey(pid), p, 0); err != nil {
		return nil, false, fmt.Errorf("reset participant %d: %w", pid, err)
	}
	logger.Infof("participant %d reset (created=%v)", pid, created)
	return p, created, nil
}

// ResetAll deletes every participant, client mapping and round, and rewinds
// the pid counter so the next pid is 0.
func (s *ParticipantService) ResetAll(ctx context.Context) error {
	for _, prefix := range []string{participantPrefix, clientIDPrefix, roundPrefix} {
		keys, err := s.store.Keys(ctx, prefix)
		if err != nil {
			return fmt.Errorf("reset all: list %s: %w", prefix, err)
		}
		if err := s.store.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("reset all: delete %s: %w", prefix, err)
		}
	}
	if err := s.store.Set(ctx, nextPIDKey, []byte("0"), 0); err != nil {
		return fmt.Errorf("reset all: rewind counter: %w", err)
	}
	logger.Infof("all participants reset")
	return nil
}

// List returns every stored participant ordered by ascending pid.
func (s *ParticipantService) List(ctx context.Context) ([]*models.Participant, error) {
	keys, err := s.store.Keys(ctx, participantPrefix)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	participants := make([]*models.Participant, 0, len(keys))
	for _, key := range keys {
		var p models.Participant
		if _, err := getJSON(ctx, s.store, key, &p); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Warningf("skipping %s: %v", key, err)
			}
			continue
		}
		participants = append(participants, &p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].PID < participants[j].PID
	})
	return participants, nil
}

func pidJSON(pid int) []byte {
	raw, _ := json.Marshal(pid)
	return raw
}

func joinFaces(faces []models.Face) string {
	parts := make([]string, len(faces))
	for i, f := range faces {
		parts[i] = string(f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
