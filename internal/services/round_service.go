package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"luckydraw/internal/models"
	"luckydraw/internal/store"
)

// DefaultRoundTTL bounds how long a dealt round can wait for its pick.
const DefaultRoundTTL = time.Hour

// RoundService deals single-use rounds and redeems them at most once.
type RoundService struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewRoundService creates a RoundService. A non-positive ttl selects DefaultRoundTTL.
func NewRoundService(s store.Store, ttl time.Duration) *RoundService {
	if ttl <= 0 {
		ttl = DefaultRoundTTL
	}
	return &RoundService{store: s, ttl: ttl, now: time.Now}
}

// Deal stores a fresh arrangement of size faces under a new round id.
func (r *RoundService) Deal(ctx context.Context, redCountMode, size int) (string, []models.Face, error) {
	faces, err := GenerateFaces(redCountMode, size)
	if err != nil {
		return "", nil, err
	}
	roundID := uuid.NewString()
	round := models.Round{Faces: faces, CreatedAt: r.now().UnixMilli()}
	if err := setJSON(ctx, r.store, roundKey(roundID), round, r.ttl); err != nil {
		return "", nil, fmt.Errorf("deal round: %w", err)
	}
	logger.Infof("dealt round %s: %s redCountMode=%d", roundID, joinFaces(faces), redCountMode)
	return roundID, faces, nil
}

// Pick redeems roundID and reveals face index. An index outside the deck
// reveals a blank face. A round can be picked once.
func (r *RoundService) Pick(ctx context.Context, roundID string, index int) (models.Face, []models.Face, error) {
	if roundID == "" {
		return "", nil, ErrRoundNotFound
	}
	raw, err := r.store.Take(ctx, roundKey(roundID))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrRoundNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("pick round: %w", err)
	}
	var round models.Round
	if err := json.Unmarshal(raw, &round); err != nil {
		return "", nil, fmt.Errorf("pick round: %w", err)
	}

	face := models.FaceBlank
	if index >= 0 && index < len(round.Faces) {
		face = round.Faces[index]
	}
	logger.Infof("picked round %s index %d: %s", roundID, index, face)
	return face, round.Faces, nil
}
