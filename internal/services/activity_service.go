package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/store"
)

// DefaultRedCountMode applies until an admin stores a config.
const DefaultRedCountMode = 1

// ActivityService holds the activity lifecycle state and the draw config.
// Any state may follow any other; only StateOpen permits draws.
type ActivityService struct {
	store store.Store
}

// NewActivityService creates an ActivityService.
func NewActivityService(s store.Store) *ActivityService {
	return &ActivityService{store: s}
}

// GetState returns the stored state, or StateWaiting when none can be read.
func (a *ActivityService) GetState(ctx context.Context) models.ActivityState {
	var state models.ActivityState
	if _, err := getJSON(ctx, a.store, activityStateKey, &state); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warningf("activity state lookup failed: %v", err)
		}
		return models.StateWaiting
	}
	if !state.Valid() {
		return models.StateWaiting
	}
	return state
}

// SetState stores state and returns the previous one.
func (a *ActivityService) SetState(ctx context.Context, state models.ActivityState) (models.ActivityState, error) {
	if !state.Valid() {
		return "", ErrInvalidState
	}
	prev := a.GetState(ctx)
	if err := setJSON(ctx, a.store, activityStateKey, state, 0); err != nil {
		return prev, fmt.Errorf("set activity state: %w", err)
	}
	logger.Infof("activity state: %s -> %s", prev, state)
	return prev, nil
}

// IsOpen reports whether draws are currently allowed.
func (a *ActivityService) IsOpen(ctx context.Context) bool {
	return a.GetState(ctx) == models.StateOpen
}

// GetConfig returns the stored config, or the default when none can be read.
func (a *ActivityService) GetConfig(ctx context.Context) models.ActivityConfig {
	cfg := models.ActivityConfig{RedCountMode: DefaultRedCountMode}
	if _, err := getJSON(ctx, a.store, activityConfigKey, &cfg); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warningf("activity config lookup failed: %v", err)
		}
		return models.ActivityConfig{RedCountMode: DefaultRedCountMode}
	}
	if !ValidRedCountMode(cfg.RedCountMode) {
		return models.ActivityConfig{RedCountMode: DefaultRedCountMode}
	}
	return cfg
}

// SetConfig stores cfg and returns the previous config.
func (a *ActivityService) SetConfig(ctx context.Context, cfg models.ActivityConfig) (models.ActivityConfig, error) {
	if !ValidRedCountMode(cfg.RedCountMode) {
		return models.ActivityConfig{}, ErrInvalidConfig
	}
	prev := a.GetConfig(ctx)
	if err := setJSON(ctx, a.store, activityConfigKey, cfg, 0); err != nil {
		return prev, fmt.Errorf("set activity config: %w", err)
	}
	logger.Infof("redCountMode: %d -> %d", prev.RedCountMode, cfg.RedCountMode)
	return prev, nil
}
