package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"luckydraw/internal/store"
)

// DefaultSessionTTL is the sliding lifetime of an admin session.
const DefaultSessionTTL = 2 * time.Hour

// SessionService issues and validates admin session tokens.
// Every successful validation pushes the expiry forward by the full TTL.
type SessionService struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionService creates a SessionService. A non-positive ttl selects DefaultSessionTTL.
func NewSessionService(s store.Store, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{store: s, ttl: ttl, now: time.Now}
}

// TTL returns the sliding session lifetime.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// Create stores a new random token and returns it with its expiry.
func (s *SessionService) Create(ctx context.Context) (string, time.Time, error) {
	token := uuid.NewString()
	expiresAt := s.now().Add(s.ttl)
	if err := setJSON(ctx, s.store, sessionKey(token), expiresAt.UnixMilli(), s.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateAndRefresh reports whether token names a live session and, if so,
// returns its renewed expiry. Store failures count as unauthenticated.
func (s *SessionService) ValidateAndRefresh(ctx context.Context, token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	key := sessionKey(token)

	var expiresAtMs int64
	if _, err := getJSON(ctx, s.store, key, &expiresAtMs); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warningf("session lookup failed: %v", err)
		}
		return time.Time{}, false
	}

	now := s.now()
	if now.UnixMilli() > expiresAtMs {
		if err := s.store.Delete(ctx, key); err != nil {
			logger.Warningf("failed to delete expired session: %v", err)
		}
		return time.Time{}, false
	}

	renewed := now.Add(s.ttl)
	if err := setJSON(ctx, s.store, key, renewed.UnixMilli(), s.ttl); err != nil {
		logger.Warningf("session refresh failed: %v", err)
		return time.Time{}, false
	}
	return renewed, true
}

// Destroy deletes the session. Unknown tokens are not an error.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
