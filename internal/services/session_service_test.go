package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"luckydraw/internal/store/mocks"
)

func TestSessionService(t *testing.T) {
	ctx := context.Background()

	t.Run("Create then validate", func(t *testing.T) {
		mem, clock := newTestStore(t)
		svc := NewSessionService(mem, 0)
		svc.now = clock.Now

		token, expiresAt, err := svc.Create(ctx)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if token == "" {
			t.Fatal("Expected a token, but got an empty string")
		}
		if !expiresAt.Equal(clock.Now().Add(DefaultSessionTTL)) {
			t.Errorf("Expected expiry %v, but got %v", clock.Now().Add(DefaultSessionTTL), expiresAt)
		}
		if _, ok := svc.ValidateAndRefresh(ctx, token); !ok {
			t.Error("Expected a fresh session to validate")
		}
	})

	t.Run("Validation one second before expiry slides the expiry by the full TTL", func(t *testing.T) {
		mem, clock := newTestStore(t)
		svc := NewSessionService(mem, 0)
		svc.now = clock.Now

		token, expiresAt, _ := svc.Create(ctx)
		clock.Advance(DefaultSessionTTL - time.Second)

		renewed, ok := svc.ValidateAndRefresh(ctx, token)
		if !ok {
			t.Fatal("Expected the session to validate one second before expiry")
		}
		want := clock.Now().Add(DefaultSessionTTL)
		if !renewed.Equal(want) {
			t.Errorf("Expected renewed expiry %v, but got %v", want, renewed)
		}
		if !renewed.After(expiresAt) {
			t.Errorf("Expected renewed expiry after %v, but got %v", expiresAt, renewed)
		}

		// The renewal holds past the original expiry.
		clock.Advance(time.Hour)
		if _, ok := svc.ValidateAndRefresh(ctx, token); !ok {
			t.Error("Expected the renewed session to outlive the original expiry")
		}
	})

	t.Run("Validation after expiry fails", func(t *testing.T) {
		mem, clock := newTestStore(t)
		svc := NewSessionService(mem, 0)
		svc.now = clock.Now

		token, _, _ := svc.Create(ctx)
		clock.Advance(DefaultSessionTTL + time.Second)
		if _, ok := svc.ValidateAndRefresh(ctx, token); ok {
			t.Error("Expected an expired session to fail validation")
		}
	})

	t.Run("Unknown and empty tokens fail", func(t *testing.T) {
		mem, _ := newTestStore(t)
		svc := NewSessionService(mem, 0)
		if _, ok := svc.ValidateAndRefresh(ctx, "nope"); ok {
			t.Error("Expected an unknown token to fail validation")
		}
		if _, ok := svc.ValidateAndRefresh(ctx, ""); ok {
			t.Error("Expected an empty token to fail validation")
		}
	})

	t.Run("Destroy is idempotent", func(t *testing.T) {
		mem, _ := newTestStore(t)
		svc := NewSessionService(mem, 0)
		token, _, _ := svc.Create(ctx)

		if err := svc.Destroy(ctx, token); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if err := svc.Destroy(ctx, token); err != nil {
			t.Fatalf("Expected no error on second destroy, but got %v", err)
		}
		if _, ok := svc.ValidateAndRefresh(ctx, token); ok {
			t.Error("Expected a destroyed session to fail validation")
		}
	})
}

func TestSessionService_StaleEntryIsDeleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockStore(ctrl)
	clock := newFakeClock()
	svc := NewSessionService(m, 0)
	svc.now = clock.Now

	past, _ := json.Marshal(clock.Now().Add(-time.Second).UnixMilli())
	m.EXPECT().Get(gomock.Any(), "admin:session:stale").Return(past, nil)
	m.EXPECT().Delete(gomock.Any(), "admin:session:stale").Return(nil)

	if _, ok := svc.ValidateAndRefresh(context.Background(), "stale"); ok {
		t.Error("Expected a stale session to fail validation")
	}
}

func TestSessionService_FailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("Get failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := mocks.NewMockStore(ctrl)
		svc := NewSessionService(m, 0)

		m.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
		if _, ok := svc.ValidateAndRefresh(ctx, "token"); ok {
			t.Error("Expected a store failure to count as unauthenticated")
		}
	})

	t.Run("Refresh failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := mocks.NewMockStore(ctrl)
		clock := newFakeClock()
		svc := NewSessionService(m, 0)
		svc.now = clock.Now

		future, _ := json.Marshal(clock.Now().Add(time.Hour).UnixMilli())
		m.EXPECT().Get(gomock.Any(), "admin:session:token").Return(future, nil)
		m.EXPECT().Set(gomock.Any(), "admin:session:token", gomock.Any(), DefaultSessionTTL).
			Return(errors.New("read-only replica"))
		if _, ok := svc.ValidateAndRefresh(ctx, "token"); ok {
			t.Error("Expected a failed refresh to count as unauthenticated")
		}
	})
}
