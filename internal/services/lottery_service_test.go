package services

import (
	"context"
	"errors"
	"testing"

	"luckydraw/internal/models"
)

func TestLotteryService_Draw(t *testing.T) {
	ctx := context.Background()
	mem, _ := newTestStore(t)
	service := NewLotteryService(mem, 0)

	t.Run("Test draw while waiting", func(t *testing.T) {
		_, err := service.Draw(ctx, DrawRequest{ClientID: "client-a"})
		if !errors.Is(err, ErrActivityNotOpen) {
			t.Fatalf("Expected ErrActivityNotOpen, but got %v", err)
		}
	})

	if _, err := service.Activity.SetState(ctx, models.StateOpen); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if _, err := service.Activity.SetConfig(ctx, models.ActivityConfig{RedCountMode: 3}); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}

	t.Run("Test draw for an unjoined client", func(t *testing.T) {
		result, err := service.Draw(ctx, DrawRequest{ClientID: "client-a", Choice: 1})
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if !result.Win {
			t.Error("Expected a win with redCountMode 3")
		}
		if p := service.Participants.FindByClientID(ctx, "client-a"); p == nil || p.PID != result.PID {
			t.Errorf("Expected client-a to be registered as pid %d, but got %+v", result.PID, p)
		}
	})

	t.Run("Test second draw", func(t *testing.T) {
		_, err := service.Draw(ctx, DrawRequest{ClientID: "client-a"})
		var already *AlreadyParticipatedError
		if !errors.As(err, &already) {
			t.Fatalf("Expected AlreadyParticipatedError, but got %v", err)
		}
		if !already.Win {
			t.Error("Expected the original winning outcome")
		}
	})

	t.Run("Test cookie pid takes precedence", func(t *testing.T) {
		p, _ := service.Participants.Join(ctx, "", nil)
		result, err := service.Draw(ctx, DrawRequest{ClientID: "client-a", CookiePID: intPtr(p.PID)})
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if result.PID != p.PID {
			t.Errorf("Expected pid %d, but got %d", p.PID, result.PID)
		}
	})

	t.Run("Test draw without identity", func(t *testing.T) {
		if _, err := service.Draw(ctx, DrawRequest{}); !errors.Is(err, ErrNoPID) {
			t.Fatalf("Expected ErrNoPID, but got %v", err)
		}
		if _, err := service.Draw(ctx, DrawRequest{CookiePID: intPtr(999)}); !errors.Is(err, ErrNoPID) {
			t.Fatalf("Expected ErrNoPID for an unknown cookie pid, but got %v", err)
		}
	})

	t.Run("Test status", func(t *testing.T) {
		state, cfg, stats, err := service.Status(ctx)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if state != models.StateOpen || cfg.RedCountMode != 3 {
			t.Errorf("Expected open with mode 3, but got %q with %d", state, cfg.RedCountMode)
		}
		if stats.TotalParticipants != 2 || stats.Participated != 2 || stats.Winners != 2 {
			t.Errorf("Expected 2/2/2, but got %+v", stats)
		}
	})
}

func TestLotteryService_Deal(t *testing.T) {
	ctx := context.Background()
	mem, _ := newTestStore(t)
	service := NewLotteryService(mem, 0)

	if _, _, err := service.Deal(ctx, DeckSize); !errors.Is(err, ErrActivityNotOpen) {
		t.Fatalf("Expected ErrActivityNotOpen, but got %v", err)
	}
	_, _ = service.Activity.SetState(ctx, models.StateOpen)
	_, _ = service.Activity.SetConfig(ctx, models.ActivityConfig{RedCountMode: 2})

	_, faces, err := service.Deal(ctx, LargeDeckSize)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if got := countWins(faces); got != 2 {
		t.Errorf("Expected 2 winning faces in a 9-card deck, but got %d", got)
	}
}

func TestLotteryService_CleanUpExpired(t *testing.T) {
	ctx := context.Background()
	mem, clock := newTestStore(t)
	service := NewLotteryService(mem, 0)

	_, _ = service.Activity.SetState(ctx, models.StateOpen)
	_, _, _ = service.Deal(ctx, DeckSize)
	clock.Advance(2 * DefaultRoundTTL)

	service.CleanUpExpired(ctx)
	if removed, _ := mem.PurgeExpired(ctx); removed != 0 {
		t.Errorf("Expected the janitor to have purged the expired round, but %d remained", removed)
	}
	if state := service.Activity.GetState(ctx); state != models.StateOpen {
		t.Errorf("Expected the activity state to survive cleanup, but got %q", state)
	}
}
