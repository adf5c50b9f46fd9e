package services

import (
	"sync"
	"testing"
	"time"

	"luckydraw/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestStore returns a memory store and a clock shared by store and services.
func newTestStore(t *testing.T) (*store.Memory, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return store.NewMemory(store.WithClock(clock.Now)), clock
}

func intPtr(n int) *int { return &n }
