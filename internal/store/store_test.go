package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// harness adapts a backend to the shared suite. advance moves the clock
// the backend uses for expiry.
type harness struct {
	store   Store
	advance func(time.Duration)
}

// fakeClock is a settable clock for backends that take one.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
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

func runStoreSuite(t *testing.T, newHarness func(t *testing.T) harness) {
	ctx := context.Background()

	t.Run("Get on missing key returns ErrNotFound", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, but got %v", err)
		}
	})

	t.Run("Set then Get", func(t *testing.T) {
		h := newHarness(t)
		if err := h.store.Set(ctx, "k", []byte(`"alpha"`), 0); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		got, err := h.store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if string(got) != `"alpha"` {
			t.Errorf("Expected %q, but got %q", `"alpha"`, got)
		}
	})

	t.Run("TTL expires keys", func(t *testing.T) {
		h := newHarness(t)
		if err := h.store.Set(ctx, "ttl", []byte(`"x"`), time.Minute); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		h.advance(59 * time.Second)
		if _, err := h.store.Get(ctx, "ttl"); err != nil {
			t.Fatalf("Expected key to be live before expiry, but got %v", err)
		}
		h.advance(2 * time.Second)
		if _, err := h.store.Get(ctx, "ttl"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound after expiry, but got %v", err)
		}
	})

	t.Run("SetNX only writes absent keys", func(t *testing.T) {
		h := newHarness(t)
		ok, err := h.store.SetNX(ctx, "nx", []byte(`"first"`), time.Minute)
		if err != nil || !ok {
			t.Fatalf("Expected first SetNX to succeed, but got ok=%v err=%v", ok, err)
		}
		ok, err = h.store.SetNX(ctx, "nx", []byte(`"second"`), 0)
		if err != nil || ok {
			t.Fatalf("Expected second SetNX to be refused, but got ok=%v err=%v", ok, err)
		}
		got, _ := h.store.Get(ctx, "nx")
		if string(got) != `"first"` {
			t.Errorf("Expected %q, but got %q", `"first"`, got)
		}
		h.advance(2 * time.Minute)
		ok, err = h.store.SetNX(ctx, "nx", []byte(`"third"`), 0)
		if err != nil || !ok {
			t.Fatalf("Expected SetNX over an expired key to succeed, but got ok=%v err=%v", ok, err)
		}
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		h := newHarness(t)
		ok, err := h.store.CompareAndSwap(ctx, "cas", []byte(`"a"`), []byte(`"b"`), 0)
		if err != nil || ok {
			t.Fatalf("Expected swap on missing key to fail, but got ok=%v err=%v", ok, err)
		}
		_ = h.store.Set(ctx, "cas", []byte(`"a"`), 0)
		prev, _ := h.store.Get(ctx, "cas")

		ok, err = h.store.CompareAndSwap(ctx, "cas", prev, []byte(`"b"`), 0)
		if err != nil || !ok {
			t.Fatalf("Expected swap to succeed, but got ok=%v err=%v", ok, err)
		}
		ok, err = h.store.CompareAndSwap(ctx, "cas", prev, []byte(`"c"`), 0)
		if err != nil || ok {
			t.Fatalf("Expected stale swap to fail, but got ok=%v err=%v", ok, err)
		}
		got, _ := h.store.Get(ctx, "cas")
		if string(got) != `"b"` {
			t.Errorf("Expected %q, but got %q", `"b"`, got)
		}
	})

	t.Run("Take redeems once", func(t *testing.T) {
		h := newHarness(t)
		_ = h.store.Set(ctx, "round", []byte(`"faces"`), time.Hour)
		got, err := h.store.Take(ctx, "round")
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if string(got) != `"faces"` {
			t.Errorf("Expected %q, but got %q", `"faces"`, got)
		}
		if _, err := h.store.Take(ctx, "round"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound on second Take, but got %v", err)
		}
	})

	t.Run("Incr counts from zero and honours Set", func(t *testing.T) {
		h := newHarness(t)
		for want := int64(1); want <= 3; want++ {
			n, err := h.store.Incr(ctx, "counter")
			if err != nil {
				t.Fatalf("Expected no error, but got %v", err)
			}
			if n != want {
				t.Errorf("Expected %d, but got %d", want, n)
			}
		}
		_ = h.store.Set(ctx, "counter", []byte("0"), 0)
		n, err := h.store.Incr(ctx, "counter")
		if err != nil || n != 1 {
			t.Errorf("Expected 1 after reset, but got %d (err=%v)", n, err)
		}
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		h := newHarness(t)
		_ = h.store.Set(ctx, "d1", []byte(`1`), 0)
		if err := h.store.Delete(ctx, "d1", "never-existed"); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if err := h.store.Delete(ctx); err != nil {
			t.Fatalf("Expected no error for empty delete, but got %v", err)
		}
		if _, err := h.store.Get(ctx, "d1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, but got %v", err)
		}
	})

	t.Run("Keys filters by prefix", func(t *testing.T) {
		h := newHarness(t)
		_ = h.store.Set(ctx, "participant:1", []byte(`1`), 0)
		_ = h.store.Set(ctx, "participant:2", []byte(`2`), 0)
		_ = h.store.Set(ctx, "clientId:abc", []byte(`1`), 0)
		_ = h.store.Set(ctx, "participant:3", []byte(`3`), time.Second)
		h.advance(2 * time.Second)

		keys, err := h.store.Keys(ctx, "participant:")
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "participant:1" || keys[1] != "participant:2" {
			t.Errorf("Expected [participant:1 participant:2], but got %v", keys)
		}
	})
}
