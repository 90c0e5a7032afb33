package calendar

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestHotStartPopulatesSnapshot(t *testing.T) {
	fixed := time.Date(2025, time.March, 14, 23, 30, 0, 0, time.UTC)
	c := New(func() time.Time { return fixed })

	snap := c.Today()
	if snap.DisplayDate == "" || snap.ISODate == "" {
		t.Fatalf("snapshot not populated: %+v", snap)
	}
	// 23:30 UTC is already the next day in Doha (UTC+3).
	if snap.ISODate != "2025-03-15" {
		t.Fatalf("ISODate = %q, want %q", snap.ISODate, "2025-03-15")
	}
	if snap.DisplayDate != "Saturday, March 15, 2025" {
		t.Fatalf("DisplayDate = %q, want %q", snap.DisplayDate, "Saturday, March 15, 2025")
	}
}

func TestRunRefreshesSnapshot(t *testing.T) {
	var current timeCell
	current.set(time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC))
	c := New(current.get)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, 10*time.Millisecond)

	current.set(time.Date(2025, time.March, 20, 10, 0, 0, 0, time.UTC))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Today().ISODate == "2025-03-20" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("snapshot never refreshed, last = %+v", c.Today())
}

// timeCell is a tiny guarded time value for feeding the clock from tests.
type timeCell struct {
	mu sync.Mutex
	t  time.Time
}

func (a *timeCell) set(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.t = t
}

func (a *timeCell) get() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}
