// Package calendar keeps a process-wide "today in Doha" snapshot fresh for
// session instruction building.
package calendar

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

const zoneName = "Asia/Qatar"

// Snapshot is the date context injected into agent instructions. It is an
// immutable value; readers always copy.
type Snapshot struct {
	DisplayDate string
	ISODate     string
}

// Clock owns the snapshot cell. One producer goroutine replaces the whole
// value on a fixed interval; any number of readers take copies. No locking
// is needed because updates are whole-value swaps and brief staleness is
// acceptable.
type Clock struct {
	now  func() time.Time
	cell atomic.Value
}

// New hot-starts the snapshot so no call can observe an empty date. When the
// timezone database lookup fails the snapshot falls back to UTC.
func New(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	c := &Clock{now: now}
	snap, err := c.compute()
	if err != nil {
		log.Printf("calendar hot-start failed, falling back to UTC: %v", err)
		snap = c.computeUTC()
	}
	c.cell.Store(snap)
	return c
}

// Today returns the current snapshot by value.
func (c *Clock) Today() Snapshot {
	snap, _ := c.cell.Load().(Snapshot)
	return snap
}

// Run refreshes the snapshot until ctx is cancelled. A failed refresh is
// logged and retried on the next tick; the loop never exits on error.
func (c *Clock) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := c.compute()
			if err != nil {
				log.Printf("calendar refresh failed: %v", err)
				continue
			}
			c.cell.Store(snap)
			log.Printf("doha context updated: %s", snap.ISODate)
		}
	}
}

func (c *Clock) compute() (Snapshot, error) {
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotAt(c.now().In(loc)), nil
}

func (c *Clock) computeUTC() Snapshot {
	return snapshotAt(c.now().UTC())
}

func snapshotAt(t time.Time) Snapshot {
	return Snapshot{
		DisplayDate: t.Format("Monday, January 2, 2006"),
		ISODate:     t.Format("2006-01-02"),
	}
}
