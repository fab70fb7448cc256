package client

import (
	"context"
	"sync"
	"time"

	"artel/internal/models"
)

const (
	// SweepInterval is how often stale remote cursors are pruned.
	SweepInterval = 10 * time.Second
	// StaleAfter is the liveness timeout for a remote cursor.
	StaleAfter = 12 * time.Second
)

type cursorEntry struct {
	cursor models.CursorUpdate
	seenAt time.Time
}

// Cursors tracks remote cursors keyed by userID. There are no sequence
// numbers: the last arrival wins regardless of send order, and an entry
// not refreshed within StaleAfter is evicted on the next sweep.
type Cursors struct {
	entries map[string]cursorEntry
	now     func() time.Time
	mu      sync.Mutex
}

func NewCursors() *Cursors {
	return &Cursors{
		entries: make(map[string]cursorEntry),
		now:     time.Now,
	}
}

// Observe records a cursor broadcast, overwriting any previous position
// for that user.
func (c *Cursors) Observe(cu models.CursorUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cu.UserID] = cursorEntry{cursor: cu, seenAt: c.now()}
}

// Get returns the last known cursor for userID.
func (c *Cursors) Get(userID string) (models.CursorUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	return e.cursor, ok
}

// Snapshot returns all live remote cursors.
func (c *Cursors) Snapshot() []models.CursorUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CursorUpdate, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.cursor)
	}
	return out
}

// Sweep evicts entries older than StaleAfter.
func (c *Cursors) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-StaleAfter)
	for id, e := range c.entries {
		if e.seenAt.Before(cutoff) {
			delete(c.entries, id)
		}
	}
}

// Run sweeps every SweepInterval until ctx is done.
func (c *Cursors) Run(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
