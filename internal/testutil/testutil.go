// Package testutil holds fakes shared by service tests.
package testutil

import (
	"context"
	"sync"
	"time"
)

// Transactor runs fn inline and counts how often a transaction was opened
type Transactor struct {
	mu    sync.Mutex
	Calls int
	depth int
}

func (t *Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.Calls++
	t.depth++
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.depth--
		t.mu.Unlock()
	}()
	return fn(ctx)
}

// Open reports whether fn of some WithTransaction call is still running
func (t *Transactor) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depth > 0
}

// Clock is a settable time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func Ptr[T any](v T) *T {
	return &v
}
