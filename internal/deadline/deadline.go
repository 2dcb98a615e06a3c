// Package deadline closes registration at a fixed instant.
//
// A Gate is checked once when it is built (so a server started after the
// deadline never accepts a single edit) and again on every request. Once
// closed it stays closed, even if the clock is moved back.
package deadline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// TickInterval is how often Run re-checks the clock.
const TickInterval = time.Second

// Countdown is the time left before the deadline, split for display.
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Gate latches closed once the clock passes the deadline.
type Gate struct {
	deadline time.Time
	now      func() time.Time
	closed   atomic.Bool
	log      *slog.Logger
}

// New returns a Gate for deadline and runs the initial check. A nil now
// uses time.Now; a nil logger uses slog.Default().
func New(deadline time.Time, now func() time.Time, log *slog.Logger) *Gate {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	g := &Gate{deadline: deadline, now: now, log: log}
	g.Check()
	return g
}

// Deadline returns the configured instant.
func (g *Gate) Deadline() time.Time {
	return g.deadline
}

// Check reads the clock and closes the gate if the deadline has passed.
// It reports whether the gate is closed.
func (g *Gate) Check() bool {
	if g.closed.Load() {
		return true
	}
	if g.now().After(g.deadline) {
		if g.closed.CompareAndSwap(false, true) {
			g.log.Info("registration closed",
				slog.String("deadline", g.deadline.Format(time.RFC3339)))
		}
		return true
	}
	return false
}

// Closed is Check under a friendlier name for call sites that only read.
func (g *Gate) Closed() bool {
	return g.Check()
}

// Countdown returns the time remaining, all zero once closed.
func (g *Gate) Countdown() Countdown {
	if g.Check() {
		return Countdown{}
	}
	left := g.deadline.Sub(g.now())
	if left <= 0 {
		return Countdown{}
	}

	total := int(left / time.Second)
	return Countdown{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}

// Run re-checks the clock every TickInterval until the gate closes or
// ctx is done.
func (g *Gate) Run(ctx context.Context) {
	if g.Check() {
		return
	}

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.Check() {
				return
			}
		}
	}
}
