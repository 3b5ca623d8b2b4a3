// Package ratewindow implements a time-windowed counter with a
// bonus-credit override. Both the roll budget (10 per hour) and the claim
// budget (1 per 2 hours) are instances of the same window; bonus credits
// are a secondary, non-expiring allotment consulted only after the primary
// window is exhausted.
package ratewindow

import (
	"errors"
	"time"
)

// ErrNoBonusAvailable is returned by ConsumeBonus when no credits remain.
var ErrNoBonusAvailable = errors.New("ratewindow: no bonus credits available")

// Window is a fixed limit over a rolling duration.
type Window struct {
	Limit    int
	Duration time.Duration
}

// State is the persisted per-account window state. A nil ResetAt means the
// window has never been opened. The zero value is a fresh, unused window.
type State struct {
	Count   int
	ResetAt *time.Time
	Bonus   int
}

// Availability is the result of Check.
type Availability struct {
	Allowed    bool       `json:"allowed"`
	Remaining  int        `json:"remaining"`
	ResetAt    *time.Time `json:"reset_at,omitempty"`
	UsingBonus bool       `json:"using_bonus,omitempty"`
}

// fresh reports whether the stored window is stale and would reset lazily.
func (w Window) fresh(s State, now time.Time) bool {
	return s.ResetAt == nil || now.After(*s.ResetAt)
}

// Check reports whether one unit may be consumed at now. The stale-window
// test runs before the bonus test, so an expired window always re-opens
// primary capacity first. Check never mutates state.
func (w Window) Check(s State, now time.Time) Availability {
	if w.fresh(s, now) {
		return Availability{Allowed: true, Remaining: w.Limit}
	}
	if s.Count < w.Limit {
		return Availability{Allowed: true, Remaining: w.Limit - s.Count, ResetAt: s.ResetAt}
	}
	if s.Bonus > 0 {
		return Availability{Allowed: true, Remaining: 0, ResetAt: s.ResetAt, UsingBonus: true}
	}
	return Availability{Allowed: false, Remaining: 0, ResetAt: s.ResetAt}
}

// Consume spends one unit of primary capacity and returns the new state.
// A stale window is reset first: count restarts at zero and a fresh
// deadline of now + Duration is set. Callers use Consume only when Check
// reported UsingBonus == false.
func (w Window) Consume(s State, now time.Time) State {
	if w.fresh(s, now) {
		resetAt := now.Add(w.Duration)
		s.Count = 0
		s.ResetAt = &resetAt
	}
	s.Count++
	return s
}

// ConsumeBonus spends one bonus credit, leaving Count and ResetAt
// untouched.
func (w Window) ConsumeBonus(s State) (State, error) {
	if s.Bonus <= 0 {
		return s, ErrNoBonusAvailable
	}
	s.Bonus--
	return s, nil
}

// GrantBonus adds n bonus credits. n must be positive.
func (w Window) GrantBonus(s State, n int) State {
	if n > 0 {
		s.Bonus += n
	}
	return s
}
