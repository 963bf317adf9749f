package traffic

import (
	"sync"
	"time"
)

// Outcome classifies how a request ended.
type Outcome int

const (
	// Success is a 2xx answer.
	Success Outcome = iota
	// ClientError is a rejected request or a terminal provider answer (400). It never degrades health.
	ClientError
	// ServerError is a failure on our side or upstream (5xx).
	ServerError
	// Denied is a rate-limit rejection (429).
	Denied
)

const retention = 5 * time.Minute

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker keeps request outcomes for a sliding window. The zero value is not usable;
// create one with New.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{now: time.Now}
}

// Record appends an outcome stamped with the current time and drops entries older than the
// retention period.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, outcome: o})
	t.pruneLocked(now)
}

// Counts returns the number of each outcome within window.
func (t *Tracker) Counts(window time.Duration) map[Outcome]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	out := make(map[Outcome]int, 4)
	for _, e := range t.events {
		if !e.at.Before(cutoff) {
			out[e.outcome]++
		}
	}
	return out
}

// ErrorRate returns (serverErrors, total) within window, where total counts successes, client
// errors and server errors. Denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (serverErrors, total int) {
	c := t.Counts(window)
	serverErrors = c[ServerError]
	return serverErrors, c[Success] + c[ClientError] + serverErrors
}

// Degraded reports whether the server error percentage within window reaches thresholdPct.
// An empty window is never degraded.
func (t *Tracker) Degraded(window time.Duration, thresholdPct int) bool {
	if window <= 0 || thresholdPct <= 0 {
		return false
	}
	errs, total := t.ErrorRate(window)
	if total == 0 {
		return false
	}
	return errs*100 >= thresholdPct*total
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

// pruneLocked drops events older than retention. Events are appended in time order.
// Must be called with mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
