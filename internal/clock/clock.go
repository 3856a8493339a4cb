// Package clock abstracts wall-clock time so the smoothing timeline can be
// driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time and periodic tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks at a fixed period.
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// Real implements Clock with the time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time   { return r.t.C }
func (r *realTicker) Stop()                 { r.t.Stop() }
func (r *realTicker) Reset(d time.Duration) { r.t.Reset(d) }

// Manual is a clock that only moves when told to. Tickers created from it
// fire during Advance, at most once per Advance call.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t without firing tickers.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d and fires due tickers.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	tickers := append([]*manualTicker(nil), m.tickers...)
	m.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

// Tickers returns the number of tickers created so far.
func (m *Manual) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{
		ch:     make(chan time.Time, 1),
		period: d,
		next:   m.now.Add(d),
	}
	m.tickers = append(m.tickers, t)
	return t
}

type manualTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = t.next.Add(d - t.period)
	t.period = d
	t.stopped = false
}

func (t *manualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.period <= 0 || now.Before(t.next) {
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.period)
	}
	// drop the tick if the reader is behind, like time.Ticker
	select {
	case t.ch <- now:
	default:
	}
}
