package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/adminapi"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance сдвигает время и синхронно выполняет созревшие таймеры.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Pending: число активных таймеров.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fetchFunc func(ctx context.Context, tab domain.Tab, call int32) (adminapi.TabResult, error)

type fakeFetcher struct {
	calls   atomic.Int32
	started chan domain.Tab
	fn      fetchFunc
}

func newFakeFetcher(fn fetchFunc) *fakeFetcher {
	return &fakeFetcher{started: make(chan domain.Tab, 16), fn: fn}
}

func (f *fakeFetcher) FetchTab(ctx context.Context, tab domain.Tab) (adminapi.TabResult, error) {
	n := f.calls.Add(1)
	f.started <- tab
	return f.fn(ctx, tab, n)
}

type recordingSink struct {
	mu      sync.Mutex
	reports []RefreshReport
}

func (s *recordingSink) Record(r RefreshReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

func (s *recordingSink) outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Outcome)
	}
	return out
}

type refreshCall struct {
	tab    domain.Tab
	reason domain.RefreshReason
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []refreshCall
	err   error
}

func (f *fakeRefresher) RefreshTab(_ context.Context, tab domain.Tab, reason domain.RefreshReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, refreshCall{tab: tab, reason: reason})
	return f.err
}

func (f *fakeRefresher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func noFrame() FrameWaiter {
	return FrameFunc(func(ctx context.Context) error { return nil })
}
