package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"github.com/xela07ax/shuma-dashboard/internal/telemetry"
	"go.uber.org/zap"
)

// maxUncappedInterval ограничивает бэкофф, если max_backoff не задан.
const maxUncappedInterval = time.Hour

type TabRefresher interface {
	RefreshTab(ctx context.Context, tab domain.Tab, reason domain.RefreshReason) error
}

type SchedulerOptions struct {
	// Interval: настроенный интервал вкладки; <= 0 выключает поллинг вкладки.
	Interval func(tab domain.Tab) time.Duration
	// MaxBackoff ограничивает удвоение интервала после неудачных автообновлений.
	MaxBackoff time.Duration
	Clock      Clock
}

// Scheduler: самоперевзводящийся одноразовый таймер автообновления активной вкладки.
// Медленное обновление не копит тики: следующий таймер взводится только после завершения refreshTab.
type Scheduler struct {
	store      *store.Store
	refresher  TabRefresher
	tracker    *telemetry.Tracker
	clock      Clock
	interval   func(domain.Tab) time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	mounted  bool
	visible  bool
	paused   bool
	timer    Timer
	gen      uint64
	failures map[domain.Tab]int

	// fires считает взведенные и выполняющиеся срабатывания таймера
	fires sync.WaitGroup
}

func NewScheduler(st *store.Store, refresher TabRefresher, tracker *telemetry.Tracker, opts SchedulerOptions, logger *zap.Logger) *Scheduler {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}
	interval := opts.Interval
	if interval == nil {
		interval = func(domain.Tab) time.Duration { return 0 }
	}
	return &Scheduler{
		store:      st,
		refresher:  refresher,
		tracker:    tracker,
		clock:      clock,
		interval:   interval,
		maxBackoff: opts.MaxBackoff,
		logger:     logger.Named("scheduler"),
		ctx:        context.Background(),
		visible:    true,
		failures:   make(map[domain.Tab]int),
	}
}

// Mount включает поллинг; ctx ограничивает время жизни автообновлений.
func (s *Scheduler) Mount(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.mounted = true
}

// Unmount гасит таймер; последующие SchedulePolling фиксируют пропуск not-mounted.
// Уже начавшееся автообновление не ждет: для этого Wait.
func (s *Scheduler) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = false
	s.stopLocked()
}

// Wait ждет завершения автообновления, запущенного таймером. Вызывать после Unmount.
func (s *Scheduler) Wait() {
	s.fires.Wait()
}

// SetVisible сообщает о видимости хост-страницы. Возвращает true, если значение изменилось.
func (s *Scheduler) SetVisible(visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.visible != visible
	s.visible = visible
	return changed
}

func (s *Scheduler) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *Scheduler) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Armed: взведен ли таймер.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Interval: текущий эффективный интервал вкладки с учетом бэкоффа.
func (s *Scheduler) Interval(tab domain.Tab) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveIntervalLocked(tab)
}

// SchedulePolling снимает взведенный таймер и, если условия позволяют, взводит новый.
func (s *Scheduler) SchedulePolling(reason domain.PollingReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(reason)
}

func (s *Scheduler) scheduleLocked(reason domain.PollingReason) {
	s.stopLocked()

	state := s.store.GetState()
	tab := state.ActiveTab()
	interval := s.effectiveIntervalLocked(tab)
	s.publish(tab, interval)

	if skip := s.skipReasonLocked(state, interval); skip != "" {
		s.paused = true
		if s.tracker != nil {
			s.tracker.RecordPollingSkip(skip, tab, interval)
		}
		s.logger.Debug("polling paused", zap.String("reason", string(skip)), zap.String("tab", string(tab)))
		return
	}

	if s.paused {
		s.paused = false
		if s.tracker != nil {
			s.tracker.RecordPollingResume(reason, tab, interval)
		}
		s.logger.Debug("polling resumed", zap.String("reason", string(reason)), zap.String("tab", string(tab)))
	}

	gen := s.gen
	s.fires.Add(1)
	s.timer = s.clock.AfterFunc(interval, func() {
		defer s.fires.Done()
		s.fire(gen)
	})
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	// за время ожидания условия могли измениться
	state := s.store.GetState()
	tab := state.ActiveTab()
	interval := s.effectiveIntervalLocked(tab)
	if skip := s.skipReasonLocked(state, interval); skip != "" {
		s.paused = true
		if s.tracker != nil {
			s.tracker.RecordPollingSkip(skip, tab, interval)
		}
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	err := s.refresher.RefreshTab(ctx, tab, domain.ReasonAutoRefresh)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		s.failures[tab] = 0
	case !errors.Is(err, domain.ErrUnauthorized):
		s.failures[tab]++
	}
	if gen != s.gen {
		// пока шло обновление, кто-то уже перепланировал
		return
	}
	s.scheduleLocked(domain.ResumeCycle)
}

// Stop снимает таймер без изменения условий.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	s.gen++
	if s.timer != nil {
		if s.timer.Stop() {
			s.fires.Done()
		}
		s.timer = nil
	}
}

func (s *Scheduler) skipReasonLocked(state *store.State, interval time.Duration) domain.PollingReason {
	switch {
	case !s.mounted:
		return domain.SkipNotMounted
	case !state.Authenticated():
		return domain.SkipUnauthenticated
	case !s.visible:
		return domain.SkipHidden
	case interval <= 0:
		return domain.SkipDisabled
	}
	return ""
}

// effectiveIntervalLocked удваивает интервал за каждую подряд неудачную попытку, не выше maxBackoff.
func (s *Scheduler) effectiveIntervalLocked(tab domain.Tab) time.Duration {
	base := s.interval(tab)
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < s.failures[tab]; i++ {
		if (s.maxBackoff > 0 && d >= s.maxBackoff) || d >= maxUncappedInterval {
			break
		}
		d *= 2
	}
	if s.maxBackoff > 0 && d > s.maxBackoff && base <= s.maxBackoff {
		d = s.maxBackoff
	}
	return d
}

func (s *Scheduler) publish(tab domain.Tab, interval time.Duration) {
	if s.tracker != nil {
		s.tracker.PublishPollingContext(tab, interval)
	}
}
