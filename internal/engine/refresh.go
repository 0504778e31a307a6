package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/adminapi"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"github.com/xela07ax/shuma-dashboard/internal/telemetry"
	"go.uber.org/zap"
)

// ErrRefreshTimeout: попытка не уложилась в engine.refresh_timeout.
var ErrRefreshTimeout = errors.New("refresh timed out")

// TabFetcher: загрузчик данных вкладки (adminapi.TabLoader).
type TabFetcher interface {
	FetchTab(ctx context.Context, tab domain.Tab) (adminapi.TabResult, error)
}

type RefresherOptions struct {
	// Timeout на одну попытку; 0 = без таймаута.
	Timeout time.Duration
	Frame   FrameWaiter
	Sink    ReportSink
}

// attempt: одна попытка обновления вкладки со своим токеном отмены.
type attempt struct {
	id     uint64
	reason domain.RefreshReason
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Refresher держит не более одной попытки обновления на вкладку.
// Пишет в стор только текущая попытка вкладки; вытесненная завершается молча.
type Refresher struct {
	store   *store.Store
	fetcher TabFetcher
	tracker *telemetry.Tracker
	frame   FrameWaiter
	sink    ReportSink
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	seq      uint64
	inflight map[domain.Tab]*attempt
}

func NewRefresher(st *store.Store, fetcher TabFetcher, tracker *telemetry.Tracker, opts RefresherOptions, logger *zap.Logger) *Refresher {
	frame := opts.Frame
	if frame == nil {
		frame = IntervalFrame(DefaultFrameInterval)
	}
	return &Refresher{
		store:    st,
		fetcher:  fetcher,
		tracker:  tracker,
		frame:    frame,
		sink:     opts.Sink,
		timeout:  opts.Timeout,
		logger:   logger.Named("refresher"),
		now:      time.Now,
		inflight: make(map[domain.Tab]*attempt),
	}
}

// RefreshTab обновляет вкладку. auto-refresh присоединяется к уже идущей попытке,
// любая другая причина отменяет ее и начинает новую.
// Отмена и вытеснение не являются ошибкой (nil). Ошибка загрузки уже записана в стор и возвращается для планировщика.
func (r *Refresher) RefreshTab(ctx context.Context, tab domain.Tab, reason domain.RefreshReason) error {
	tab = domain.NormalizeTab(string(tab))

	r.mu.Lock()
	if cur, ok := r.inflight[tab]; ok {
		if reason.IsBackground() {
			r.mu.Unlock()
			<-cur.done
			return cur.err
		}
		r.logger.Debug("superseding in-flight refresh",
			zap.String("tab", string(tab)),
			zap.String("previous_reason", string(cur.reason)),
			zap.String("reason", string(reason)))
		cur.cancel()
	}

	r.seq++
	attemptCtx, cancel := context.WithCancel(ctx)
	if r.timeout > 0 {
		var cancelTimeout context.CancelFunc
		attemptCtx, cancelTimeout = context.WithTimeoutCause(attemptCtx, r.timeout, ErrRefreshTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	a := &attempt{id: r.seq, reason: reason, cancel: cancel, done: make(chan struct{})}
	r.inflight[tab] = a
	r.mu.Unlock()

	a.err = r.run(attemptCtx, a, tab, reason)
	cancel()

	r.mu.Lock()
	if r.inflight[tab] == a {
		delete(r.inflight, tab)
	}
	r.mu.Unlock()
	close(a.done)

	return a.err
}

// Abort отменяет текущую попытку вкладки (если есть). Другие вкладки не затрагиваются.
func (r *Refresher) Abort(tab domain.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.inflight[tab]; ok {
		a.cancel()
	}
}

func (r *Refresher) AbortAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.inflight {
		a.cancel()
	}
}

// InFlight: есть ли незавершенная попытка для вкладки.
func (r *Refresher) InFlight(tab domain.Tab) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[tab]
	return ok
}

func (r *Refresher) isCurrent(tab domain.Tab, a *attempt) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[tab] == a
}

func (r *Refresher) run(ctx context.Context, a *attempt, tab domain.Tab, reason domain.RefreshReason) error {
	if !reason.IsBackground() {
		r.store.Dispatch(store.SetTabLoading(tab, true, loadingMessage(tab)))
	}

	started := r.now()
	res, err := r.fetcher.FetchTab(ctx, tab)
	fetchMs := sinceMs(r.now(), started)
	if err == nil && ctx.Err() != nil {
		// отмена пришла после ответа: данные уже не нужны
		err = ctx.Err()
	}
	if err != nil {
		return r.fail(ctx, a, tab, reason, err, fetchMs)
	}

	if !r.isCurrent(tab, a) {
		return nil
	}
	// снапшоты вкладки фиксируются одним переходом
	r.store.Dispatch(store.SetSnapshots(res.Snapshots))
	r.store.Dispatch(store.SetTabEmpty(tab, res.Empty))

	renderStarted := r.now()
	if err := r.frame.WaitFrame(ctx); err != nil {
		return r.fail(ctx, a, tab, reason, err, fetchMs)
	}
	renderMs := sinceMs(r.now(), renderStarted)

	if !r.isCurrent(tab, a) {
		return nil
	}
	if r.tracker != nil {
		r.tracker.RecordRefreshMetrics(telemetry.RefreshSample{
			Tab:            tab,
			Reason:         reason,
			FetchLatencyMs: fetchMs,
			RenderTimingMs: renderMs,
		})
	}
	r.store.Dispatch(store.MarkTabUpdated(tab))
	r.report(tab, reason, OutcomeSuccess, "", fetchMs, renderMs)
	return nil
}

// fail классифицирует ошибку: отмена молча, 401 без инлайн-ошибки (шлюз уже увел на логин),
// остальное: сообщение во вкладке. Снапшоты и staleness не меняются.
func (r *Refresher) fail(ctx context.Context, a *attempt, tab domain.Tab, reason domain.RefreshReason, err error, fetchMs float64) error {
	current := r.isCurrent(tab, a)

	if isCancelled(ctx, err) {
		if current {
			r.store.Dispatch(store.SetTabLoading(tab, false, ""))
			r.report(tab, reason, OutcomeCancelled, "", fetchMs, 0)
		}
		return nil
	}
	if !current {
		return nil
	}

	if errors.Is(err, domain.ErrUnauthorized) {
		r.store.Dispatch(store.SetTabLoading(tab, false, ""))
		r.report(tab, reason, OutcomeFailed, err.Error(), fetchMs, 0)
		return err
	}

	outcome := OutcomeFailed
	if errors.Is(context.Cause(ctx), ErrRefreshTimeout) {
		outcome = OutcomeTimeout
		err = ErrRefreshTimeout
	}

	msg := err.Error()
	r.logger.Warn("tab refresh failed",
		zap.String("tab", string(tab)),
		zap.String("reason", string(reason)),
		zap.Error(err))
	r.store.Dispatch(store.SetTabError(tab, msg))
	r.report(tab, reason, outcome, msg, fetchMs, 0)
	return err
}

func (r *Refresher) report(tab domain.Tab, reason domain.RefreshReason, outcome Outcome, msg string, fetchMs, renderMs float64) {
	if r.tracker != nil {
		r.tracker.RecordRefreshOutcome(tab, string(outcome))
	}
	if r.sink == nil {
		return
	}
	r.sink.Record(RefreshReport{
		Tab:      tab,
		Reason:   reason,
		Outcome:  outcome,
		Error:    msg,
		FetchMs:  fetchMs,
		RenderMs: renderMs,
		At:       r.now().UTC(),
	})
}

// isCancelled: отмена токеном попытки, а не таймаут и не сбой сервера.
func isCancelled(ctx context.Context, err error) bool {
	if errors.Is(context.Cause(ctx), ErrRefreshTimeout) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}

func loadingMessage(tab domain.Tab) string {
	return fmt.Sprintf("Loading %s...", tab)
}

func sinceMs(now, started time.Time) float64 {
	return float64(now.Sub(started).Microseconds()) / 1000
}
