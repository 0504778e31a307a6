package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/shuma-dashboard/internal/adminapi"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/draft"
	"github.com/xela07ax/shuma-dashboard/internal/engine"
	"github.com/xela07ax/shuma-dashboard/internal/gateway"
	"github.com/xela07ax/shuma-dashboard/internal/infra"
	"github.com/xela07ax/shuma-dashboard/internal/route"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"github.com/xela07ax/shuma-dashboard/internal/telemetry"
	"go.uber.org/zap"
)

// Options: внешние зависимости рантайма; все поля необязательны.
type Options struct {
	Location   route.Location
	Registerer prometheus.Registerer
	// Metrics: общий набор метрик с журналом и сигналами; nil = создать на Registerer.
	Metrics   *telemetry.Metrics
	Sink      engine.ReportSink
	Frame     engine.FrameWaiter
	Clock     engine.Clock
	Transport http.RoundTripper
	// OnRedirect получает URL логина после 401 от админ-API.
	OnRedirect func(loginURL string)
	// Broadcast рассылает область инвалидации после успешной записи (другим инстансам).
	Broadcast func(scope string)
}

// Runtime собирает компоненты админки и предоставляет командный интерфейс для UI-адаптеров.
// Стор передается каждому компоненту явно; глобального состояния нет.
type Runtime struct {
	store     *store.Store
	tracker   *telemetry.Tracker
	metrics   *telemetry.Metrics
	drafts    *draft.Store
	gateway   *gateway.Gateway
	client    *adminapi.Client
	refresher *engine.Refresher
	scheduler *engine.Scheduler
	router    *route.Controller
	loc       route.Location
	logger    *zap.Logger

	onRedirect func(string)
	broadcast  func(string)

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	mounted      bool
	unbindDrafts func()
	lastRedirect string

	wg sync.WaitGroup
}

func New(cfg *infra.Config, opts Options, logger *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("runtime: config is required")
	}
	logger = logger.Named("runtime")

	st := store.New(domain.NormalizeTab(cfg.Engine.InitialTab))
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics(opts.Registerer)
	}
	tracker := telemetry.NewTracker(cfg.Telemetry.WindowSize, metrics)

	loc := opts.Location
	if loc == nil {
		loc = route.NewMemoryLocation("", "")
	}

	rt := &Runtime{
		store:      st,
		tracker:    tracker,
		metrics:    metrics,
		drafts:     draft.NewStore(logger),
		loc:        loc,
		logger:     logger,
		onRedirect: opts.OnRedirect,
		broadcast:  opts.Broadcast,
		ctx:        context.Background(),
	}

	gw, err := gateway.New(gateway.Options{
		BaseURL:        cfg.API.BaseURL,
		APIKey:         cfg.API.APIKey,
		LoginPath:      cfg.Session.LoginPath,
		Transport:      opts.Transport,
		OnUnauthorized: rt.handleUnauthorized,
		CurrentPath:    loc.Path,
	}, st, logger)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	rt.gateway = gw

	rw := adminapi.NewReliabilityWrapper("shuma-admin-api", adminapi.ReliabilityOptions{
		RateLimit:          cfg.API.RateLimit,
		RateBurst:          cfg.API.RateBurst,
		RetryCount:         cfg.API.RetryCount,
		CBMaxRequests:      cfg.API.CBMaxRequests,
		CBInterval:         cfg.API.CBInterval,
		CBTimeout:          cfg.API.CBTimeout,
		CBFailureThreshold: cfg.API.CBFailureThreshold,
		OnStateChange: func(name string, state float64) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(state)
			logger.Warn("admin api circuit breaker changed state", zap.String("breaker", name), zap.Float64("state", state))
		},
	})
	rt.client = adminapi.NewClient(gw.Client(cfg.API.Timeout), gw.BaseURL().String(), rw, logger)

	loader := adminapi.NewTabLoader(rt.client, adminapi.LoaderOptions{
		EventsHours:     cfg.Engine.EventsHours,
		MonitoringLimit: cfg.Engine.MonitoringLimit,
		CDPEventsLimit:  cfg.Engine.CDPEventsLimit,
	})

	frame := opts.Frame
	if frame == nil {
		frame = engine.IntervalFrame(cfg.Engine.FrameInterval)
	}
	rt.refresher = engine.NewRefresher(st, loader, tracker, engine.RefresherOptions{
		Timeout: cfg.Engine.RefreshTimeout,
		Frame:   frame,
		Sink:    opts.Sink,
	}, logger)

	rt.scheduler = engine.NewScheduler(st, rt.refresher, tracker, engine.SchedulerOptions{
		Interval:   cfg.Polling.IntervalFor,
		MaxBackoff: cfg.Engine.MaxBackoff,
		Clock:      opts.Clock,
	}, logger)

	rt.router = route.NewController(st, loc, rt.refresher, rt.scheduler, logger)
	return rt, nil
}

// Mount: восстановление сессии -> синхронизация с фрагментом URL -> поллинг.
func (r *Runtime) Mount(ctx context.Context) {
	r.mu.Lock()
	if r.mounted {
		r.mu.Unlock()
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mounted = true
	r.unbindDrafts = r.drafts.Bind(r.store)
	mountCtx := r.ctx
	r.mu.Unlock()

	r.scheduler.Mount(mountCtx)
	authenticated := r.gateway.RestoreSession(mountCtx)
	tab := r.router.SyncFromHash(mountCtx, route.Options{Reason: domain.ReasonMount, Force: true})

	r.logger.Info("dashboard runtime mounted",
		zap.String("tab", string(tab)),
		zap.Bool("authenticated", authenticated))
}

// Unmount отменяет все обновления, гасит таймер и ждет фоновые задачи.
func (r *Runtime) Unmount() {
	r.mu.Lock()
	if !r.mounted {
		r.mu.Unlock()
		return
	}
	r.mounted = false
	cancel := r.cancel
	unbind := r.unbindDrafts
	r.unbindDrafts = nil
	r.mu.Unlock()

	r.scheduler.Unmount()
	r.refresher.AbortAll()
	cancel()
	r.scheduler.Wait()
	r.Wait()
	if unbind != nil {
		unbind()
	}
	r.logger.Info("dashboard runtime unmounted")
}

// Wait ждет обновления, запущенные командами.
func (r *Runtime) Wait() {
	r.router.Wait()
	r.wg.Wait()
}

func (r *Runtime) Mounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounted
}

func (r *Runtime) ApplyActiveTab(raw string, opts route.Options) domain.Tab {
	return r.router.ApplyActiveTab(r.lifetime(), raw, opts)
}

// SetHash: навигация UI по фрагменту (hashchange).
func (r *Runtime) SetHash(hash string) domain.Tab {
	r.loc.SetHash(hash, false)
	return r.SyncFromHash()
}

func (r *Runtime) SyncFromHash() domain.Tab {
	return r.router.SyncFromHash(r.lifetime(), route.Options{Reason: domain.ReasonHashChange})
}

// RefreshTab выполняется в контексте жизни рантайма: отключение UI-клиента не отменяет обновление.
func (r *Runtime) RefreshTab(tab domain.Tab, reason domain.RefreshReason) error {
	if reason == "" {
		reason = domain.ReasonManual
	}
	return r.refresher.RefreshTab(r.lifetime(), tab, reason)
}

// SetVisible: видимость хост-страницы (фокус терминала, вкладка браузера).
func (r *Runtime) SetVisible(visible bool) {
	if !r.scheduler.SetVisible(visible) {
		return
	}
	if !visible {
		r.scheduler.SchedulePolling(domain.ResumeConditionRecheck)
		return
	}
	r.scheduler.SchedulePolling(domain.ResumeVisibility)
	r.refreshIfStale(domain.ReasonAutoRefresh)
}

// Logout завершает сессию и возвращает URL логина.
func (r *Runtime) Logout(ctx context.Context) string {
	r.refresher.AbortAll()
	r.gateway.Logout(ctx)
	r.scheduler.SchedulePolling(domain.ResumeConditionRecheck)
	r.logger.Info("admin session logged out")
	return r.LoginURL()
}

func (r *Runtime) RestoreSession(ctx context.Context) bool {
	if !r.gateway.RestoreSession(ctx) {
		r.scheduler.SchedulePolling(domain.ResumeConditionRecheck)
		return false
	}
	r.scheduler.SchedulePolling(domain.ResumeSessionRestored)
	r.refreshAsync(r.store.GetState().ActiveTab(), domain.ReasonSessionRestored)
	return true
}

// SaveConfig применяет секцию черновика к серверу. Ответ {config} сразу становится снапшотом config,
// подписка черновиков переустанавливает базисы.
func (r *Runtime) SaveConfig(ctx context.Context, section string, values draft.Values) (*domain.Snapshot, error) {
	patch, err := r.drafts.Patch(section, values)
	if err != nil {
		return nil, err
	}
	if r.store.GetState().Snapshot(domain.ResourceConfig) != nil && !r.drafts.Mutable(section) {
		return nil, draft.ErrReadOnly
	}
	snap, err := r.client.UpdateConfig(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("save %s config: %w", section, err)
	}
	r.store.Dispatch(store.SetSnapshot(domain.ResourceConfig, snap))
	r.invalidateAfterWrite(store.ScopeSecurityConfig)
	return snap, nil
}

// BanIP; duration округляется до секунд.
func (r *Runtime) BanIP(ctx context.Context, ip, reason string, duration time.Duration) error {
	err := r.client.Ban(ctx, adminapi.BanRequest{
		IP:       strings.TrimSpace(ip),
		Reason:   reason,
		Duration: int64(duration / time.Second),
	})
	if err != nil {
		return fmt.Errorf("ban %s: %w", ip, err)
	}
	r.invalidateAfterWrite(store.ScopeIPBans)
	return nil
}

func (r *Runtime) UnbanIP(ctx context.Context, ip string) error {
	if err := r.client.Unban(ctx, strings.TrimSpace(ip)); err != nil {
		return fmt.Errorf("unban %s: %w", ip, err)
	}
	r.invalidateAfterWrite(store.ScopeIPBans)
	return nil
}

// Invalidate помечает область устаревшей и обновляет активную вкладку, если она попала в область.
func (r *Runtime) Invalidate(scope string) {
	r.store.Dispatch(store.Invalidate(scope))
	r.refreshIfStale(domain.ReasonInvalidation)
}

func (r *Runtime) invalidateAfterWrite(scope string) {
	r.Invalidate(scope)
	if r.broadcast != nil {
		r.broadcast(scope)
	}
}

func (r *Runtime) IsDraftDirty(section string, values draft.Values) (bool, error) {
	if !r.drafts.Has(section) {
		return false, fmt.Errorf("%w: %q", draft.ErrUnknownSection, section)
	}
	return r.drafts.IsDirty(section, values), nil
}

func (r *Runtime) DraftBaseline(section string) (draft.Values, bool) {
	v := r.drafts.Get(section, nil)
	return v, v != nil
}

func (r *Runtime) State() *store.State {
	return r.store.GetState()
}

func (r *Runtime) Subscribe(fn store.Listener) func() {
	return r.store.Subscribe(fn)
}

func (r *Runtime) Telemetry() telemetry.RuntimeTelemetry {
	return r.tracker.Snapshot()
}

// LoginURL: куда уводить пользователя без сессии.
func (r *Runtime) LoginURL() string {
	return r.gateway.LoginURL(r.loc.Path())
}

// LastRedirect: URL последнего редиректа на логин после 401 (пусто, если не было).
func (r *Runtime) LastRedirect() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRedirect
}

func (r *Runtime) handleUnauthorized(loginURL string) {
	r.mu.Lock()
	r.lastRedirect = loginURL
	r.mu.Unlock()

	r.scheduler.SchedulePolling(domain.ResumeConditionRecheck)
	if r.onRedirect != nil {
		r.onRedirect(loginURL)
	}
}

func (r *Runtime) refreshIfStale(reason domain.RefreshReason) {
	s := r.store.GetState()
	tab := s.ActiveTab()
	if !s.IsStale(tab) || !s.Authenticated() || !r.Mounted() {
		return
	}
	r.refreshAsync(tab, reason)
}

func (r *Runtime) refreshAsync(tab domain.Tab, reason domain.RefreshReason) {
	ctx := r.lifetime()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.refresher.RefreshTab(ctx, tab, reason); err != nil {
			r.logger.Debug("background refresh failed", zap.String("tab", string(tab)), zap.Error(err))
		}
	}()
}

func (r *Runtime) lifetime() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}
