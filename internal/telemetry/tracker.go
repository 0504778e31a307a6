package telemetry

import (
	"sync"
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

// RefreshSample: замер одного успешного обновления вкладки.
type RefreshSample struct {
	Tab            domain.Tab
	Reason         domain.RefreshReason
	FetchLatencyMs float64
	RenderTimingMs float64
}

type RefreshTelemetry struct {
	FetchLatencyMs Metric               `json:"fetchLatencyMs"`
	RenderTimingMs Metric               `json:"renderTimingMs"`
	LastTab        domain.Tab           `json:"lastTab,omitempty"`
	LastReason     domain.RefreshReason `json:"lastReason,omitempty"`
}

type PollingTelemetry struct {
	Skips            uint64               `json:"skips"`
	Resumes          uint64               `json:"resumes"`
	LastSkipReason   domain.PollingReason `json:"lastSkipReason"`
	LastSkipAt       string               `json:"lastSkipAt"`
	LastResumeReason domain.PollingReason `json:"lastResumeReason"`
	LastResumeAt     string               `json:"lastResumeAt"`
	ActiveTab        domain.Tab           `json:"activeTab"`
	IntervalMs       int64                `json:"intervalMs"`
}

// RuntimeTelemetry: наблюдаемые метрики рантайма; отдельно от DashboardState и не рендерится часто.
type RuntimeTelemetry struct {
	Refresh RefreshTelemetry `json:"refresh"`
	Polling PollingTelemetry `json:"polling"`
}

// Tracker только наблюдает: ни один метод не возвращает ошибку и не влияет на планирование.
type Tracker struct {
	mu      sync.Mutex
	state   RuntimeTelemetry
	metrics *Metrics
	now     func() time.Time
}

// NewTracker; metrics может быть nil: тогда экспорт в Prometheus не ведется.
func NewTracker(windowSize int, metrics *Metrics) *Tracker {
	return &Tracker{
		state: RuntimeTelemetry{
			Refresh: RefreshTelemetry{
				FetchLatencyMs: NewMetric(windowSize),
				RenderTimingMs: NewMetric(windowSize),
			},
		},
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (t *Tracker) RecordRefreshMetrics(s RefreshSample) {
	t.mu.Lock()
	t.state.Refresh.FetchLatencyMs = UpdateMetric(t.state.Refresh.FetchLatencyMs, s.FetchLatencyMs)
	t.state.Refresh.RenderTimingMs = UpdateMetric(t.state.Refresh.RenderTimingMs, s.RenderTimingMs)
	t.state.Refresh.LastTab = s.Tab
	t.state.Refresh.LastReason = s.Reason
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.FetchLatency.WithLabelValues(string(s.Tab), string(s.Reason)).Observe(sanitize(s.FetchLatencyMs))
		t.metrics.RenderTiming.WithLabelValues(string(s.Tab)).Observe(sanitize(s.RenderTimingMs))
	}
}

// RecordRefreshOutcome ведет только счетчик Prometheus; скользящие окна не трогает.
func (t *Tracker) RecordRefreshOutcome(tab domain.Tab, outcome string) {
	if t.metrics != nil {
		t.metrics.RefreshOutcomes.WithLabelValues(string(tab), outcome).Inc()
	}
}

func (t *Tracker) RecordPollingSkip(reason domain.PollingReason, tab domain.Tab, interval time.Duration) {
	t.mu.Lock()
	p := &t.state.Polling
	p.Skips++
	p.LastSkipReason = reason
	p.LastSkipAt = t.now().Format(time.RFC3339Nano)
	p.ActiveTab = tab
	p.IntervalMs = interval.Milliseconds()
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.PollingSkips.WithLabelValues(string(reason)).Inc()
	}
}

func (t *Tracker) RecordPollingResume(reason domain.PollingReason, tab domain.Tab, interval time.Duration) {
	t.mu.Lock()
	p := &t.state.Polling
	p.Resumes++
	p.LastResumeReason = reason
	p.LastResumeAt = t.now().Format(time.RFC3339Nano)
	p.ActiveTab = tab
	p.IntervalMs = interval.Milliseconds()
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.PollingResumes.WithLabelValues(string(reason)).Inc()
	}
}

// PublishPollingContext фиксирует активную вкладку и интервал независимо от того, взведен ли таймер.
func (t *Tracker) PublishPollingContext(tab domain.Tab, interval time.Duration) {
	t.mu.Lock()
	t.state.Polling.ActiveTab = tab
	t.state.Polling.IntervalMs = interval.Milliseconds()
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.PollingInterval.WithLabelValues(string(tab)).Set(float64(interval.Milliseconds()))
	}
}

// Snapshot возвращает глубокую копию (окна копируются).
func (t *Tracker) Snapshot() RuntimeTelemetry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.state
	out.Refresh.FetchLatencyMs = t.state.Refresh.FetchLatencyMs.clone()
	out.Refresh.RenderTimingMs = t.state.Refresh.RenderTimingMs.clone()
	return out
}
