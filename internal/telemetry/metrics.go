package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сетевое время обновления вкладки
	FetchLatency *prometheus.HistogramVec

	// Render: время до следующего кадра после записи в стор
	RenderTiming *prometheus.HistogramVec

	// Outcomes: success / cancelled / failed / timeout
	RefreshOutcomes *prometheus.CounterVec

	// Polling: пропуски и возобновления по причинам
	PollingSkips   *prometheus.CounterVec
	PollingResumes *prometheus.CounterVec

	// Текущий интервал поллинга активной вкладки
	PollingInterval *prometheus.GaugeVec

	// Saturation: состояние Circuit Breaker админ-API (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Journal: заполненность буфера журнала обновлений (backpressure)
	JournalBufferFill prometheus.Gauge

	// Signals: внешние сигналы инвалидации по областям
	InvalidationSignals *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - без регистратора метрики пишутся в локальный реестр, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	buckets := []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	return &Metrics{
		FetchLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shuma_dashboard_fetch_latency_ms",
			Help:    "Wall-clock latency of tab refresh fetches in milliseconds.",
			Buckets: buckets,
		}, []string{"tab", "reason"}),

		RenderTiming: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shuma_dashboard_render_timing_ms",
			Help:    "Time from store commit to the next frame in milliseconds.",
			Buckets: buckets,
		}, []string{"tab"}),

		RefreshOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_dashboard_refresh_total",
			Help: "Tab refresh attempts by outcome.",
		}, []string{"tab", "outcome"}),

		PollingSkips: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_dashboard_polling_skips_total",
			Help: "Polling cycles skipped by reason.",
		}, []string{"reason"}),

		PollingResumes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_dashboard_polling_resumes_total",
			Help: "Polling resumptions by reason.",
		}, []string{"reason"}),

		PollingInterval: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "shuma_dashboard_polling_interval_ms",
			Help: "Effective polling interval of the active tab.",
		}, []string{"tab"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "shuma_dashboard_circuit_breaker_state",
			Help: "Admin API circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"breaker"}),

		JournalBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shuma_dashboard_journal_buffer_utilization",
			Help: "Current number of entries in the refresh journal buffer.",
		}),

		InvalidationSignals: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_dashboard_invalidation_signals_total",
			Help: "External invalidation signals received by scope.",
		}, []string{"scope"}),
	}
}
