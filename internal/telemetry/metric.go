package telemetry

import (
	"math"
	"sort"
)

// DefaultWindowSize: сколько последних замеров держит скользящее окно.
const DefaultWindowSize = 20

// Metric: скользящая метрика. P95/Avg/Max считаются только по текущему окну,
// TotalSamples считает все наблюдения за время жизни.
type Metric struct {
	Last         float64   `json:"last"`
	Avg          float64   `json:"avg"`
	P95          float64   `json:"p95"`
	Max          float64   `json:"max"`
	Samples      int       `json:"samples"`
	TotalSamples uint64    `json:"totalSamples"`
	WindowSize   int       `json:"windowSize"`
	Window       []float64 `json:"window"`
}

func NewMetric(windowSize int) Metric {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return Metric{WindowSize: windowSize, Window: []float64{}}
}

// UpdateMetric возвращает новую метрику с добавленным замером; входная не мутируется.
func UpdateMetric(m Metric, value float64) Metric {
	if m.WindowSize <= 0 {
		m.WindowSize = DefaultWindowSize
	}
	v := sanitize(value)

	start := 0
	if len(m.Window)+1 > m.WindowSize {
		start = len(m.Window) + 1 - m.WindowSize
	}
	window := make([]float64, 0, m.WindowSize)
	window = append(window, m.Window[start:]...)
	window = append(window, v)

	var sum, maxV float64
	for _, x := range window {
		sum += x
		if x > maxV {
			maxV = x
		}
	}

	return Metric{
		Last:         v,
		Avg:          sum / float64(len(window)),
		P95:          percentile(window, 0.95),
		Max:          maxV,
		Samples:      len(window),
		TotalSamples: m.TotalSamples + 1,
		WindowSize:   m.WindowSize,
		Window:       window,
	}
}

// percentile считает nearest-rank: элемент с рангом ceil(p*n)-1 отсортированного окна.
func percentile(window []float64, p float64) float64 {
	n := len(window)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, window)
	sort.Float64s(sorted)

	rank := int(math.Ceil(p*float64(n))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= n {
		rank = n - 1
	}
	return sorted[rank]
}

// sanitize приводит вход к конечному неотрицательному числу; мусор превращается в 0.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func (m Metric) clone() Metric {
	out := m
	out.Window = make([]float64, len(m.Window))
	copy(out.Window, m.Window)
	return out
}
