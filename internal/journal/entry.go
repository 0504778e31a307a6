package journal

import "time"

// Entry: запись журнала обновлений вкладок.
type Entry struct {
	ID       string    `json:"id"`
	Tab      string    `json:"tab"`
	Reason   string    `json:"reason"`
	Outcome  string    `json:"outcome"` // success, cancelled, failed, timeout
	Error    string    `json:"error,omitempty"`
	FetchMs  float64   `json:"fetch_ms"`
	RenderMs float64   `json:"render_ms"`
	At       time.Time `json:"at"`
}
