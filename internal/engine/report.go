package engine

import (
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
)

// RefreshReport: итог одной попытки обновления (для журнала).
type RefreshReport struct {
	Tab      domain.Tab
	Reason   domain.RefreshReason
	Outcome  Outcome
	Error    string
	FetchMs  float64
	RenderMs float64
	At       time.Time
}

// ReportSink получает итоги попыток. Вызов не должен блокировать.
type ReportSink interface {
	Record(r RefreshReport)
}
