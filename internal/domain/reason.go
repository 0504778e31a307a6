package domain

// RefreshReason: почему запущено обновление вкладки.
type RefreshReason string

const (
	ReasonManual          RefreshReason = "manual"
	ReasonTabChange       RefreshReason = "tab-change"
	ReasonSessionRestored RefreshReason = "session-restored"
	ReasonAutoRefresh     RefreshReason = "auto-refresh"
	ReasonHashChange      RefreshReason = "hash-change"
	ReasonInvalidation    RefreshReason = "invalidation"
	ReasonMount           RefreshReason = "mount"
)

// IsBackground: фоновые обновления не показывают индикатор загрузки и дедуплицируются.
func (r RefreshReason) IsBackground() bool {
	return r == ReasonAutoRefresh
}

// PollingReason: причины пропуска и возобновления поллинга.
type PollingReason string

const (
	SkipNotMounted      PollingReason = "not-mounted"
	SkipUnauthenticated PollingReason = "unauthenticated"
	SkipHidden          PollingReason = "hidden"
	SkipDisabled        PollingReason = "disabled"

	ResumeVisibility       PollingReason = "visibility-resume"
	ResumeTabChange        PollingReason = "tab-change"
	ResumeSessionRestored  PollingReason = "session-restored"
	ResumeConditionRecheck PollingReason = "condition-recheck"
	ResumeCycle            PollingReason = "cycle"
)
