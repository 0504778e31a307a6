package store

import (
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

type ActionType string

const (
	ActionSetActiveTab   ActionType = "set-active-tab"
	ActionSetSession     ActionType = "set-session"
	ActionSetSnapshot    ActionType = "set-snapshot"
	ActionSetSnapshots   ActionType = "set-snapshots"
	ActionSetTabLoading  ActionType = "set-tab-loading"
	ActionSetTabError    ActionType = "set-tab-error"
	ActionClearTabError  ActionType = "clear-tab-error"
	ActionSetTabEmpty    ActionType = "set-tab-empty"
	ActionMarkTabUpdated ActionType = "mark-tab-updated"
	ActionInvalidate     ActionType = "invalidate"
)

// Action: событие редьюсера. Время фиксируется конструктором, сам Reduce часы не читает.
type Action struct {
	Type      ActionType
	Tab       domain.Tab
	Session   domain.Session
	Key       domain.ResourceKey
	Snapshot  *domain.Snapshot
	Snapshots map[domain.ResourceKey]*domain.Snapshot
	Loading   bool
	Empty     bool
	Message   string
	Scope     string
	At        time.Time
}

// now подменяется в тестах.
var now = func() time.Time { return time.Now().UTC() }

func SetActiveTab(tab domain.Tab) Action {
	return Action{Type: ActionSetActiveTab, Tab: tab}
}

func SetSession(s domain.Session) Action {
	return Action{Type: ActionSetSession, Session: s}
}

func SetSnapshot(key domain.ResourceKey, snap *domain.Snapshot) Action {
	return Action{Type: ActionSetSnapshot, Key: key, Snapshot: snap}
}

// SetSnapshots: пакетная запись; применяется одним переходом.
func SetSnapshots(snaps map[domain.ResourceKey]*domain.Snapshot) Action {
	copied := make(map[domain.ResourceKey]*domain.Snapshot, len(snaps))
	for k, v := range snaps {
		copied[k] = v
	}
	return Action{Type: ActionSetSnapshots, Snapshots: copied}
}

func SetTabLoading(tab domain.Tab, loading bool, message string) Action {
	return Action{Type: ActionSetTabLoading, Tab: tab, Loading: loading, Message: message}
}

func SetTabError(tab domain.Tab, message string) Action {
	return Action{Type: ActionSetTabError, Tab: tab, Message: message, At: now()}
}

func ClearTabError(tab domain.Tab) Action {
	return Action{Type: ActionClearTabError, Tab: tab}
}

func SetTabEmpty(tab domain.Tab, empty bool) Action {
	return Action{Type: ActionSetTabEmpty, Tab: tab, Empty: empty}
}

func MarkTabUpdated(tab domain.Tab) Action {
	return Action{Type: ActionMarkTabUpdated, Tab: tab, At: now()}
}

// Invalidate помечает вкладки области scope как устаревшие (см. ScopeTabs).
func Invalidate(scope string) Action {
	return Action{Type: ActionInvalidate, Scope: scope}
}
