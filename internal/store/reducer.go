package store

import (
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

// Reduce: чистый переход (State, Action) -> State.
// Если переход ничего не меняет (или тип действия неизвестен), возвращается тот же указатель:
// потребители сравнивают состояния по идентичности.
func Reduce(s *State, a Action) *State {
	if s == nil {
		s = Initial(domain.DefaultTab)
	}

	switch a.Type {
	case ActionSetActiveTab:
		tab := domain.NormalizeTab(string(a.Tab))
		if tab == s.activeTab {
			return s
		}
		next := s.clone()
		next.activeTab = tab
		return next

	case ActionSetSession:
		session := a.Session.Normalize()
		if session == s.session {
			return s
		}
		next := s.clone()
		next.session = session
		return next

	case ActionSetSnapshot:
		return applySnapshots(s, map[domain.ResourceKey]*domain.Snapshot{a.Key: a.Snapshot})

	case ActionSetSnapshots:
		return applySnapshots(s, a.Snapshots)

	case ActionSetTabLoading:
		return updateTabStatus(s, a.Tab, func(st TabStatus) TabStatus {
			st.Loading = a.Loading
			st.Message = a.Message
			if a.Loading {
				st.Error = ""
			}
			return st
		})

	case ActionSetTabError:
		return updateTabStatus(s, a.Tab, func(st TabStatus) TabStatus {
			st.Loading = false
			st.Error = a.Message
			st.UpdatedAt = formatTime(a.At)
			return st
		})

	case ActionClearTabError:
		return updateTabStatus(s, a.Tab, func(st TabStatus) TabStatus {
			st.Error = ""
			return st
		})

	case ActionSetTabEmpty:
		return updateTabStatus(s, a.Tab, func(st TabStatus) TabStatus {
			st.Empty = a.Empty
			return st
		})

	case ActionMarkTabUpdated:
		if !a.Tab.IsValid() {
			return s
		}
		next := updateTabStatus(s, a.Tab, func(st TabStatus) TabStatus {
			st.Loading = false
			st.Error = ""
			st.UpdatedAt = formatTime(a.At)
			return st
		})
		return setStale(next, []domain.Tab{a.Tab}, false)

	case ActionInvalidate:
		return setStale(s, ScopeTabs(a.Scope), true)
	}

	return s
}

// applySnapshots поднимает версию на 1 для каждого ключа, чей указатель сменился.
func applySnapshots(s *State, snaps map[domain.ResourceKey]*domain.Snapshot) *State {
	var next *State
	for key, snap := range snaps {
		if !key.IsValid() || s.snapshots[key] == snap {
			continue
		}
		if next == nil {
			next = s.withSnapshots()
		}
		next.snapshots[key] = snap
		next.versions[key]++
	}
	if next == nil {
		return s
	}
	return next
}

func updateTabStatus(s *State, tab domain.Tab, fn func(TabStatus) TabStatus) *State {
	if !tab.IsValid() {
		return s
	}
	cur := s.tabStatus[tab]
	upd := fn(cur)
	if upd == cur {
		return s
	}
	next := s.withTabStatus()
	next.tabStatus[tab] = upd
	return next
}

func setStale(s *State, tabs []domain.Tab, value bool) *State {
	var next *State
	for _, tab := range tabs {
		if s.stale[tab] == value {
			continue
		}
		if next == nil {
			next = s.withStale()
		}
		next.stale[tab] = value
	}
	if next == nil {
		return s
	}
	return next
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
