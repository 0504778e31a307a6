package store

import (
	"encoding/json"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

// View: сериализуемая копия состояния для адаптеров (HTTP, TUI).
type View struct {
	ActiveTab        domain.Tab                             `json:"activeTab"`
	Session          SessionView                            `json:"session"`
	Snapshots        map[domain.ResourceKey]json.RawMessage `json:"snapshots"`
	SnapshotVersions map[domain.ResourceKey]uint64          `json:"snapshotVersions"`
	TabStatus        map[domain.Tab]TabStatus               `json:"tabStatus"`
	Stale            map[domain.Tab]bool                    `json:"stale"`
}

// SessionView не раскрывает CSRF-токен наружу.
type SessionView struct {
	Authenticated bool   `json:"authenticated"`
	Method        string `json:"method,omitempty"`
}

// View копирует все карты; includeData=false опускает тела снапшотов.
func (s *State) View(includeData bool) View {
	v := View{
		ActiveTab:        s.activeTab,
		Session:          SessionView{Authenticated: s.session.Authenticated, Method: s.session.Method},
		Snapshots:        make(map[domain.ResourceKey]json.RawMessage, len(s.snapshots)),
		SnapshotVersions: make(map[domain.ResourceKey]uint64, len(s.versions)),
		TabStatus:        make(map[domain.Tab]TabStatus, len(s.tabStatus)),
		Stale:            make(map[domain.Tab]bool, len(s.stale)),
	}
	for k, snap := range s.snapshots {
		if includeData && snap != nil {
			v.Snapshots[k] = snap.Data
		} else {
			v.Snapshots[k] = nil
		}
	}
	for k, ver := range s.versions {
		v.SnapshotVersions[k] = ver
	}
	for k, st := range s.tabStatus {
		v.TabStatus[k] = st
	}
	for k, stale := range s.stale {
		v.Stale[k] = stale
	}
	return v
}
