package store

import "github.com/xela07ax/shuma-dashboard/internal/domain"

// TabStatus: статус вкладки для UI. Инвариант: Loading == true => Error == "".
type TabStatus struct {
	Loading   bool   `json:"loading"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Empty     bool   `json:"empty"`
	UpdatedAt string `json:"updatedAt"`
}

// State: неизменяемое состояние админки. Каждый переход создает новый *State,
// карты копируются только при изменении (copy-on-write), поэтому наружу отдаются лишь методы-аксессоры.
type State struct {
	activeTab domain.Tab
	session   domain.Session
	snapshots map[domain.ResourceKey]*domain.Snapshot
	versions  map[domain.ResourceKey]uint64
	tabStatus map[domain.Tab]TabStatus
	stale     map[domain.Tab]bool
}

// Initial строит состояние "только что смонтировано" с заданной вкладкой.
func Initial(tab domain.Tab) *State {
	s := &State{
		activeTab: domain.NormalizeTab(string(tab)),
		snapshots: make(map[domain.ResourceKey]*domain.Snapshot),
		versions:  make(map[domain.ResourceKey]uint64),
		tabStatus: make(map[domain.Tab]TabStatus),
		stale:     make(map[domain.Tab]bool),
	}
	for _, key := range domain.ResourceKeys() {
		s.snapshots[key] = nil
		s.versions[key] = 0
	}
	for _, t := range domain.Tabs() {
		s.tabStatus[t] = TabStatus{}
		s.stale[t] = false
	}
	return s
}

func (s *State) ActiveTab() domain.Tab { return s.activeTab }

func (s *State) Session() domain.Session { return s.session }

func (s *State) Authenticated() bool { return s.session.Authenticated }

func (s *State) TabStatus(t domain.Tab) TabStatus { return s.tabStatus[t] }

func (s *State) IsStale(t domain.Tab) bool { return s.stale[t] }

// Snapshot возвращает текущий снапшот ресурса (nil, если данных нет).
func (s *State) Snapshot(key domain.ResourceKey) *domain.Snapshot {
	return s.snapshots[key]
}

// Version: счетчик замен снапшота; растет монотонно.
func (s *State) Version(key domain.ResourceKey) uint64 {
	return s.versions[key]
}

// clone делает поверхностную копию: карты общие до первой записи.
func (s *State) clone() *State {
	next := *s
	return &next
}

func (s *State) withSnapshots() *State {
	next := s.clone()
	next.snapshots = make(map[domain.ResourceKey]*domain.Snapshot, len(s.snapshots))
	for k, v := range s.snapshots {
		next.snapshots[k] = v
	}
	next.versions = make(map[domain.ResourceKey]uint64, len(s.versions))
	for k, v := range s.versions {
		next.versions[k] = v
	}
	return next
}

func (s *State) withTabStatus() *State {
	next := s.clone()
	next.tabStatus = make(map[domain.Tab]TabStatus, len(s.tabStatus))
	for k, v := range s.tabStatus {
		next.tabStatus[k] = v
	}
	return next
}

func (s *State) withStale() *State {
	next := s.clone()
	next.stale = make(map[domain.Tab]bool, len(s.stale))
	for k, v := range s.stale {
		next.stale[k] = v
	}
	return next
}
