package store

import "github.com/xela07ax/shuma-dashboard/internal/domain"

const (
	ScopeAll            = "all"
	ScopeSecurityConfig = "securityConfig"
	ScopeIPBans         = "ipBans"
	ScopeMonitoring     = "monitoring"
)

var namedScopes = map[string][]domain.Tab{
	ScopeSecurityConfig: {domain.TabConfig, domain.TabStatus, domain.TabTuning},
	ScopeIPBans:         {domain.TabIPBans, domain.TabMonitoring},
	ScopeMonitoring:     {domain.TabMonitoring},
}

// ScopeTabs раскрывает область инвалидации в список вкладок.
// Имя вкладки тоже является областью; неизвестная область: пустой список.
func ScopeTabs(scope string) []domain.Tab {
	if scope == ScopeAll {
		return domain.Tabs()
	}
	if tabs, ok := namedScopes[scope]; ok {
		out := make([]domain.Tab, len(tabs))
		copy(out, tabs)
		return out
	}
	if t := domain.Tab(scope); t.IsValid() {
		return []domain.Tab{t}
	}
	return nil
}
