package domain

import "strings"

// Tab: вкладка админки. Множество закрыто, порядок важен для клавиатурной навигации.
type Tab string

const (
	TabMonitoring Tab = "monitoring"
	TabIPBans     Tab = "ip-bans"
	TabStatus     Tab = "status"
	TabConfig     Tab = "config"
	TabTuning     Tab = "tuning"
)

// DefaultTab открывается при пустом или невалидном фрагменте URL.
const DefaultTab = TabMonitoring

var tabOrder = []Tab{TabMonitoring, TabIPBans, TabStatus, TabConfig, TabTuning}

// Tabs возвращает копию циклического порядка вкладок.
func Tabs() []Tab {
	out := make([]Tab, len(tabOrder))
	copy(out, tabOrder)
	return out
}

// IsValid проверяет принадлежность к закрытому множеству без нормализации.
func (t Tab) IsValid() bool {
	for _, known := range tabOrder {
		if t == known {
			return true
		}
	}
	return false
}

// NormalizeTab приводит произвольный ввод (значение хэша, query-параметр) к вкладке.
// "#Config " -> config, "" или мусор -> DefaultTab.
func NormalizeTab(raw string) Tab {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "#")
	t := Tab(strings.TrimSpace(v))
	if t.IsValid() {
		return t
	}
	return DefaultTab
}

// Index: позиция вкладки в порядке обхода, -1 для неизвестной.
func (t Tab) Index() int {
	for i, known := range tabOrder {
		if t == known {
			return i
		}
	}
	return -1
}

// Hash: каноничный фрагмент URL для вкладки.
func (t Tab) Hash() string {
	return "#" + string(NormalizeTab(string(t)))
}
