package route

import (
	"strings"
	"sync"
)

// Location: URL страницы админки; фрагмент (#tab) единственное сохраняемое состояние навигации.
type Location interface {
	Hash() string
	// SetHash записывает фрагмент; replace заменяет текущую запись истории вместо новой.
	SetHash(hash string, replace bool)
	// Path: путь страницы вместе с фрагментом (для параметра next при логине).
	Path() string
}

// MemoryLocation: Location в памяти процесса с историей переходов.
type MemoryLocation struct {
	mu      sync.Mutex
	path    string
	hash    string
	history []string
}

func NewMemoryLocation(path, hash string) *MemoryLocation {
	if path == "" {
		path = "/dashboard/index.html"
	}
	return &MemoryLocation{path: path, hash: normalizeHash(hash), history: []string{normalizeHash(hash)}}
}

func (l *MemoryLocation) Hash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hash
}

func (l *MemoryLocation) SetHash(hash string, replace bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hash = normalizeHash(hash)
	if replace && len(l.history) > 0 {
		l.history[len(l.history)-1] = l.hash
		return
	}
	l.history = append(l.history, l.hash)
}

func (l *MemoryLocation) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path + l.hash
}

// History возвращает копию записей истории.
func (l *MemoryLocation) History() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.history))
	copy(out, l.history)
	return out
}

func normalizeHash(hash string) string {
	hash = strings.TrimSpace(hash)
	if hash == "" || hash == "#" {
		return ""
	}
	if !strings.HasPrefix(hash, "#") {
		return "#" + hash
	}
	return hash
}
