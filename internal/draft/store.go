package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"go.uber.org/zap"
)

var (
	ErrUnknownSection = errors.New("unknown config section")
	// ErrReadOnly: сервер запретил запись конфигурации (admin_config_write_enabled=false).
	ErrReadOnly = errors.New("config writes are disabled on the server")
)

// Store хранит базис (последнее подтвержденное сервером значение) для каждой секции.
// Set всегда заменяет секцию целиком: частичного слияния нет.
type Store struct {
	mu        sync.RWMutex
	sections  map[string]Section
	baselines map[string]Values
	logger    *zap.Logger
}

func NewStore(logger *zap.Logger, sections ...Section) *Store {
	if len(sections) == 0 {
		sections = DefaultSections()
	}
	s := &Store{
		sections:  make(map[string]Section, len(sections)),
		baselines: make(map[string]Values, len(sections)),
		logger:    logger.Named("draft"),
	}
	for _, sec := range sections {
		s.sections[sec.Key] = sec
		s.baselines[sec.Key] = sec.defaults()
	}
	return s
}

// Get возвращает копию базиса секции или fallback для неизвестной секции.
func (s *Store) Get(key string, fallback Values) Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.baselines[key]
	if !ok {
		return fallback
	}
	return copyValues(v)
}

func (s *Store) Set(key string, value Values) {
	s.mu.Lock()
	s.baselines[key] = copyValues(value)
	s.mu.Unlock()
}

// IsDirty сравнивает текущие значения формы с базисом после нормализации секции.
func (s *Store) IsDirty(key string, current Values) bool {
	s.mu.RLock()
	baseline, hasBase := s.baselines[key]
	sec, hasSchema := s.sections[key]
	s.mu.RUnlock()

	if !hasBase {
		return len(current) > 0
	}
	if !hasSchema {
		return canonicalJSON(map[string]any(withoutMutable(baseline))) != canonicalJSON(map[string]any(withoutMutable(current)))
	}
	return !reflect.DeepEqual(sec.normalize(baseline), sec.normalize(current))
}

// ApplyConfig перестраивает базисы всех секций из снапшота конфигурации сервера.
func (s *Store) ApplyConfig(snap *domain.Snapshot) error {
	var cfg map[string]any
	if err := snap.Decode(&cfg); err != nil {
		return fmt.Errorf("decode config snapshot: %w", err)
	}
	// ответ POST /admin/config оборачивает конфиг в {"config": {...}}
	if inner, ok := cfg["config"].(map[string]any); ok && len(cfg) == 1 {
		cfg = inner
	}
	mutable, _ := cfg["admin_config_write_enabled"].(bool)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sec := range s.sections {
		s.baselines[key] = extract(sec, cfg, mutable)
	}
	s.logger.Debug("config draft baselines applied", zap.Int("sections", len(s.sections)), zap.Bool("mutable", mutable))
	return nil
}

// Bind подписывает черновики на стор: каждое продвижение версии снапшота config переустанавливает базисы.
func (s *Store) Bind(st *store.Store) func() {
	return st.Subscribe(func(prev, next *store.State) {
		if prev.Version(domain.ResourceConfig) == next.Version(domain.ResourceConfig) {
			return
		}
		snap := next.Snapshot(domain.ResourceConfig)
		if snap == nil {
			return
		}
		if err := s.ApplyConfig(snap); err != nil {
			s.logger.Warn("config snapshot not applied to drafts", zap.Error(err))
		}
	})
}

// Has: известна ли секция схеме.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sections[key]
	return ok
}

// Mutable: разрешена ли запись по последнему примененному конфигу.
func (s *Store) Mutable(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mutable, _ := s.baselines[key][MutableField].(bool)
	return mutable
}

// Patch строит тело POST /admin/config из значений формы секции.
// JSON-поля отправляются объектами, секция Whole: весь объект конфигурации.
func (s *Store) Patch(key string, current Values) (map[string]any, error) {
	s.mu.RLock()
	sec, ok := s.sections[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, key)
	}

	norm := sec.normalize(current)
	if sec.Whole {
		var whole map[string]any
		text, _ := norm[sec.Fields[0].Name].(string)
		if err := json.Unmarshal([]byte(text), &whole); err != nil || whole == nil {
			return nil, fmt.Errorf("section %q must be a JSON object", key)
		}
		delete(whole, "admin_config_write_enabled")
		return whole, nil
	}

	patch := make(map[string]any, len(sec.Fields))
	for _, f := range sec.Fields {
		v := norm[f.Name]
		if f.Kind == KindJSON {
			var decoded any
			text, _ := v.(string)
			if err := json.Unmarshal([]byte(text), &decoded); err != nil {
				return nil, fmt.Errorf("field %q is not valid JSON: %w", f.Name, err)
			}
			v = decoded
		}
		patch[f.Name] = v
	}
	return patch, nil
}

func extract(sec Section, cfg map[string]any, mutable bool) Values {
	out := make(Values, len(sec.Fields)+1)
	if sec.Whole {
		raw, _ := json.Marshal(cfg)
		out[sec.Fields[0].Name] = canonicalJSON(json.RawMessage(raw))
	} else {
		for _, f := range sec.Fields {
			raw, ok := cfg[f.Name]
			if !ok {
				raw = f.Default
			}
			out[f.Name] = normalizeField(f, raw)
		}
	}
	out[MutableField] = mutable
	return out
}

func copyValues(v Values) Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func withoutMutable(v Values) Values {
	out := copyValues(v)
	delete(out, MutableField)
	return out
}
