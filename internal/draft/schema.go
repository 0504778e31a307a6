package draft

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Values: значения одной секции формы конфигурации.
type Values map[string]any

// MutableField: служебное поле секции, разрешена ли запись конфигурации на сервере.
const MutableField = "mutable"

type FieldKind int

const (
	KindBool FieldKind = iota
	KindInt
	KindFloat
	KindString
	KindCountryList
	KindJSON
)

// Field описывает поле секции: имя совпадает с ключом в JSON конфигурации сервера.
type Field struct {
	Name    string
	Kind    FieldKind
	Default any
}

// Section: схема секции черновика.
// Whole=true означает, что секция целиком отражает весь объект конфигурации (JSON-редактор).
type Section struct {
	Key    string
	Fields []Field
	Whole  bool
}

const (
	SectionMaze     = "maze"
	SectionPoW      = "pow"
	SectionGeo      = "geo"
	SectionBotness  = "botness"
	SectionAdvanced = "advanced"
)

// DefaultSections: секции формы конфигурации админки.
// Значения по умолчанию непрозрачны для рантайма и лишь заполняют форму до первого ответа сервера.
func DefaultSections() []Section {
	return []Section{
		{Key: SectionMaze, Fields: []Field{
			{Name: "maze_enabled", Kind: KindBool, Default: true},
			{Name: "maze_auto_ban", Kind: KindBool, Default: true},
			{Name: "maze_auto_ban_threshold", Kind: KindInt, Default: int64(50)},
		}},
		{Key: SectionPoW, Fields: []Field{
			{Name: "pow_enabled", Kind: KindBool, Default: true},
			{Name: "pow_difficulty", Kind: KindInt, Default: int64(15)},
			{Name: "pow_ttl_seconds", Kind: KindInt, Default: int64(90)},
		}},
		{Key: SectionGeo, Fields: []Field{
			{Name: "geo_risk", Kind: KindCountryList, Default: []string{}},
			{Name: "geo_allow", Kind: KindCountryList, Default: []string{}},
			{Name: "geo_challenge", Kind: KindCountryList, Default: []string{}},
			{Name: "geo_maze", Kind: KindCountryList, Default: []string{}},
			{Name: "geo_block", Kind: KindCountryList, Default: []string{}},
		}},
		{Key: SectionBotness, Fields: []Field{
			{Name: "challenge_risk_threshold", Kind: KindInt, Default: int64(3)},
			{Name: "botness_maze_threshold", Kind: KindInt, Default: int64(6)},
			{Name: "botness_weights", Kind: KindJSON, Default: map[string]any{}},
		}},
		{Key: SectionAdvanced, Whole: true, Fields: []Field{
			{Name: "json", Kind: KindJSON, Default: map[string]any{}},
		}},
	}
}

// defaults строит стартовые значения секции.
func (s Section) defaults() Values {
	out := make(Values, len(s.Fields)+1)
	for _, f := range s.Fields {
		out[f.Name] = normalizeField(f, f.Default)
	}
	out[MutableField] = false
	return out
}

// normalize приводит значения секции к каноничному виду для сравнения. mutable в сравнении не участвует.
func (s Section) normalize(v Values) Values {
	out := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		raw, ok := v[f.Name]
		if !ok {
			raw = f.Default
		}
		out[f.Name] = normalizeField(f, raw)
	}
	return out
}

func normalizeField(f Field, raw any) any {
	switch f.Kind {
	case KindBool:
		return coerceBool(raw, f.Default)
	case KindInt:
		n := coerceNumber(raw, f.Default)
		return int64(math.Trunc(n))
	case KindFloat:
		return coerceNumber(raw, f.Default)
	case KindString:
		if s, ok := raw.(string); ok {
			return strings.TrimSpace(s)
		}
		if raw == nil {
			return ""
		}
		return strings.TrimSpace(canonicalJSON(raw))
	case KindCountryList:
		return countryList(raw)
	case KindJSON:
		return canonicalJSON(raw)
	}
	return raw
}

func coerceBool(raw any, fallback any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "on", "yes":
			return true
		case "false", "0", "off", "no", "":
			return false
		}
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	if b, ok := fallback.(bool); ok {
		return b
	}
	return false
}

// coerceNumber: числовое приведение с откатом к значению по умолчанию для нечисел.
func coerceNumber(raw any, fallback any) float64 {
	var n float64
	ok := true
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		n, ok = f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		n, ok = f, err == nil
	default:
		ok = false
	}
	if ok && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n
	}
	if fallback == nil {
		return 0
	}
	return coerceNumber(fallback, nil)
}

// countryList: "us, gb ,US" и ["gb","us"] дают одинаковый ["GB","US"].
func countryList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok {
				items = append(items, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		code := strings.ToUpper(strings.TrimSpace(it))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// canonicalJSON: ключи объектов сортируются при маршалинге; строка разбирается как JSON.
// Невалидный JSON-текст остается обрезанной строкой, чтобы отличаться от валидного базиса.
func canonicalJSON(raw any) string {
	var v any
	switch typed := raw.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return "null"
		}
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			return trimmed
		}
	case json.RawMessage:
		if err := json.Unmarshal(typed, &v); err != nil {
			return strings.TrimSpace(string(typed))
		}
	default:
		// прогон через JSON убирает различия типов (int vs float64)
		b, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return string(b)
		}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}
