package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// ResourceKey: ключ снапшота ресурса админ-API.
type ResourceKey string

const (
	ResourceAnalytics  ResourceKey = "analytics"
	ResourceEvents     ResourceKey = "events"
	ResourceBans       ResourceKey = "bans"
	ResourceMaze       ResourceKey = "maze"
	ResourceCDP        ResourceKey = "cdp"
	ResourceCDPEvents  ResourceKey = "cdpEvents"
	ResourceMonitoring ResourceKey = "monitoring"
	ResourceConfig     ResourceKey = "config"
)

var resourceKeys = []ResourceKey{
	ResourceAnalytics, ResourceEvents, ResourceBans, ResourceMaze,
	ResourceCDP, ResourceCDPEvents, ResourceMonitoring, ResourceConfig,
}

// ResourceKeys возвращает фиксированный набор ключей снапшотов.
func ResourceKeys() []ResourceKey {
	out := make([]ResourceKey, len(resourceKeys))
	copy(out, resourceKeys)
	return out
}

func (k ResourceKey) IsValid() bool {
	for _, known := range resourceKeys {
		if k == known {
			return true
		}
	}
	return false
}

// Snapshot: последний успешно полученный payload ресурса.
// Идентичность снапшота = идентичность указателя: один и тот же *Snapshot означает "данные не менялись".
// Содержимое после создания не мутируется.
type Snapshot struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewSnapshot копирует байты, чтобы вызывающий не мог изменить снапшот задним числом.
func NewSnapshot(data []byte, at time.Time) *Snapshot {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Snapshot{Data: buf, FetchedAt: at}
}

// SameBytes сравнивает payload побайтно (используется апстримом, чтобы переиспользовать указатель).
func (s *Snapshot) SameBytes(data []byte) bool {
	if s == nil {
		return false
	}
	return bytes.Equal(s.Data, data)
}

// Decode разбирает payload в произвольную структуру.
func (s *Snapshot) Decode(v any) error {
	if s == nil || len(s.Data) == 0 {
		return ErrEmptySnapshot
	}
	return json.Unmarshal(s.Data, v)
}
