package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"golang.org/x/sync/errgroup"
)

// TabResult: все снапшоты вкладки, полученные одним обновлением.
type TabResult struct {
	Snapshots map[domain.ResourceKey]*domain.Snapshot
	Empty     bool
}

type LoaderOptions struct {
	EventsHours     int
	MonitoringLimit int
	CDPEventsLimit  int
}

// TabLoader отображает вкладку на набор ресурсов админ-API.
type TabLoader struct {
	client *Client
	opts   LoaderOptions
}

func NewTabLoader(client *Client, opts LoaderOptions) *TabLoader {
	if opts.EventsHours <= 0 {
		opts.EventsHours = 24
	}
	if opts.MonitoringLimit <= 0 {
		opts.MonitoringLimit = 10
	}
	if opts.CDPEventsLimit <= 0 {
		opts.CDPEventsLimit = 50
	}
	return &TabLoader{client: client, opts: opts}
}

// Resources: ключи ресурсов, которые обновляет вкладка.
func Resources(tab domain.Tab) []domain.ResourceKey {
	switch tab {
	case domain.TabMonitoring:
		return []domain.ResourceKey{
			domain.ResourceMonitoring,
			domain.ResourceAnalytics,
			domain.ResourceEvents,
			domain.ResourceCDP,
			domain.ResourceCDPEvents,
			domain.ResourceMaze,
		}
	case domain.TabIPBans:
		return []domain.ResourceKey{domain.ResourceBans}
	case domain.TabStatus, domain.TabConfig, domain.TabTuning:
		return []domain.ResourceKey{domain.ResourceConfig}
	}
	return nil
}

// FetchTab загружает ресурсы вкладки параллельно. Ошибка любого ресурса отменяет остальные,
// частичный результат не возвращается.
func (l *TabLoader) FetchTab(ctx context.Context, tab domain.Tab) (TabResult, error) {
	keys := Resources(tab)
	if len(keys) == 0 {
		return TabResult{}, fmt.Errorf("unknown tab %q", tab)
	}

	snaps := make([]*domain.Snapshot, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			snap, err := l.fetch(gctx, key)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// отмена родителя важнее ошибки, вызванной ей
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TabResult{}, ctxErr
		}
		return TabResult{}, err
	}

	res := TabResult{Snapshots: make(map[domain.ResourceKey]*domain.Snapshot, len(keys)), Empty: true}
	for i, key := range keys {
		res.Snapshots[key] = snaps[i]
		if !isEmptyPayload(snaps[i].Data) {
			res.Empty = false
		}
	}
	return res, nil
}

func (l *TabLoader) fetch(ctx context.Context, key domain.ResourceKey) (*domain.Snapshot, error) {
	switch key {
	case domain.ResourceMonitoring:
		return l.client.Monitoring(ctx, l.opts.EventsHours, l.opts.MonitoringLimit)
	case domain.ResourceAnalytics:
		return l.client.Analytics(ctx)
	case domain.ResourceEvents:
		return l.client.Events(ctx, l.opts.EventsHours)
	case domain.ResourceCDP:
		return l.client.CDP(ctx)
	case domain.ResourceCDPEvents:
		return l.client.CDPEvents(ctx, l.opts.EventsHours, l.opts.CDPEventsLimit)
	case domain.ResourceMaze:
		return l.client.Maze(ctx)
	case domain.ResourceBans:
		return l.client.Bans(ctx)
	case domain.ResourceConfig:
		return l.client.Config(ctx)
	}
	return nil, fmt.Errorf("unknown resource %q", key)
}

// isEmptyPayload: null, пустые коллекции и объекты, состоящие только из пустых коллекций.
// Скаляры (в том числе 0 и false) считаются данными.
func isEmptyPayload(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return isEmptyValue(v)
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		for _, inner := range t {
			if !isEmptyValue(inner) {
				return false
			}
		}
		return true
	}
	return false
}
