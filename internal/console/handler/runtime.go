package handler

import (
	"context"
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/draft"
	"github.com/xela07ax/shuma-dashboard/internal/route"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"github.com/xela07ax/shuma-dashboard/internal/telemetry"
)

// Runtime: командный интерфейс рантайма, который нужен HTTP-адаптеру.
type Runtime interface {
	State() *store.State
	Telemetry() telemetry.RuntimeTelemetry
	ApplyActiveTab(raw string, opts route.Options) domain.Tab
	SetHash(hash string) domain.Tab
	RefreshTab(tab domain.Tab, reason domain.RefreshReason) error
	SetVisible(visible bool)
	RestoreSession(ctx context.Context) bool
	Logout(ctx context.Context) string
	SaveConfig(ctx context.Context, section string, values draft.Values) (*domain.Snapshot, error)
	IsDraftDirty(section string, values draft.Values) (bool, error)
	BanIP(ctx context.Context, ip, reason string, duration time.Duration) error
	UnbanIP(ctx context.Context, ip string) error
	LoginURL() string
}
