package route

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"go.uber.org/zap"
)

type fakeRefresher struct {
	mu        sync.Mutex
	refreshed []domain.Tab
	reasons   []domain.RefreshReason
	aborted   []domain.Tab
}

func (f *fakeRefresher) RefreshTab(_ context.Context, tab domain.Tab, reason domain.RefreshReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, tab)
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *fakeRefresher) Abort(tab domain.Tab) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, tab)
}

type fakeScheduler struct {
	reasons []domain.PollingReason
}

func (f *fakeScheduler) SchedulePolling(reason domain.PollingReason) {
	f.reasons = append(f.reasons, reason)
}

type fixture struct {
	ctrl      *Controller
	store     *store.Store
	loc       *MemoryLocation
	refresher *fakeRefresher
	scheduler *fakeScheduler
}

func newFixture(hash string) *fixture {
	st := store.New(domain.TabMonitoring)
	st.Dispatch(store.SetSession(domain.Session{Authenticated: true, CSRFToken: "t"}))
	loc := NewMemoryLocation("/dashboard/index.html", hash)
	r := &fakeRefresher{}
	s := &fakeScheduler{}
	return &fixture{
		ctrl:      NewController(st, loc, r, s, zap.NewNop()),
		store:     st,
		loc:       loc,
		refresher: r,
		scheduler: s,
	}
}

func TestEmptyHashNormalizesToMonitoring(t *testing.T) {
	f := newFixture("")
	tab := f.ctrl.SyncFromHash(context.Background(), Options{Reason: domain.ReasonMount, Force: true})
	f.ctrl.Wait()

	assert.Equal(t, domain.TabMonitoring, tab)
	assert.Equal(t, "#monitoring", f.loc.Hash())
	assert.Equal(t, []string{"#monitoring"}, f.loc.History(), "invalid fragment is replaced, not pushed")
	assert.Equal(t, []domain.Tab{domain.TabMonitoring}, f.refresher.refreshed)
	assert.Equal(t, []domain.RefreshReason{domain.ReasonMount}, f.refresher.reasons)

	f.store.Dispatch(store.SetActiveTab(domain.TabConfig))
	f.store.Dispatch(store.Invalidate(store.ScopeSecurityConfig))
	s := f.store.GetState()
	assert.True(t, s.IsStale(domain.TabConfig))
	assert.True(t, s.IsStale(domain.TabStatus))
	assert.True(t, s.IsStale(domain.TabTuning))
	assert.False(t, s.IsStale(domain.TabMonitoring))
}

func TestSyncFromHashRewritesInvalidFragment(t *testing.T) {
	f := newFixture("#nonsense")
	tab := f.ctrl.SyncFromHash(context.Background(), Options{})
	f.ctrl.Wait()

	assert.Equal(t, domain.TabMonitoring, tab)
	assert.Equal(t, "#monitoring", f.loc.Hash())
	assert.Empty(t, f.refresher.refreshed, "same tab without force is a no-op")
}

func TestSyncFromHashAppliesTab(t *testing.T) {
	f := newFixture("#IP-Bans")
	tab := f.ctrl.SyncFromHash(context.Background(), Options{})
	f.ctrl.Wait()

	assert.Equal(t, domain.TabIPBans, tab)
	assert.Equal(t, "#ip-bans", f.loc.Hash())
	assert.Equal(t, domain.TabIPBans, f.store.GetState().ActiveTab())
	assert.Equal(t, []domain.RefreshReason{domain.ReasonHashChange}, f.refresher.reasons)
	assert.Equal(t, []domain.Tab{domain.TabMonitoring}, f.refresher.aborted)
}

func TestApplyActiveTab(t *testing.T) {
	f := newFixture("#monitoring")

	tab := f.ctrl.ApplyActiveTab(context.Background(), "config", Options{SyncHash: true})
	f.ctrl.Wait()
	assert.Equal(t, domain.TabConfig, tab)
	assert.Equal(t, domain.TabConfig, f.store.GetState().ActiveTab())
	assert.Equal(t, "#config", f.loc.Hash())
	assert.Equal(t, []string{"#monitoring", "#config"}, f.loc.History())
	assert.Equal(t, []domain.Tab{domain.TabMonitoring}, f.refresher.aborted)
	assert.Equal(t, []domain.RefreshReason{domain.ReasonTabChange}, f.refresher.reasons)
	assert.Equal(t, []domain.PollingReason{domain.ResumeTabChange}, f.scheduler.reasons)

	// та же вкладка: только синхронизация фрагмента
	f.loc.SetHash("#status", false)
	f.ctrl.ApplyActiveTab(context.Background(), "#config", Options{SyncHash: true, ReplaceHash: true})
	f.ctrl.Wait()
	assert.Equal(t, "#config", f.loc.Hash())
	assert.Len(t, f.refresher.refreshed, 1)
	assert.Len(t, f.scheduler.reasons, 1)

	// force перезапускает обновление без смены вкладки и без отмены
	f.ctrl.ApplyActiveTab(context.Background(), "config", Options{Force: true, Reason: domain.ReasonManual})
	f.ctrl.Wait()
	require.Len(t, f.refresher.refreshed, 2)
	assert.Equal(t, domain.ReasonManual, f.refresher.reasons[1])
	assert.Len(t, f.refresher.aborted, 1)
}

func TestApplyActiveTabUnauthenticatedSkipsRefresh(t *testing.T) {
	f := newFixture("#monitoring")
	f.store.Dispatch(store.SetSession(domain.Session{}))

	f.ctrl.ApplyActiveTab(context.Background(), "tuning", Options{SyncHash: true})
	f.ctrl.Wait()
	assert.Equal(t, domain.TabTuning, f.store.GetState().ActiveTab())
	assert.Empty(t, f.refresher.refreshed)
	assert.Equal(t, []domain.PollingReason{domain.ResumeTabChange}, f.scheduler.reasons)
}

func TestKeyNavTarget(t *testing.T) {
	cases := []struct {
		current domain.Tab
		key     string
		want    domain.Tab
		ok      bool
	}{
		{domain.TabMonitoring, "ArrowRight", domain.TabIPBans, true},
		{domain.TabTuning, "ArrowRight", domain.TabMonitoring, true},
		{domain.TabMonitoring, "ArrowLeft", domain.TabTuning, true},
		{domain.TabStatus, "left", domain.TabIPBans, true},
		{domain.TabConfig, "Home", domain.TabMonitoring, true},
		{domain.TabIPBans, "end", domain.TabTuning, true},
		{domain.TabStatus, "Enter", domain.TabStatus, false},
	}
	for _, tc := range cases {
		got, ok := KeyNavTarget(tc.current, tc.key)
		assert.Equal(t, tc.want, got, "%s %s", tc.current, tc.key)
		assert.Equal(t, tc.ok, ok)
	}
}

func TestMemoryLocationPath(t *testing.T) {
	loc := NewMemoryLocation("", "config")
	assert.Equal(t, "#config", loc.Hash())
	assert.Equal(t, "/dashboard/index.html#config", loc.Path())
}
