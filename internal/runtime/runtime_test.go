package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/draft"
	"github.com/xela07ax/shuma-dashboard/internal/engine"
	"github.com/xela07ax/shuma-dashboard/internal/infra"
	"github.com/xela07ax/shuma-dashboard/internal/route"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"go.uber.org/zap"
)

// idleClock никогда не срабатывает: поллинг в этих тестах проверяется только по флагу Armed.
type idleClock struct{}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func (idleClock) Now() time.Time { return time.Now() }

func (idleClock) AfterFunc(time.Duration, func()) engine.Timer { return idleTimer{} }

type fakeAdmin struct {
	mu            sync.Mutex
	authenticated bool
	writable      bool
	config        map[string]any
	bans          []string
	hits          map[string]int
	csrf          []string
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{
		authenticated: true,
		writable:      true,
		config:        map[string]any{"maze_enabled": true, "pow_difficulty": 15},
		hits:          map[string]int{},
	}
}

func (a *fakeAdmin) handler() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	guard := func(next func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.hits[r.URL.Path]++
			if !a.authenticated {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if r.Method == http.MethodPost {
				a.csrf = append(a.csrf, r.Header.Get("X-Shuma-CSRF"))
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/admin/session", guard(func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]any{"authenticated": true, "method": "cookie", "csrf_token": "csrf-1"})
	}))
	mux.HandleFunc("/admin/logout", guard(func(w http.ResponseWriter, r *http.Request) {
		a.authenticated = false
	}))
	mux.HandleFunc("/admin/config", guard(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var patch map[string]any
			_ = json.NewDecoder(r.Body).Decode(&patch)
			for k, v := range patch {
				a.config[k] = v
			}
		}
		cfg := map[string]any{"admin_config_write_enabled": a.writable}
		for k, v := range a.config {
			cfg[k] = v
		}
		write(w, map[string]any{"config": cfg})
	}))
	mux.HandleFunc("/admin/ban", guard(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req struct {
				IP string `json:"ip"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			a.bans = append(a.bans, req.IP)
			return
		}
		write(w, map[string]any{"bans": a.bans})
	}))
	mux.HandleFunc("/admin/unban", guard(func(w http.ResponseWriter, r *http.Request) {
		ip := r.URL.Query().Get("ip")
		kept := a.bans[:0]
		for _, b := range a.bans {
			if b != ip {
				kept = append(kept, b)
			}
		}
		a.bans = kept
	}))
	for _, p := range []string{"/admin/analytics", "/admin/events", "/admin/maze", "/admin/cdp", "/admin/cdp/events", "/admin/monitoring"} {
		mux.HandleFunc(p, guard(func(w http.ResponseWriter, r *http.Request) {
			write(w, map[string]any{"items": []int{1}})
		}))
	}
	return mux
}

func (a *fakeAdmin) hitCount(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[path]
}

func testConfig(baseURL string) *infra.Config {
	return &infra.Config{
		API:     infra.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Session: infra.SessionConfig{LoginPath: "/dashboard/login.html"},
		Engine:  infra.EngineConfig{RefreshTimeout: 5 * time.Second},
		Polling: infra.PollingConfig{Monitoring: 30 * time.Second, IPBans: 30 * time.Second, Config: 30 * time.Second},
	}
}

type harness struct {
	rt        *Runtime
	admin     *fakeAdmin
	loc       *route.MemoryLocation
	redirects chan string
}

func newHarness(t *testing.T, hash string) *harness {
	t.Helper()
	admin := newFakeAdmin()
	srv := httptest.NewServer(admin.handler())
	t.Cleanup(srv.Close)

	loc := route.NewMemoryLocation("/dashboard/index.html", hash)
	redirects := make(chan string, 8)
	rt, err := New(testConfig(srv.URL), Options{
		Location:   loc,
		Clock:      idleClock{},
		Frame:      engine.FrameFunc(func(context.Context) error { return nil }),
		OnRedirect: func(u string) { redirects <- u },
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(rt.Unmount)
	return &harness{rt: rt, admin: admin, loc: loc, redirects: redirects}
}

func TestMountLoadsActiveTab(t *testing.T) {
	h := newHarness(t, "")
	h.rt.Mount(context.Background())
	h.rt.Wait()

	s := h.rt.State()
	assert.True(t, s.Authenticated())
	assert.Equal(t, domain.TabMonitoring, s.ActiveTab())
	assert.Equal(t, "#monitoring", h.loc.Hash())
	assert.NotNil(t, s.Snapshot(domain.ResourceMonitoring))
	assert.NotNil(t, s.Snapshot(domain.ResourceCDPEvents))
	assert.NotEmpty(t, s.TabStatus(domain.TabMonitoring).UpdatedAt)
	assert.True(t, h.rt.scheduler.Armed())
	assert.Equal(t, 1, h.rt.Telemetry().Refresh.FetchLatencyMs.Samples)
}

func TestMountUnauthenticatedRedirects(t *testing.T) {
	h := newHarness(t, "#config")
	h.admin.authenticated = false
	h.rt.Mount(context.Background())
	h.rt.Wait()

	assert.False(t, h.rt.State().Authenticated())
	assert.Equal(t, domain.TabConfig, h.rt.State().ActiveTab())
	assert.Equal(t, 0, h.admin.hitCount("/admin/config"))
	assert.False(t, h.rt.scheduler.Armed())
	assert.Equal(t, domain.SkipUnauthenticated, h.rt.Telemetry().Polling.LastSkipReason)

	select {
	case u := <-h.redirects:
		assert.Equal(t, "/dashboard/login.html?next=%2Fdashboard%2Findex.html%23config", u)
	default:
		t.Fatal("expected login redirect")
	}
	assert.Equal(t, h.rt.LoginURL(), h.rt.LastRedirect())
}

func TestTabSwitchAndHashNavigation(t *testing.T) {
	h := newHarness(t, "#monitoring")
	h.rt.Mount(context.Background())
	h.rt.Wait()

	h.rt.ApplyActiveTab("ip-bans", route.Options{SyncHash: true})
	h.rt.Wait()
	assert.Equal(t, "#ip-bans", h.loc.Hash())
	assert.NotNil(t, h.rt.State().Snapshot(domain.ResourceBans))

	tab := h.rt.SetHash("#bogus")
	h.rt.Wait()
	assert.Equal(t, domain.TabMonitoring, tab)
	assert.Equal(t, "#monitoring", h.loc.Hash())
}

func TestSaveConfigRebaselinesDrafts(t *testing.T) {
	h := newHarness(t, "#config")
	h.rt.Mount(context.Background())
	h.rt.Wait()

	base, ok := h.rt.DraftBaseline(draft.SectionPoW)
	require.True(t, ok)
	assert.Equal(t, int64(15), base["pow_difficulty"])

	form := draft.Values{"pow_enabled": true, "pow_difficulty": 22, "pow_ttl_seconds": 90}
	dirty, err := h.rt.IsDraftDirty(draft.SectionPoW, form)
	require.NoError(t, err)
	assert.True(t, dirty)

	_, err = h.rt.SaveConfig(context.Background(), draft.SectionPoW, form)
	require.NoError(t, err)
	h.rt.Wait()

	dirty, err = h.rt.IsDraftDirty(draft.SectionPoW, form)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Contains(t, h.admin.csrf, "csrf-1")
	assert.False(t, h.rt.State().IsStale(domain.TabConfig), "active tab refreshed after invalidation")
	assert.True(t, h.rt.State().IsStale(domain.TabStatus))
}

func TestSaveConfigReadOnly(t *testing.T) {
	h := newHarness(t, "#config")
	h.admin.writable = false
	h.rt.Mount(context.Background())
	h.rt.Wait()

	_, err := h.rt.SaveConfig(context.Background(), draft.SectionMaze, draft.Values{"maze_enabled": false})
	assert.ErrorIs(t, err, draft.ErrReadOnly)
}

func TestUnknownDraftSectionIsRejected(t *testing.T) {
	h := newHarness(t, "#config")
	h.rt.Mount(context.Background())
	h.rt.Wait()
	require.NotNil(t, h.rt.State().Snapshot(domain.ResourceConfig))
	posts := h.admin.hitCount("/admin/config")

	_, err := h.rt.SaveConfig(context.Background(), "nosuch", draft.Values{"x": 1})
	assert.ErrorIs(t, err, draft.ErrUnknownSection)
	assert.NotErrorIs(t, err, draft.ErrReadOnly)
	assert.Equal(t, posts, h.admin.hitCount("/admin/config"))

	_, err = h.rt.IsDraftDirty("nosuch", draft.Values{"x": 1})
	assert.ErrorIs(t, err, draft.ErrUnknownSection)
}

func TestBanAndUnbanInvalidateIPBans(t *testing.T) {
	h := newHarness(t, "#ip-bans")
	h.rt.Mount(context.Background())
	h.rt.Wait()
	before := h.rt.State().Version(domain.ResourceBans)

	require.NoError(t, h.rt.BanIP(context.Background(), "203.0.113.7", "manual", time.Hour))
	h.rt.Wait()
	s := h.rt.State()
	assert.Greater(t, s.Version(domain.ResourceBans), before)
	assert.False(t, s.IsStale(domain.TabIPBans))
	assert.True(t, s.IsStale(domain.TabMonitoring))

	require.NoError(t, h.rt.UnbanIP(context.Background(), "203.0.113.7"))
	h.rt.Wait()
	var payload struct {
		Bans []string `json:"bans"`
	}
	require.NoError(t, h.rt.State().Snapshot(domain.ResourceBans).Decode(&payload))
	assert.Empty(t, payload.Bans)
	assert.True(t, h.rt.State().TabStatus(domain.TabIPBans).Empty)
}

func TestVisibilityPausesPolling(t *testing.T) {
	h := newHarness(t, "")
	h.rt.Mount(context.Background())
	h.rt.Wait()
	require.True(t, h.rt.scheduler.Armed())

	h.rt.SetVisible(false)
	assert.False(t, h.rt.scheduler.Armed())
	assert.Equal(t, domain.SkipHidden, h.rt.Telemetry().Polling.LastSkipReason)

	h.rt.SetVisible(true)
	h.rt.Wait()
	assert.True(t, h.rt.scheduler.Armed())
	assert.Equal(t, domain.ResumeVisibility, h.rt.Telemetry().Polling.LastResumeReason)
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t, "")
	h.rt.Mount(context.Background())
	h.rt.Wait()

	loginURL := h.rt.Logout(context.Background())
	assert.Equal(t, "/dashboard/login.html?next=%2Fdashboard%2Findex.html%23monitoring", loginURL)
	assert.False(t, h.rt.State().Authenticated())
	assert.False(t, h.rt.scheduler.Armed())
	assert.Equal(t, domain.SkipUnauthenticated, h.rt.Telemetry().Polling.LastSkipReason)
}

func TestInvalidateRefreshesOnlyWhenActiveTabStale(t *testing.T) {
	h := newHarness(t, "#monitoring")
	h.rt.Mount(context.Background())
	h.rt.Wait()
	hits := h.admin.hitCount("/admin/monitoring")

	h.rt.Invalidate(store.ScopeSecurityConfig)
	h.rt.Wait()
	assert.Equal(t, hits, h.admin.hitCount("/admin/monitoring"))
	assert.True(t, h.rt.State().IsStale(domain.TabConfig))

	h.rt.Invalidate("monitoring")
	h.rt.Wait()
	assert.Equal(t, hits+1, h.admin.hitCount("/admin/monitoring"))
	assert.False(t, h.rt.State().IsStale(domain.TabMonitoring))
}

func TestUnmountStopsEverything(t *testing.T) {
	h := newHarness(t, "")
	h.rt.Mount(context.Background())
	h.rt.Wait()
	h.rt.Unmount()

	assert.False(t, h.rt.Mounted())
	assert.False(t, h.rt.scheduler.Armed())
	h.rt.Unmount()
}

func TestWritesBroadcastScope(t *testing.T) {
	h := newHarness(t, "#ip-bans")
	var scopes []string
	h.rt.broadcast = func(scope string) { scopes = append(scopes, scope) }
	h.rt.Mount(context.Background())
	h.rt.Wait()

	require.NoError(t, h.rt.BanIP(context.Background(), "198.51.100.1", "manual", time.Minute))
	h.rt.Invalidate(store.ScopeMonitoring)
	h.rt.Wait()

	assert.Equal(t, []string{store.ScopeIPBans}, scopes, "external invalidation is not re-broadcast")
}
