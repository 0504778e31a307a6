package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/shuma-dashboard/internal/adminapi"
	"github.com/xela07ax/shuma-dashboard/internal/console/service"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/draft"
	"github.com/xela07ax/shuma-dashboard/internal/journal"
	"github.com/xela07ax/shuma-dashboard/internal/route"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"github.com/xela07ax/shuma-dashboard/internal/telemetry"
	"go.uber.org/zap"
)

type fakeRuntime struct {
	mu       sync.Mutex
	st       *store.Store
	applied  []route.Options
	visible  *bool
	bans     []string
	unbans   []string
	refresh  error
	save     error
	restored bool
	drafts   *draft.Store
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{st: store.New(domain.TabMonitoring), drafts: draft.NewStore(zap.NewNop())}
}

func (f *fakeRuntime) State() *store.State {
	return f.st.GetState()
}

func (f *fakeRuntime) Telemetry() telemetry.RuntimeTelemetry {
	return telemetry.RuntimeTelemetry{}
}

func (f *fakeRuntime) LoginURL() string {
	return "/dashboard/login.html?next=%2Fdashboard%2Findex.html"
}

func (f *fakeRuntime) ApplyActiveTab(raw string, opts route.Options) domain.Tab {
	f.mu.Lock()
	f.applied = append(f.applied, opts)
	f.mu.Unlock()
	tab := domain.NormalizeTab(raw)
	f.st.Dispatch(store.SetActiveTab(tab))
	return tab
}

func (f *fakeRuntime) SetHash(hash string) domain.Tab {
	return f.ApplyActiveTab(hash, route.Options{Reason: domain.ReasonHashChange})
}

func (f *fakeRuntime) RefreshTab(tab domain.Tab, _ domain.RefreshReason) error {
	if f.refresh != nil {
		f.st.Dispatch(store.SetTabError(tab, "boom"))
	}
	return f.refresh
}

func (f *fakeRuntime) SetVisible(visible bool) {
	f.mu.Lock()
	f.visible = &visible
	f.mu.Unlock()
}

func (f *fakeRuntime) RestoreSession(context.Context) bool {
	if f.restored {
		f.st.Dispatch(store.SetSession(domain.Session{Authenticated: true, Method: "cookie", CSRFToken: "secret"}))
	}
	return f.restored
}

func (f *fakeRuntime) Logout(context.Context) string { return "/dashboard/login.html" }

func (f *fakeRuntime) SaveConfig(_ context.Context, section string, _ draft.Values) (*domain.Snapshot, error) {
	if f.save != nil {
		return nil, f.save
	}
	return &domain.Snapshot{Data: json.RawMessage(`{"section":"` + section + `"}`)}, nil
}

func (f *fakeRuntime) IsDraftDirty(section string, values draft.Values) (bool, error) {
	if !f.drafts.Has(section) {
		return false, draft.ErrUnknownSection
	}
	return len(values) > 0, nil
}

func (f *fakeRuntime) BanIP(_ context.Context, ip, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans = append(f.bans, ip)
	return nil
}

func (f *fakeRuntime) UnbanIP(_ context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unbans = append(f.unbans, ip)
	return nil
}

type stubJournal struct{}

func (stubJournal) FetchRecent(_ context.Context, tab string, _ int) ([]journal.Entry, error) {
	return []journal.Entry{{Tab: tab, Outcome: "success"}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndTrace(t *testing.T) {
	srv := NewConsoleServer(newFakeRuntime(), Options{}, zap.NewNop())

	rec := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(TraceHeader))

	rec = do(t, srv, http.MethodGet, "/health", "", TraceHeader, "trace-1")
	assert.Equal(t, "trace-1", rec.Header().Get(TraceHeader))
}

func TestAdapterTokenRequired(t *testing.T) {
	srv := NewConsoleServer(newFakeRuntime(), Options{AdapterToken: "s3cret"}, zap.NewNop())

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/v1/state", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/v1/state", "", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/state", "", "Authorization", "Bearer s3cret").Code)
	// health остается публичным
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", "").Code)
}

func TestApplyTabAndState(t *testing.T) {
	rt := newFakeRuntime()
	srv := NewConsoleServer(rt, Options{}, zap.NewNop())

	rec := do(t, srv, http.MethodPost, "/api/v1/tabs/Config", `{"replaceHash":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"activeTab":"config"}`, rec.Body.String())
	require.Len(t, rt.applied, 1)
	assert.True(t, rt.applied[0].SyncHash)
	assert.True(t, rt.applied[0].ReplaceHash)

	rec = do(t, srv, http.MethodPost, "/api/v1/tabs/bogus", "")
	assert.JSONEq(t, `{"activeTab":"monitoring"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/v1/hash", `{"hash":"#tuning"}`)
	assert.JSONEq(t, `{"activeTab":"tuning"}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view store.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, domain.TabTuning, view.ActiveTab)
}

func TestRefreshReportsTabStatus(t *testing.T) {
	rt := newFakeRuntime()
	rt.refresh = assert.AnError
	srv := NewConsoleServer(rt, Options{}, zap.NewNop())

	rec := do(t, srv, http.MethodPost, "/api/v1/refresh/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status store.TabStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "boom", status.Error)

	rt.refresh = &adminapi.APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	rec = do(t, srv, http.MethodPost, "/api/v1/refresh/status", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redirect":"/dashboard/login.html?next=%2Fdashboard%2Findex.html"`)
}

func TestSessionRoutes(t *testing.T) {
	rt := newFakeRuntime()
	srv := NewConsoleServer(rt, Options{}, zap.NewNop())

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/v1/session/restore", "").Code)

	rt.restored = true
	rec := do(t, srv, http.MethodPost, "/api/v1/session/restore", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true,"method":"cookie"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = do(t, srv, http.MethodPost, "/api/v1/session/logout", "")
	assert.JSONEq(t, `{"redirect":"/dashboard/login.html"}`, rec.Body.String())
}

func TestConfigRoutes(t *testing.T) {
	rt := newFakeRuntime()
	srv := NewConsoleServer(rt, Options{}, zap.NewNop())

	rec := do(t, srv, http.MethodPost, "/api/v1/config", `{"section":"pow","values":{"pow_enabled":true}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"section":"pow"}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/config", `{}`).Code)

	rt.save = draft.ErrReadOnly
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/api/v1/config", `{"section":"pow"}`).Code)
	rt.save = draft.ErrUnknownSection
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/api/v1/config", `{"section":"nope"}`).Code)
	rt.save = adminapi.ErrCircuitOpen
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/v1/config", `{"section":"pow"}`).Code)
	rt.save = &adminapi.APIError{Status: http.StatusBadGateway, Message: "upstream"}
	assert.Equal(t, http.StatusBadGateway, do(t, srv, http.MethodPost, "/api/v1/config", `{"section":"pow"}`).Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/drafts/maze/dirty", `{"maze_enabled":false}`)
	assert.JSONEq(t, `{"section":"maze","dirty":true}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/v1/drafts/nosuch/dirty", `{"x":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBanRoutes(t *testing.T) {
	rt := newFakeRuntime()
	srv := NewConsoleServer(rt, Options{}, zap.NewNop())

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPost, "/api/v1/bans", `{"ip":"203.0.113.7","reason":"manual","duration":3600}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/bans", `{"ip":"not-an-ip"}`).Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/bans/2001:db8::1", "").Code)

	assert.Equal(t, []string{"203.0.113.7"}, rt.bans)
	assert.Equal(t, []string{"2001:db8::1"}, rt.unbans)
}

func TestVisibility(t *testing.T) {
	rt := newFakeRuntime()
	srv := NewConsoleServer(rt, Options{}, zap.NewNop())

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPost, "/api/v1/visibility", `{"visible":false}`).Code)
	require.NotNil(t, rt.visible)
	assert.False(t, *rt.visible)
}

func TestJournalAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	metrics.RefreshOutcomes.WithLabelValues("monitoring", "success").Inc()

	srv := NewConsoleServer(newFakeRuntime(), Options{
		Gatherer: reg,
		Journal:  service.NewJournalService(stubJournal{}),
	}, zap.NewNop())

	rec := do(t, srv, http.MethodGet, "/api/v1/journal?tab=Config&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tab":"config"`)

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shuma_dashboard_refresh_total")
}

func TestJournalDisabledReturnsEmptyList(t *testing.T) {
	srv := NewConsoleServer(newFakeRuntime(), Options{}, zap.NewNop())
	rec := do(t, srv, http.MethodGet, "/api/v1/journal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/metrics", "").Code)
}
