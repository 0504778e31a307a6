package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/infra/auth"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"go.uber.org/zap"
)

const (
	CSRFHeader      = "X-Shuma-CSRF"
	RequestIDHeader = "X-Request-ID"

	adminPrefix = "/admin"
	sessionPath = "/admin/session"
	logoutPath  = "/admin/logout"
)

// SessionSink: куда зеркалится состояние сессии (стор рантайма).
type SessionSink interface {
	Dispatch(a store.Action) *store.State
}

type Options struct {
	BaseURL   string
	APIKey    string
	LoginPath string
	Transport http.RoundTripper

	// OnUnauthorized вызывается на любой 401 от админ-API с URL страницы логина.
	OnUnauthorized func(loginURL string)
	// CurrentPath отдает текущий путь UI для параметра next.
	CurrentPath func() string
}

// Gateway оборачивает исходящие запросы: подставляет креды и CSRF-токен и отслеживает аутентификацию.
// Сессия: единственное разделяемое состояние кроме стора; читается каждым запросом.
type Gateway struct {
	base      *url.URL
	apiKey    string
	loginPath string
	next      http.RoundTripper
	jar       http.CookieJar
	sink      SessionSink
	logger    *zap.Logger

	onUnauthorized func(string)
	currentPath    func() string
	now            func() time.Time

	mu      sync.RWMutex
	session domain.Session
}

func New(opts Options, sink SessionSink, logger *zap.Logger) (*Gateway, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base url %q must be absolute", opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: cookie jar: %w", err)
	}

	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "/dashboard/login.html"
	}

	g := &Gateway{
		base:           base,
		apiKey:         strings.TrimSpace(opts.APIKey),
		loginPath:      loginPath,
		next:           next,
		jar:            jar,
		sink:           sink,
		logger:         logger.Named("gateway"),
		onUnauthorized: opts.OnUnauthorized,
		currentPath:    opts.CurrentPath,
		now:            time.Now,
	}
	return g, nil
}

// BaseURL: origin админ-API (без завершающего слэша).
func (g *Gateway) BaseURL() *url.URL {
	u := *g.base
	return &u
}

// Client: http.Client поверх шлюза. Куки ведет сам шлюз, поэтому Jar у клиента нет.
func (g *Gateway) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: g, Timeout: timeout}
}

func (g *Gateway) Session() domain.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

// SetSession обновляет сессию и зеркалит ее в стор.
func (g *Gateway) SetSession(s domain.Session) {
	s = s.Normalize()
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()
	if g.sink != nil {
		g.sink.Dispatch(store.SetSession(s))
	}
}

// RoundTrip реализует http.RoundTripper. Исходный запрос не модифицируется.
func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.New().String())
	}

	sameOrigin := g.isSameOrigin(out.URL)
	admin := sameOrigin && isAdminPath(out.URL.Path)

	if !sameOrigin {
		// креды уходят только на свой origin
		out.Header.Del("Authorization")
		out.Header.Del("Cookie")
		out.Header.Del(CSRFHeader)
	} else {
		g.applyBearer(out)
		for _, c := range g.jar.Cookies(out.URL) {
			out.AddCookie(c)
		}
		if admin && isWriteMethod(out.Method) {
			session := g.Session()
			if session.Authenticated && session.CSRFToken != "" {
				out.Header.Set(CSRFHeader, session.CSRFToken)
			} else {
				out.Header.Del(CSRFHeader)
			}
		}
	}

	resp, err := g.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if sameOrigin {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			g.jar.SetCookies(out.URL, cookies)
		}
	}
	if admin && resp.StatusCode == http.StatusUnauthorized {
		g.handleUnauthorized(out.URL.Path)
	}
	return resp, nil
}

// applyBearer: пустой/шаблонный или просроченный bearer вырезается, а не отправляется.
func (g *Gateway) applyBearer(req *http.Request) {
	if h := req.Header.Get("Authorization"); h != "" {
		if auth.IsPlaceholder(h) || auth.IsExpiredJWT(h, g.now()) {
			req.Header.Del("Authorization")
		}
		return
	}
	if g.apiKey == "" || auth.IsPlaceholder(g.apiKey) {
		return
	}
	if auth.IsExpiredJWT(g.apiKey, g.now()) {
		g.logger.Warn("configured api key is an expired JWT, not sending it")
		return
	}
	req.Header.Set("Authorization", "Bearer "+auth.StripBearer(g.apiKey))
}

func (g *Gateway) handleUnauthorized(path string) {
	wasAuthenticated := g.Session().Authenticated
	g.SetSession(domain.Session{})

	loginURL := g.LoginURL(g.current())
	g.logger.Info("admin api answered 401, redirecting to login",
		zap.String("path", path),
		zap.Bool("was_authenticated", wasAuthenticated),
		zap.String("login_url", loginURL))
	if g.onUnauthorized != nil {
		g.onUnauthorized(loginURL)
	}
}

func (g *Gateway) current() string {
	if g.currentPath == nil {
		return ""
	}
	return g.currentPath()
}

// LoginURL: маршрут логина с текущим путем в параметре next.
func (g *Gateway) LoginURL(next string) string {
	if next == "" {
		return g.loginPath
	}
	return g.loginPath + "?next=" + url.QueryEscape(next)
}

// RestoreSession опрашивает /admin/session. Любой не-2xx ответ или сбой транспорта = неаутентифицирован.
func (g *Gateway) RestoreSession(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(sessionPath), nil)
	if err != nil {
		g.SetSession(domain.Session{})
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client(0).Do(req)
	if err != nil {
		g.logger.Warn("session introspection failed", zap.Error(err))
		g.SetSession(domain.Session{})
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.SetSession(domain.Session{})
		return false
	}

	var info domain.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		g.logger.Warn("session introspection returned malformed body", zap.Error(err))
		g.SetSession(domain.Session{})
		return false
	}
	if !info.Authenticated {
		g.SetSession(domain.Session{})
		return false
	}

	g.SetSession(domain.Session{Authenticated: true, CSRFToken: info.CSRFToken, Method: info.Method})
	return true
}

// Logout: best-effort POST /admin/logout, ошибки проглатываются; локальная сессия очищается всегда.
func (g *Gateway) Logout(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(logoutPath), nil)
	if err == nil {
		resp, err := g.Client(0).Do(req)
		if err != nil {
			g.logger.Debug("logout request failed", zap.Error(err))
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}
	g.SetSession(domain.Session{})
}

func (g *Gateway) endpoint(path string) string {
	return g.base.String() + path
}

func (g *Gateway) isSameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, g.base.Scheme) && strings.EqualFold(u.Host, g.base.Host)
}

func isAdminPath(path string) bool {
	return path == adminPrefix || strings.HasPrefix(path, adminPrefix+"/")
}

func isWriteMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
