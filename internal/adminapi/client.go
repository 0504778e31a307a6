package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

// Client: типизированный клиент админ-API поверх шлюза сессии.
// Чтения возвращают *domain.Snapshot; при совпадении байт возвращается прежний указатель.
type Client struct {
	http    *http.Client
	baseURL string
	rw      *ReliabilityWrapper
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	last map[string]*domain.Snapshot
}

func NewClient(httpClient *http.Client, baseURL string, rw *ReliabilityWrapper, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if rw == nil {
		rw = NewReliabilityWrapper("shuma-admin-api", ReliabilityOptions{})
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		rw:      rw,
		logger:  logger.Named("adminapi"),
		now:     func() time.Time { return time.Now().UTC() },
		last:    make(map[string]*domain.Snapshot),
	}
}

// BanRequest: тело POST /admin/ban.
type BanRequest struct {
	IP       string `json:"ip"`
	Reason   string `json:"reason,omitempty"`
	Duration int64  `json:"duration,omitempty"` // секунды
}

func (c *Client) Analytics(ctx context.Context) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/analytics", nil)
}

func (c *Client) Events(ctx context.Context, hours int) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/events", url.Values{"hours": {strconv.Itoa(hours)}})
}

func (c *Client) Bans(ctx context.Context) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/ban", nil)
}

func (c *Client) Maze(ctx context.Context) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/maze", nil)
}

func (c *Client) CDP(ctx context.Context) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/cdp", nil)
}

func (c *Client) CDPEvents(ctx context.Context, hours, limit int) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/cdp/events", url.Values{
		"hours": {strconv.Itoa(hours)},
		"limit": {strconv.Itoa(limit)},
	})
}

func (c *Client) Monitoring(ctx context.Context, hours, limit int) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/monitoring", url.Values{
		"hours": {strconv.Itoa(hours)},
		"limit": {strconv.Itoa(limit)},
	})
}

func (c *Client) Config(ctx context.Context) (*domain.Snapshot, error) {
	return c.read(ctx, "/admin/config", nil)
}

// UpdateConfig применяет патч и возвращает снапшот из ответа {config}.
// Снапшот кешируется под /admin/config, чтобы следующее чтение тех же байт сохранило указатель.
func (c *Client) UpdateConfig(ctx context.Context, patch map[string]any) (*domain.Snapshot, error) {
	body, err := c.write(ctx, http.MethodPost, "/admin/config", nil, patch)
	if err != nil {
		return nil, err
	}
	return c.remember("/admin/config", body), nil
}

func (c *Client) Ban(ctx context.Context, req BanRequest) error {
	if strings.TrimSpace(req.IP) == "" {
		return fmt.Errorf("ban: ip is required")
	}
	_, err := c.write(ctx, http.MethodPost, "/admin/ban", nil, req)
	return err
}

func (c *Client) Unban(ctx context.Context, ip string) error {
	if strings.TrimSpace(ip) == "" {
		return fmt.Errorf("unban: ip is required")
	}
	_, err := c.write(ctx, http.MethodPost, "/admin/unban", url.Values{"ip": {ip}}, nil)
	return err
}

func (c *Client) read(ctx context.Context, path string, query url.Values) (*domain.Snapshot, error) {
	var body []byte
	err := c.rw.Call(ctx, true, func(ctx context.Context) error {
		var callErr error
		body, callErr = c.do(ctx, http.MethodGet, path, query, nil)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return c.remember(cacheKey(path, query), body), nil
}

func (c *Client) write(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
	}

	var body []byte
	err := c.rw.Call(ctx, false, func(ctx context.Context) error {
		var callErr error
		body, callErr = c.do(ctx, method, path, query, raw)
		return callErr
	})
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, body)
		c.logger.Debug("admin api answered with error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, apiErr
	}
	return body, nil
}

// remember возвращает прежний снапшот, если байты не изменились.
func (c *Client) remember(key string, body []byte) *domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.last[key]; ok && prev.SameBytes(body) {
		return prev
	}
	snap := domain.NewSnapshot(body, c.now())
	c.last[key] = snap
	return snap
}

func cacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
