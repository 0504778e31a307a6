package signals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testChannel = "shuma:test:dashboard:invalidate"

type recorder struct {
	mu     sync.Mutex
	scopes []string
}

func (r *recorder) Invalidate(scope string) {
	r.mu.Lock()
	r.scopes = append(r.scopes, scope)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.scopes...)
}

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func waitSubscribed(t *testing.T, mr *miniredis.Miniredis) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(testChannel)[testChannel] > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenerDeliversScopes(t *testing.T) {
	mr, rdb := setup(t)
	rec := &recorder{}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "signals"}, []string{"scope"})
	l := NewListener(rdb, rec, Options{Channel: testChannel, Origin: "me", Counter: counter}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { l.Run(ctx); close(done) }()
	waitSubscribed(t, mr)

	mr.Publish(testChannel, "securityConfig@other")
	mr.Publish(testChannel, "bogus-scope")
	mr.Publish(testChannel, "ipBans@me")
	mr.Publish(testChannel, " monitoring ")

	assert.Eventually(t, func() bool { return len(rec.got()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"securityConfig", "monitoring"}, rec.got())
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("securityConfig")))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestPublishCarriesOrigin(t *testing.T) {
	mr, rdb := setup(t)
	rec := &recorder{}
	other := NewListener(rdb, rec, Options{Channel: testChannel, Origin: "other"}, zap.NewNop())
	self := NewListener(rdb, &recorder{}, Options{Channel: testChannel, Origin: "self"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go other.Run(ctx)
	waitSubscribed(t, mr)

	self.Broadcast("ipBans")
	assert.Eventually(t, func() bool { return len(rec.got()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ipBans"}, rec.got())
}

func TestParsePayload(t *testing.T) {
	scope, origin := parsePayload("config@abc")
	assert.Equal(t, "config", scope)
	assert.Equal(t, "abc", origin)

	scope, origin = parsePayload(" all ")
	assert.Equal(t, "all", scope)
	assert.Empty(t, origin)
}

func TestRunStopsWhenRedisUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()
	l := NewListener(rdb, &recorder{}, Options{Channel: testChannel, RetryDelay: 20 * time.Millisecond}, zap.NewNop())
	assert.NotEmpty(t, l.Origin())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { l.Run(ctx); close(done) }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
}
