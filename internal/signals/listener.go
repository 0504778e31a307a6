package signals

/*
Сигналы инвалидации между инстансами админки через Redis Pub/Sub.

Формат сообщения: "<scope>" или "<scope>@<origin>". Сообщения собственного origin игнорируются:
инстанс уже инвалидировал область локально при записи.
После переподключения инвалидируется "all": сигналы за время разрыва потеряны.
*/

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"go.uber.org/zap"
)

// Invalidator: получатель сигналов (рантайм).
type Invalidator interface {
	Invalidate(scope string)
}

type Options struct {
	Channel string
	// Origin: идентификатор инстанса; пусто = случайный UUID.
	Origin string
	// Counter считает принятые сигналы по области; может быть nil.
	Counter *prometheus.CounterVec
	// RetryDelay: пауза перед повторной подпиской.
	RetryDelay time.Duration
}

type Listener struct {
	rdb        *redis.Client
	target     Invalidator
	channel    string
	origin     string
	counter    *prometheus.CounterVec
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewListener(rdb *redis.Client, target Invalidator, opts Options, logger *zap.Logger) *Listener {
	if opts.Origin == "" {
		opts.Origin = uuid.New().String()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Listener{
		rdb:        rdb,
		target:     target,
		channel:    opts.Channel,
		origin:     opts.Origin,
		counter:    opts.Counter,
		retryDelay: opts.RetryDelay,
		logger:     logger.Named("signals").With(zap.String("chan", opts.Channel)),
	}
}

func (l *Listener) Origin() string { return l.origin }

// Run держит "живучую" подписку и переподключается до отмены ctx.
func (l *Listener) Run(ctx context.Context) {
	connected := false
	for {
		pubsub := l.rdb.Subscribe(ctx, l.channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("failed to subscribe", zap.Error(err))
			if !sleepCtx(ctx, l.retryDelay) {
				return
			}
			continue
		}

		if connected {
			l.logger.Info("resubscribed, invalidating everything")
			l.deliver(store.ScopeAll)
		} else {
			l.logger.Info("invalidation listener started")
		}
		connected = true

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				scope, origin := parsePayload(msg.Payload)
				if origin == l.origin {
					continue
				}
				if len(store.ScopeTabs(scope)) == 0 {
					l.logger.Warn("unknown invalidation scope", zap.String("payload", msg.Payload))
					continue
				}
				l.deliver(scope)
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

// Publish рассылает область остальным инстансам.
func (l *Listener) Publish(ctx context.Context, scope string) error {
	return l.rdb.Publish(ctx, l.channel, scope+"@"+l.origin).Err()
}

// Broadcast: fire-and-forget вариант Publish для хука рантайма.
func (l *Listener) Broadcast(scope string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Publish(ctx, scope); err != nil {
		l.logger.Warn("failed to broadcast invalidation", zap.String("scope", scope), zap.Error(err))
	}
}

func (l *Listener) deliver(scope string) {
	if l.counter != nil {
		l.counter.WithLabelValues(scope).Inc()
	}
	l.logger.Debug("invalidation signal", zap.String("scope", scope))
	l.target.Invalidate(scope)
}

func parsePayload(payload string) (scope, origin string) {
	payload = strings.TrimSpace(payload)
	if i := strings.LastIndexByte(payload, '@'); i >= 0 {
		return strings.TrimSpace(payload[:i]), strings.TrimSpace(payload[i+1:])
	}
	return payload, ""
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
