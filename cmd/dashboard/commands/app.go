package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/shuma-dashboard/internal/infra"
	"github.com/xela07ax/shuma-dashboard/internal/journal"
	"github.com/xela07ax/shuma-dashboard/internal/repository/postgres"
	"github.com/xela07ax/shuma-dashboard/internal/runtime"
	"github.com/xela07ax/shuma-dashboard/internal/signals"
	"github.com/xela07ax/shuma-dashboard/internal/telemetry"
	"go.uber.org/zap"
)

// app: собранный рантайм со всей инфраструктурой вокруг него.
type app struct {
	cfg      *infra.Config
	logger   *zap.Logger
	reg      *prometheus.Registry
	rt       *runtime.Runtime
	journal  *journal.Journal
	repo     *postgres.JournalRepo // nil = журнал только в лог
	rdb      *redis.Client
	listener *signals.Listener
}

// buildApp собирает зависимости; opts дополняются журналом, метриками и рассылкой инвалидаций.
func buildApp(ctx context.Context, cfg *infra.Config, opts runtime.Options, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, reg: prometheus.NewRegistry()}
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(a.reg)

	// 1. Журнал обновлений: Postgres или лог
	var storage journal.Storage = journal.NewLogSink(logger)
	if cfg.Database.URL != "" {
		repo, err := postgres.NewJournalRepo(cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := repo.Ping(pingCtx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("database unreachable: %w", err)
		}
		if err := repo.EnsureSchema(pingCtx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("journal schema: %w", err)
		}
		a.repo = repo
		storage = repo
	}
	a.journal = journal.New(storage, metrics.JournalBufferFill, logger)

	// 2. Рантайм
	opts.Metrics = metrics
	opts.Sink = a.journal
	opts.Broadcast = func(scope string) {
		if a.listener != nil {
			a.listener.Broadcast(scope)
		}
	}
	rt, err := runtime.New(cfg, opts, logger)
	if err != nil {
		a.closeStorage()
		return nil, err
	}
	a.rt = rt

	// 3. Сигналы инвалидации между инстансами
	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.listener = signals.NewListener(a.rdb, rt, signals.Options{
			Channel: cfg.Redis.Channel,
			Counter: metrics.InvalidationSignals,
		}, logger)
	}
	return a, nil
}

// start запускает фоновые части и монтирует рантайм.
func (a *app) start(ctx context.Context) {
	a.journal.Start()
	if a.listener != nil {
		go a.listener.Run(ctx)
	}
	a.rt.Mount(ctx)
}

// stop: рантайм -> журнал (дописывает буфер) -> соединения.
func (a *app) stop() {
	a.rt.Unmount()
	a.rt.Wait()
	a.journal.Stop()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.closeStorage()
	_ = a.logger.Sync()
}

func (a *app) closeStorage() {
	if a.repo != nil {
		_ = a.repo.Close()
	}
}
