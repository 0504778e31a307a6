package journal

/*
Журнал обновлений вкладок: неблокирующая запись итогов refreshTab с пакетным сбросом в хранилище.

- Record не блокирует движок: событие уходит в буферизованный канал, при переполнении сбрасывается в лог.
- Воркер копит пачку и пишет ее по таймеру или при достижении лимита.
- Stop закрывает канал и ждет финального сброса (drain).
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/shuma-dashboard/internal/engine"
	"go.uber.org/zap"
)

const (
	defaultBufferSize = 1024
	batchSize         = 100
	flushInterval     = 500 * time.Millisecond
)

// Storage: куда физически пишется журнал.
type Storage interface {
	WriteBatch(ctx context.Context, entries []Entry) error
}

type Journal struct {
	ch       chan Entry
	repo     Storage
	logger   *zap.Logger
	fill     prometheus.Gauge
	wg       sync.WaitGroup
	isClosed int32
}

// New; fill (заполненность буфера) может быть nil.
func New(repo Storage, fill prometheus.Gauge, logger *zap.Logger) *Journal {
	return &Journal{
		ch:     make(chan Entry, defaultBufferSize),
		repo:   repo,
		fill:   fill,
		logger: logger.With(zap.String("mod", "journal")),
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop запирает вход и ждет, пока воркер допишет остаток.
func (j *Journal) Stop() {
	if !atomic.CompareAndSwapInt32(&j.isClosed, 0, 1) {
		return
	}
	// даем текущим Record проскочить
	time.Sleep(10 * time.Millisecond)

	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

// Record реализует engine.ReportSink.
func (j *Journal) Record(r engine.RefreshReport) {
	j.Log(Entry{
		Tab:      string(r.Tab),
		Reason:   string(r.Reason),
		Outcome:  string(r.Outcome),
		Error:    r.Error,
		FetchMs:  r.FetchMs,
		RenderMs: r.RenderMs,
		At:       r.At,
	})
}

func (j *Journal) Log(e Entry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	if atomic.LoadInt32(&j.isClosed) == 1 {
		j.logger.Warn("journal entry dropped: journal is stopping", zap.String("id", e.ID))
		return
	}

	// Load Shedding: при переполнении запись уходит только в лог
	select {
	case j.ch <- e:
		if j.fill != nil {
			j.fill.Set(float64(len(j.ch)))
		}
	default:
		j.logger.Error("journal_buffer_overflow",
			zap.String("tab", e.Tab),
			zap.String("outcome", e.Outcome))
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]Entry, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// основной контекст к этому моменту может быть закрыт
		if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		if j.fill != nil {
			j.fill.Set(float64(len(j.ch)))
		}
	}

	for {
		select {
		case e, ok := <-j.ch:
			if !ok {
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
