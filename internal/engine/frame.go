package engine

import (
	"context"
	"time"
)

// DefaultFrameInterval: один кадр при 60 Гц.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameWaiter ждет "следующей отрисовки" после записи в стор; время ожидания идет в renderTimingMs.
type FrameWaiter interface {
	WaitFrame(ctx context.Context) error
}

// FrameFunc адаптирует функцию к FrameWaiter (например, сигнал от UI-адаптера о завершенной отрисовке).
type FrameFunc func(ctx context.Context) error

func (f FrameFunc) WaitFrame(ctx context.Context) error { return f(ctx) }

// IntervalFrame ждет фиксированную длительность кадра.
type IntervalFrame time.Duration

func (d IntervalFrame) WaitFrame(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
