package pacing

import (
	"context"
	"time"
)

// Gate paces sequential upstream calls. Wait blocks until the next call may
// proceed or the context is canceled.
type Gate interface {
	Wait(ctx context.Context) error
}

// None is a zero-delay gate for tests and dry runs.
var None Gate = noneGate{}

type noneGate struct{}

func (noneGate) Wait(context.Context) error { return nil }

// IntervalGate enforces a fixed delay between consecutive calls. The first
// call passes immediately. Not safe for concurrent use; the sync engine is
// single-threaded per job by design.
type IntervalGate struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewInterval builds a gate with the provided inter-call delay.
func NewInterval(interval time.Duration) *IntervalGate {
	return &IntervalGate{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until interval has elapsed since the previous Wait returned.
func (g *IntervalGate) Wait(ctx context.Context) error {
	if g.interval <= 0 {
		return ctx.Err()
	}
	if !g.last.IsZero() {
		elapsed := g.now().Sub(g.last)
		if remaining := g.interval - elapsed; remaining > 0 {
			if err := g.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	g.last = g.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
