package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Join runs a and b concurrently and returns once both have settled. A
// failure of one does not cancel the other; the first error is returned.
func Join[A, B any](ctx context.Context, a func(context.Context) (A, error), b func(context.Context) (B, error)) (A, B, error) {
	var (
		g  errgroup.Group
		ra A
		rb B
	)
	g.Go(func() error {
		var err error
		ra, err = a(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		rb, err = b(ctx)
		return err
	})
	err := g.Wait()
	return ra, rb, err
}

// Floor returns a task that settles after d has elapsed on clock, or early
// with the context error.
func Floor(clock clockwork.Clock, d time.Duration) func(context.Context) (struct{}, error) {
	return func(ctx context.Context) (struct{}, error) {
		if d <= 0 {
			return struct{}{}, nil
		}
		timer := clock.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.Chan():
			return struct{}{}, nil
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	}
}

// countdown reports the remaining whole seconds once per second until it
// reports zero or ctx ends. The ticker is released on every return path.
func countdown(ctx context.Context, clock clockwork.Clock, seed int, report func(remaining int)) {
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := seed
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if remaining <= 1 {
				report(0)
				return
			}
			remaining--
			report(remaining)
		}
	}
}
