package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/KickSync/internal/broker/messages"
)

type Notifier interface {
	Notify(ctx context.Context, ev messages.KickboardChanged) error
}

// Multi sends every event to all channels concurrently. A channel stuck on
// its own rate limit doesn't eat the deadline of the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev messages.KickboardChanged) error {
	errs := make([]error, len(m))
	var wg sync.WaitGroup
	for i, n := range m {
		if n == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = n.Notify(ctx, ev)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Notify(context.Context, messages.KickboardChanged) error { return nil }

type RateLimiter interface {
	AllowPerMinute(ctx context.Context, name string, limit int64) (bool, int64, error)
}

// RateLimited caps sends to limitPerMinute across every process sharing the limiter.
type RateLimited struct {
	next           Notifier
	rl             RateLimiter
	name           string
	limitPerMinute int64
	wait           time.Duration
	maxWaits       int
}

func NewRateLimited(next Notifier, rl RateLimiter, name string, limitPerMinute int64) *RateLimited {
	return &RateLimited{
		next:           next,
		rl:             rl,
		name:           name,
		limitPerMinute: limitPerMinute,
		wait:           time.Second,
		maxWaits:       70,
	}
}

func (r *RateLimited) Notify(ctx context.Context, ev messages.KickboardChanged) error {
	if r.rl == nil || r.limitPerMinute <= 0 {
		return r.next.Notify(ctx, ev)
	}
	for i := 0; i < r.maxWaits; i++ {
		allowed, n, err := r.rl.AllowPerMinute(ctx, r.name, r.limitPerMinute)
		if err != nil {
			// лимитер недоступен: лучше отправить, чем потерять уведомление
			slog.Warn("notify rate limiter failed", "channel", r.name, "error", err.Error())
			break
		}
		if allowed {
			break
		}
		slog.Warn("notify rate limit exceeded", "channel", r.name, "count", n)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.wait):
		}
	}
	return r.next.Notify(ctx, ev)
}
