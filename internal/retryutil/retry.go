package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
	defaultMaxDelay = 30 * time.Second
)

// Policy retries up to Attempts times, doubling Delay after each failure
// up to MaxDelay.
type Policy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

func (p Policy) normalize() Policy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Delay <= 0 {
		p.Delay = defaultDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay
	}
	return p
}

// Do calls fn until it succeeds, the attempts run out, or ctx is done. It
// returns the last error from fn, or ctx.Err() when canceled while waiting.
func Do(ctx context.Context, logger *slog.Logger, name string, policy Policy, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	p := policy.normalize()
	delay := p.Delay
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 && logger != nil {
				logger.Info(name+"_retry_ok", "attempt", attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == p.Attempts {
			break
		}
		if logger != nil {
			logger.Warn(name+"_retry_scheduled", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	if logger != nil {
		logger.Warn(name+"_retry_failed", "attempts", p.Attempts, "error", err.Error())
	}
	return err
}
