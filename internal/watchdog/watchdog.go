// Package watchdog probes the bot session on a fixed interval and forces a
// restart when the probe fails.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/outputfmt"
)

const (
	DefaultInterval       = 5 * time.Minute
	DefaultProbeTimeout   = 30 * time.Second
	DefaultRestartTimeout = 2 * time.Minute
)

// Target is the supervisor surface the watchdog drives.
type Target interface {
	Probe(ctx context.Context) bool
	ForceRestart(ctx context.Context) error
}

type TickOutcome int

const (
	TickHealthy TickOutcome = iota
	TickRestarted
	TickRestartFailed
	TickSkipped
)

func (o TickOutcome) String() string {
	switch o {
	case TickHealthy:
		return "healthy"
	case TickRestarted:
		return "restarted"
	case TickRestartFailed:
		return "restart_failed"
	default:
		return "skipped"
	}
}

type TickResult struct {
	Outcome      TickOutcome
	SkipReason   string
	Err          error
	AlertMessage string
}

type Options struct {
	Interval       time.Duration
	ProbeTimeout   time.Duration
	RestartTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

func normalizeOptions(opts Options) Options {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.RestartTimeout <= 0 {
		opts.RestartTimeout = DefaultRestartTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// Tick runs one probe and, when it reports unhealthy, one forced restart.
func Tick(ctx context.Context, state *State, target Target, opts Options) TickResult {
	if state == nil || target == nil {
		return TickResult{Outcome: TickSkipped, SkipReason: "invalid_config"}
	}
	opts = normalizeOptions(opts)
	if !state.Start() {
		return TickResult{Outcome: TickSkipped, SkipReason: "already_running"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
	healthy := target.Probe(probeCtx)
	cancel()
	if healthy {
		state.EndHealthy(opts.Now())
		return TickResult{Outcome: TickHealthy}
	}

	restartCtx, cancel := context.WithTimeout(ctx, opts.RestartTimeout)
	err := target.ForceRestart(restartCtx)
	cancel()
	if err != nil {
		alert, msg := state.EndFailure(err)
		res := TickResult{Outcome: TickRestartFailed, Err: err}
		if alert {
			res.AlertMessage = strings.TrimSpace(msg)
		}
		return res
	}
	state.EndRestarted(opts.Now())
	return TickResult{Outcome: TickRestarted}
}

// Run ticks every opts.Interval until ctx is done. The first tick happens one
// interval after start.
func Run(ctx context.Context, target Target, state *State, opts Options) error {
	if target == nil {
		return errors.New("watchdog target is nil")
	}
	if state == nil {
		state = &State{}
	}
	opts = normalizeOptions(opts)
	logger := opts.Logger

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	logger.Info("watchdog_start", "interval", opts.Interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("watchdog_stop")
			return nil
		case <-ticker.C:
		}
		res := Tick(ctx, state, target, opts)
		switch res.Outcome {
		case TickHealthy:
			logger.Debug("watchdog_healthy")
		case TickRestarted:
			logger.Warn("watchdog_restart", "reason", "probe_failed")
		case TickRestartFailed:
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("watchdog_restart_error", "error", outputfmt.FormatErrorForDisplay(res.Err))
			if res.AlertMessage != "" {
				logger.Error("watchdog_alert", "message", res.AlertMessage)
			}
		case TickSkipped:
			logger.Debug("watchdog_skip", "reason", res.SkipReason)
		}
	}
}
