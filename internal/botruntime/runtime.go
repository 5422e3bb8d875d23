// Package botruntime runs the long-poll loop, routes private chat commands
// and detaches clone and download tasks.
package botruntime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/retryutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/session"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statedb"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/cailuoli520/TelegramStickerPorter/internal/watchdog"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"
)

// Sessions is the supervisor surface the runtime drives.
type Sessions interface {
	EnsureActive(ctx context.Context) error
	ForceRestart(ctx context.Context) error
	Probe(ctx context.Context) bool
	Current() (*session.Session, error)
	Stop()
}

// API is the per-call view of the current bot session.
type API interface {
	porter.Platform
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string) error
	Self(ctx context.Context) (*telegramapi.User, error)
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegramapi.Update, int64, error)
}

type OffsetStore interface {
	LoadOffset(ctx context.Context, botID int64) (int64, error)
	SaveOffset(ctx context.Context, botID, offset int64) error
}

type TaskRecorder interface {
	RecordTask(ctx context.Context, rec statedb.TaskRecord) error
}

type Dependencies struct {
	Sessions Sessions
	API      API
	Logger   *slog.Logger

	// Offsets and Tasks are optional.
	Offsets OffsetStore
	Tasks   TaskRecorder
}

type Runtime struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
	engine *porter.Engine

	allowed atomic.Pointer[map[int64]bool]

	taskCtx     context.Context
	cancelTasks context.CancelFunc
	tasks       conc.WaitGroup
	running     atomic.Int64
}

func New(deps Dependencies, opts Options) (*Runtime, error) {
	if deps.Sessions == nil || deps.API == nil {
		return nil, errors.New("botruntime: sessions and api are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts = normalizeOptions(opts)
	engineOpts := opts.Porter
	if engineOpts.Logger == nil {
		engineOpts.Logger = logger
	}
	r := &Runtime{
		deps:   deps,
		opts:   opts,
		logger: logger,
		engine: porter.NewEngine(deps.API, engineOpts),
	}
	r.taskCtx, r.cancelTasks = context.WithCancel(context.Background())
	r.SetAllowedChatIDs(opts.AllowedChatIDs)
	return r, nil
}

// SetAllowedChatIDs replaces the allow-list. An empty list admits every
// private chat.
func (r *Runtime) SetAllowedChatIDs(ids []int64) {
	m := make(map[int64]bool)
	for _, id := range normalizeAllowedChatIDs(ids) {
		m[id] = true
	}
	r.allowed.Store(&m)
}

func (r *Runtime) chatAllowed(chatID int64) bool {
	m := r.allowed.Load()
	if m == nil || len(*m) == 0 {
		return true
	}
	return (*m)[chatID]
}

// RunningTasks counts detached tasks that have not finished.
func (r *Runtime) RunningTasks() int64 {
	return r.running.Load()
}

// Run polls until ctx is done, then waits up to the shutdown grace for
// running tasks before canceling them and stopping the session.
func (r *Runtime) Run(ctx context.Context) error {
	if err := retryutil.Do(ctx, r.logger, "session_init", retryutil.Policy{Attempts: 3}, r.deps.Sessions.EnsureActive); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("session_init_error", "error", err.Error())
	} else {
		r.logger.Info("session_init_ok")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.pollLoop(gctx) })
	if r.opts.WatchdogEnabled {
		g.Go(func() error {
			return watchdog.Run(gctx, r.deps.Sessions, &watchdog.State{}, watchdog.Options{
				Interval: r.opts.WatchdogInterval,
				Logger:   r.logger,
			})
		})
	}
	if r.opts.HealthListen != "" {
		g.Go(func() error { return r.serveHealth(gctx, r.opts.HealthListen) })
	}
	err := g.Wait()

	r.drainTasks()
	r.deps.Sessions.Stop()
	return err
}

func (r *Runtime) drainTasks() {
	done := make(chan struct{})
	go func() {
		if rec := r.tasks.WaitAndRecover(); rec != nil {
			r.logger.Error("task_goroutine_panic", "panic", fmt.Sprint(rec.Value))
		}
		close(done)
	}()
	select {
	case <-done:
		r.cancelTasks()
		return
	case <-time.After(r.opts.ShutdownGrace):
		r.logger.Warn("shutdown_grace_expired", "running_tasks", r.running.Load())
	}
	r.cancelTasks()
	<-done
}

func (r *Runtime) pollLoop(ctx context.Context) error {
	var (
		botID        int64
		offset       int64
		offsetLoaded bool
	)
	for {
		if ctx.Err() != nil {
			r.logger.Info("telegram_stop", "reason", "context_canceled")
			return nil
		}
		if !offsetLoaded {
			botID, offset, offsetLoaded = r.loadOffset(ctx)
		}

		updates, nextOffset, err := r.deps.API.GetUpdates(ctx, offset, r.opts.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				r.logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			switch {
			case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionClosed):
				r.logger.Warn("telegram_get_updates_no_session")
				if ensureErr := r.deps.Sessions.EnsureActive(ctx); ensureErr != nil && ctx.Err() == nil {
					r.logger.Warn("session_init_error", "error", ensureErr.Error())
				}
			case telegramapi.IsPollTimeoutError(err):
				r.logger.Debug("telegram_get_updates_timeout", "error", err.Error())
			default:
				r.logger.Warn("telegram_get_updates_error", "error", err.Error())
			}
			sleepCtx(ctx, time.Second)
			continue
		}

		changed := nextOffset != offset
		offset = nextOffset
		for _, u := range updates {
			if u.Message == nil {
				continue
			}
			r.HandleMessage(ctx, u.Message)
		}
		if changed && r.deps.Offsets != nil && offsetLoaded {
			if err := r.deps.Offsets.SaveOffset(ctx, botID, offset); err != nil && ctx.Err() == nil {
				r.logger.Warn("telegram_offset_save_error", "error", err.Error())
			}
		}
	}
}

// loadOffset reads the stored offset for the current bot. It reports false
// while the bot identity is unknown so the next iteration tries again.
func (r *Runtime) loadOffset(ctx context.Context) (int64, int64, bool) {
	if r.deps.Offsets == nil {
		return 0, 0, true
	}
	me, err := r.deps.API.Self(ctx)
	if err != nil || me == nil {
		return 0, 0, false
	}
	offset, err := r.deps.Offsets.LoadOffset(ctx, me.ID)
	if err != nil {
		r.logger.Warn("telegram_offset_load_error", "error", err.Error())
		return me.ID, 0, true
	}
	r.logger.Info("telegram_offset_loaded", "bot_id", me.ID, "offset", offset)
	return me.ID, offset, true
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
