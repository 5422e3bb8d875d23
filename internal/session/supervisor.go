package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Supervisor owns at most one Session. EnsureActive, ForceRestart and Stop
// serialize on a single-slot channel; Probe and Current read a snapshot and
// never wait behind a restart.
type Supervisor struct {
	factory Factory
	logger  *slog.Logger

	lock            chan struct{}
	current         atomic.Pointer[Session]
	restartInFlight atomic.Bool
	created         atomic.Int64
}

func NewSupervisor(factory Factory, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		factory: factory,
		logger:  logger,
		lock:    make(chan struct{}, 1),
	}
}

func (s *Supervisor) acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) release() {
	<-s.lock
}

// EnsureActive creates a session unless one is already registered.
func (s *Supervisor) EnsureActive(ctx context.Context) error {
	return s.initialize(ctx, false)
}

// ForceRestart tears down the current session, healthy or not, and creates a new one.
func (s *Supervisor) ForceRestart(ctx context.Context) error {
	return s.initialize(ctx, true)
}

func (s *Supervisor) initialize(ctx context.Context, force bool) error {
	if !force && s.current.Load() != nil {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if !force && s.current.Load() != nil {
		s.logger.Debug("session_already_active")
		return nil
	}

	op := "init"
	if force {
		op = "restart"
	}
	s.restartInFlight.Store(true)
	defer s.restartInFlight.Store(false)

	s.logger.Info("session_"+op+"_begin", "forced", force)
	s.teardownLocked()

	if s.factory == nil {
		return &SessionError{Op: op, Err: fmt.Errorf("no session factory configured")}
	}
	sess, err := s.factory(ctx)
	if err != nil {
		if ctx != nil && ctx.Err() != nil {
			s.logger.Warn("session_"+op+"_canceled", "error", ctx.Err().Error())
			return &SessionError{Op: op, Err: ctx.Err()}
		}
		s.logger.Error("session_"+op+"_failed", "error", err.Error())
		return &SessionError{Op: op, Err: err}
	}
	if sess == nil {
		return &SessionError{Op: op, Err: fmt.Errorf("factory returned no session")}
	}
	s.created.Add(1)
	s.current.Store(sess)
	s.logger.Info("session_"+op+"_ok", "session_id", sess.ID())
	return nil
}

// teardownLocked must run with the lock held. The handle is unpublished
// before it is closed so readers see either a live handle or none.
func (s *Supervisor) teardownLocked() {
	old := s.current.Swap(nil)
	if old == nil {
		return
	}
	if old.close() {
		s.logger.Info("session_disposed", "session_id", old.ID(), "age", time.Since(old.CreatedAt()).Round(time.Second).String())
	}
}

// Stop disposes the current session, if any.
func (s *Supervisor) Stop() {
	_ = s.acquire(context.Background())
	defer s.release()
	s.teardownLocked()
}

// Probe performs one lightweight round-trip on the current session. It maps
// every failure, including a missing or disposed session, to false.
func (s *Supervisor) Probe(ctx context.Context) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session_probe_panic", "panic", fmt.Sprint(r))
			healthy = false
		}
	}()
	sess := s.current.Load()
	if sess == nil {
		s.logger.Warn("session_probe_no_session")
		return false
	}
	if err := sess.Ping(ctx); err != nil {
		if errors.Is(err, ErrSessionClosed) {
			s.logger.Warn("session_probe_disposed", "session_id", sess.ID())
		} else {
			s.logger.Error("session_probe_failed", "session_id", sess.ID(), "error", err.Error())
		}
		return false
	}
	return true
}

// Current returns the registered session without waiting for the lock.
func (s *Supervisor) Current() (*Session, error) {
	sess := s.current.Load()
	if sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

func (s *Supervisor) RestartInFlight() bool {
	return s.restartInFlight.Load()
}

// Created counts sessions successfully created over the supervisor's lifetime.
func (s *Supervisor) Created() int64 {
	return s.created.Load()
}

// Run brings the first session up. Cancellation before initialization
// finishes is a shutdown, not a failure.
func (s *Supervisor) Run(ctx context.Context) error {
	err := s.EnsureActive(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.logger.Info("session_init_canceled")
		return nil
	}
	return err
}
