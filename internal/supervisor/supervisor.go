// Package supervisor owns the top-level loop: the cancellation flag, the
// reconnection policy, and graceful shutdown on external interrupt
// (spec.md §4.5).
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/make-os/kitminer/internal/session"
	"github.com/make-os/kitminer/pkgs/logger"
	"github.com/make-os/kitminer/util"
	"github.com/pkg/errors"
)

// SessionRunner is the subset of *session.Session the Supervisor drives.
// Defined as an interface so tests can substitute a fake session.
type SessionRunner interface {
	Run(ctx context.Context, cancel util.Interrupt) error
}

// Supervisor re-enters Disconnected after every session exit until the
// cancellation flag is set.
type Supervisor struct {
	runner SessionRunner
	cancel util.Interrupt
	log    logger.Logger
}

// New builds a Supervisor around a session runner.
func New(runner SessionRunner, log logger.Logger) *Supervisor {
	return &Supervisor{
		runner: runner,
		cancel: util.NewInterrupt(),
		log:    log,
	}
}

// Cancel returns the cancellation flag, read by the search engine and the
// session's inbound loop (spec.md §3, §5).
func (s *Supervisor) Cancel() util.Interrupt { return s.cancel }

// ListenForInterrupt installs the shutdown hook: SIGINT/SIGTERM sets the
// cancellation flag (spec.md §4.5, teacher: cmd/startcmd/start.go).
func (s *Supervisor) ListenForInterrupt() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		s.log.Info("shutdown signal received")
		s.cancel.Close()
	}()
}

// Run drives the session state machine in an infinite loop, reconnecting
// after a fixed 3-second wait on transient errors, until the cancellation
// flag is set or a fatal error is returned. Exit code policy (spec.md §6):
// returns nil on cancellation-driven shutdown, non-nil only on a fatal,
// uncatchable error.
func (s *Supervisor) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 3 * time.Second
	bo.MaxInterval = 3 * time.Second // spec.md §7: fixed 3s transient wait
	bo.RandomizationFactor = 0       // no jitter: spec.md mandates exactly 3s
	bo.MaxElapsedTime = 0            // unbounded retries

	for {
		if s.cancel.IsClosed() {
			return nil
		}

		err := s.runner.Run(ctx, s.cancel)
		if s.cancel.IsClosed() {
			return nil
		}
		if err == nil {
			continue // session ended cleanly; reconnect immediately
		}
		if errors.Is(err, session.ErrSessionClosed) {
			s.log.Info("coordinator closed the session, reconnecting")
			continue // spec.md §4.3 state 6: reconnect immediately, no backoff
		}
		if !session.IsTransient(err) {
			return err // fatal: clock anomaly or similar unrecoverable error
		}

		wait := bo.NextBackOff()
		s.log.Warn("session ended, reconnecting", "err", err, "wait", wait)
		select {
		case <-time.After(wait):
		case <-s.cancel:
			return nil
		}
	}
}
