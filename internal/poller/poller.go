// Package poller tracks a submitted analysis from the client side until it
// reaches a terminal status, the timeout elapses, or the caller cancels.
//
// A poll session is a small state machine with two states, polling and
// terminated. The first fetch happens one interval after the session starts.
// Every exit path stops the ticker and the timeout, so a terminated session
// never fetches again and delivers exactly one Result.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

const (
	// DefaultInterval is the delay between two status fetches.
	DefaultInterval = 2500 * time.Millisecond

	// DefaultTimeout bounds a whole session.
	DefaultTimeout = 60 * time.Second
)

// Fetcher reads the current state of an analysis owned by the caller.
type Fetcher interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.Analysis, error)
}

// Outcome is how a poll session ended.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeCanceled Outcome = "canceled"
)

// Result is the single value delivered when a session terminates.
type Result struct {
	Outcome  Outcome
	Analysis *domain.Analysis // Last record seen, nil if no fetch succeeded
	Err      error            // Set for timeouts, cancellations and fatal fetch errors
	Attempts int              // Number of fetches performed
}

// Config tunes a Poller. Zero values fall back to the defaults.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration

	// OnUpdate, if set, is called after every fetch from the session goroutine.
	OnUpdate func(attempt int, a *domain.Analysis, err error)
}

// Poller runs poll sessions against a Fetcher.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	onUpdate func(int, *domain.Analysis, error)
	logger   *slog.Logger
}

// New creates a Poller.
func New(fetcher Fetcher, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		fetcher:  fetcher,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		onUpdate: cfg.OnUpdate,
		logger:   logger,
	}
}

// Session is a running poll. Exactly one Result is sent on Done.
type Session struct {
	done   chan Result
	cancel context.CancelFunc
}

// Done returns the channel that receives the session's Result. It is closed
// after the Result is sent.
func (s *Session) Done() <-chan Result {
	return s.done
}

// Cancel stops the session at the next tick boundary or aborts an in-flight
// fetch. Calling it more than once, or after termination, has no effect.
func (s *Session) Cancel() {
	s.cancel()
}

// Start begins polling id in the background.
func (p *Poller) Start(ctx context.Context, id uuid.UUID) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		done:   make(chan Result, 1),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		s.done <- p.run(ctx, id)
		close(s.done)
	}()

	return s
}

// Poll blocks until the analysis is terminal, the timeout elapses or ctx is
// canceled.
func (p *Poller) Poll(ctx context.Context, id uuid.UUID) Result {
	return <-p.Start(ctx, id).Done()
}

func (p *Poller) run(ctx context.Context, id uuid.UUID) Result {
	const op = "poller.poll"

	deadline := time.Now().Add(p.timeout)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var (
		last     *domain.Analysis
		attempts int
	)

	timedOut := func() Result {
		p.logger.Info("poll timed out", "analysis_id", id, "attempts", attempts)
		return Result{
			Outcome:  OutcomeTimeout,
			Analysis: last,
			Err:      domain.Timeout(op, fmt.Sprintf("analysis still processing after %s", p.timeout)),
			Attempts: attempts,
		}
	}
	canceled := func() Result {
		return Result{Outcome: OutcomeCanceled, Analysis: last, Err: ctx.Err(), Attempts: attempts}
	}

	for {
		select {
		case <-ctx.Done():
			return canceled()
		case <-timer.C:
			return timedOut()
		case <-ticker.C:
		}

		// Ticker and timer can be ready together; the timeout wins.
		if !time.Now().Before(deadline) {
			return timedOut()
		}

		attempts++
		fetchCtx, cancelFetch := context.WithDeadline(ctx, deadline)
		a, err := p.fetcher.GetAnalysis(fetchCtx, id)
		cancelFetch()

		if p.onUpdate != nil {
			p.onUpdate(attempts, a, err)
		}

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return canceled()
			case errors.Is(err, context.DeadlineExceeded) && !time.Now().Before(deadline):
				return timedOut()
			case isFatal(err):
				p.logger.Warn("poll stopped on fatal error",
					"analysis_id", id, "attempt", attempts, "error", err)
				return Result{Outcome: OutcomeFailed, Analysis: last, Err: err, Attempts: attempts}
			}
			p.logger.Debug("transient poll error", "analysis_id", id, "attempt", attempts, "error", err)
			continue
		}

		if a == nil {
			continue
		}
		last = a
		switch a.Status {
		case domain.AnalysisStatusComplete:
			return Result{Outcome: OutcomeComplete, Analysis: a, Attempts: attempts}
		case domain.AnalysisStatusFailed:
			return Result{Outcome: OutcomeFailed, Analysis: a, Attempts: attempts}
		}
	}
}

// isFatal reports errors that polling again cannot fix.
func isFatal(err error) bool {
	switch domain.ErrorCode(err) {
	case domain.EUNAUTHORIZED, domain.EFORBIDDEN, domain.ENOTFOUND:
		return true
	}
	return false
}
