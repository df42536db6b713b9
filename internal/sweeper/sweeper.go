// Package sweeper runs the session expiry sweep on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/lifecycle"
	"github.com/robfig/cron/v3"
)

// Disabled turns the schedule off.
const Disabled = "off"

// Expirer marks overdue sessions expired.
type Expirer interface {
	ExpireOldSessions(ctx context.Context) (int64, error)
}

// Sweeper invokes an Expirer on a schedule. Runs never overlap.
type Sweeper struct {
	exp      Expirer
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

// New validates schedule and prepares a Sweeper. A schedule of "off"
// yields a Sweeper whose Start does nothing.
func New(exp Expirer, schedule string, timeout time.Duration, logger *slog.Logger) (*Sweeper, error) {
	logger = logger.With("system", "sweeper")
	s := &Sweeper{exp: exp, schedule: schedule, timeout: timeout, logger: logger}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}
	if schedule == Disabled {
		return s, nil
	}

	cl := cronLogger{logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Enabled reports whether a schedule is active.
func (s *Sweeper) Enabled() bool {
	return s.cron != nil
}

// Start begins scheduling and stops when the lifecycle context ends.
func (s *Sweeper) Start(lc *lifecycle.Coordinator) {
	if !s.Enabled() {
		s.logger.Info("session sweep disabled")
		return
	}

	s.cron.Start()
	s.logger.Info("session sweep scheduled", "schedule", s.schedule)

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-s.cron.Stop().Done()
		s.logger.Info("session sweep stopped")
	})
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.exp.ExpireOldSessions(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("sessions expired", "count", n, "duration", time.Since(start))
	return n, nil
}

func (s *Sweeper) tick() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		if domain.KindOf(err) == domain.KindNotInitialized {
			s.logger.Debug("sweep skipped", "reason", err)
			return
		}
		s.logger.Error("session sweep failed", "error", err)
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
