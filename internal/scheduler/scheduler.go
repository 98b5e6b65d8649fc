// Package scheduler runs monitoring cycles on fixed intervals.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Runner is the slice of the pipeline the scheduler drives.
type Runner interface {
	RunCycle(ctx context.Context) (monitor.CycleResult, error)
	RunSource(ctx context.Context, name string) ([]monitor.Document, error)
}

// Frequencies maps source kinds to check intervals. A zero interval disables
// the per-source schedule for that kind.
type Frequencies func(kind monitor.SourceKind) time.Duration

// Scheduler wraps a cron runner with one job per source plus a full cycle.
// Overlapping runs of the same job are skipped, not queued.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// New registers all jobs. Sources whose kind has no configured interval are
// only covered by the full cycle.
func New(runner Runner, sources []monitor.Source, freq Frequencies, fullCycle time.Duration, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		runner: runner,
		logger: logger,
		ctx:    context.Background(),
	}
	cronLogger := &zapCronLogger{logger: logger}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	for _, src := range sources {
		interval := freq(src.Kind)
		if interval <= 0 {
			continue
		}
		name := src.Name
		s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
			if _, err := s.runner.RunSource(s.jobCtx(), name); err != nil {
				s.logger.Warn("scheduled source check failed", zap.String("source", name), zap.Error(err))
			}
		}))
		logger.Info("source scheduled", zap.String("source", name), zap.Duration("every", interval))
	}

	if fullCycle > 0 {
		s.cron.Schedule(cron.Every(fullCycle), cron.FuncJob(func() {
			if _, err := s.runner.RunCycle(s.jobCtx()); err != nil {
				s.logger.Warn("scheduled cycle failed", zap.Error(err))
			}
		}))
		logger.Info("full cycle scheduled", zap.Duration("every", fullCycle))
	}

	return s
}

// Run executes one immediate full cycle, then blocks running the schedule
// until ctx is canceled. Running jobs are drained before returning.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Warn("initial cycle failed", zap.Error(err))
	}

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) jobCtx() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// zapCronLogger adapts zap to the cron logging interface.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l *zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append([]any{"error", err}, keysAndValues...)...)
}
