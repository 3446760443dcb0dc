package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a named periodic job driven by a cron expression.
type Task struct {
	Name     string
	Schedule string
	Run      func(context.Context) error
}

// Scheduler wraps robfig/cron and runs registered sweeps on schedule.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a scheduler. Tasks are registered before Start.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a task. Invalid cron expressions are reported as errors so the
// caller can fail fast at startup.
func (s *Scheduler) Register(task Task) error {
	_, err := s.cron.AddFunc(task.Schedule, func() {
		if err := task.Run(s.ctx); err != nil {
			s.logger.Warn("scheduled task failed",
				zap.String("task", task.Name),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("scheduled task completed", zap.String("task", task.Name))
	})
	if err != nil {
		return err
	}
	s.logger.Sugar().Infow("task registered", "task", task.Name, "schedule", task.Schedule)
	return nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running tasks and waits for the cron loop to drain.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
