package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// defaultTaskTimeout bounds a single task run so a stuck dependency
// cannot wedge the scheduler worker.
const defaultTaskTimeout = 30 * time.Second

// Task is a unit of periodic background work, such as trimming history
// rows or purging stale records.
type Task struct {
	// Name identifies the task in logs.
	Name string
	// Interval is how often the task runs.
	Interval time.Duration
	// Run performs the work. Errors are logged, never fatal.
	Run func(ctx context.Context) error
}

// Scheduler runs registered maintenance tasks at fixed intervals on a
// shared gocron scheduler.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tasks     []Task
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Scheduler with no tasks registered.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		timeout:   defaultTaskTimeout,
		logger:    logger,
	}
}

// Register adds a task to be scheduled when Start is called. Register
// must not be called after Start.
func (s *Scheduler) Register(task Task) {
	s.tasks = append(s.tasks, task)
}

// TaskCount returns the number of registered tasks.
func (s *Scheduler) TaskCount() int {
	return len(s.tasks)
}

// Start schedules every registered task and starts the scheduler in the
// background. The first run of each task happens after one full interval.
func (s *Scheduler) Start() error {
	for _, task := range s.tasks {
		task := task
		_, err := s.scheduler.Every(task.Interval).Tag(task.Name).Do(func() {
			s.runTask(task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", task.Name, err)
		}
		s.logger.Info("scheduled background task",
			zap.String("task", task.Name),
			zap.Duration("interval", task.Interval))
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and waits for any running task to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runTask(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Error("background task failed",
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	s.logger.Debug("background task completed",
		zap.String("task", task.Name),
		zap.Duration("duration", time.Since(start)))
}
