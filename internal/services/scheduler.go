package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"billflow/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRecurringSchedule fires the pass once a day at 02:00
const DefaultRecurringSchedule = "0 2 * * *"

// PassRunner is the work the scheduler triggers on each tick
type PassRunner interface {
	ProcessRecurringInvoices(ctx context.Context) error
}

// RecurringScheduler triggers the recurring pass on a cron schedule. A tick
// that arrives while the previous pass is still running is skipped, and a
// failed or panicking pass never stops later ticks.
type RecurringScheduler struct {
	runner   PassRunner
	schedule string
	location *time.Location
	log      *zap.Logger

	mu        sync.Mutex
	cron      *cron.Cron
	entryID   cron.EntryID
	isRunning bool
}

func NewRecurringScheduler(runner PassRunner, schedule string, loc *time.Location, log *zap.Logger) *RecurringScheduler {
	if schedule == "" {
		schedule = DefaultRecurringSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RecurringScheduler{
		runner:   runner,
		schedule: schedule,
		location: loc,
		log:      log.Named("scheduler"),
	}
}

// Start registers the pass and starts the cron runner. Calling Start on a
// running scheduler is a no-op.
func (s *RecurringScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	cronLog := logger.NewCronLogger(s.log)
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLog),
		cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		),
	)

	id, err := c.AddFunc(s.schedule, s.tick)
	if err != nil {
		return fmt.Errorf("invalid recurring schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.entryID = id
	s.isRunning = true

	s.log.Info("recurring scheduler started",
		zap.String("schedule", s.schedule),
		zap.String("timezone", s.location.String()),
		zap.Time("next_run_at", c.Entry(id).Next),
	)
	return nil
}

// Stop stops scheduling and waits for a running pass to finish, or for ctx
// to expire.
func (s *RecurringScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	c := s.cron
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		s.log.Info("recurring scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("recurring scheduler stop timed out")
		return ctx.Err()
	}
}

// NextRun reports when the pass fires next
func (s *RecurringScheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entryID).Next, true
}

func (s *RecurringScheduler) tick() {
	ctx := context.Background()
	start := time.Now()

	err := s.runner.ProcessRecurringInvoices(ctx)
	switch {
	case err == nil:
		s.log.Info("recurring tick finished", zap.Duration("elapsed", time.Since(start)))
	case errors.Is(err, ErrPassInProgress):
		s.log.Info("recurring tick skipped", zap.Error(err))
	default:
		s.log.Error("recurring tick failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
}
