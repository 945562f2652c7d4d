package scheduler

import (
	"context"
	"time"

	"rental-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OverdueScanner finds rentals past their end date
type OverdueScanner interface {
	ScanOverdue(ctx context.Context) (int, error)
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	scanner OverdueScanner
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler creates a scheduler running the overdue scan on spec, a
// six-field cron expression evaluated in UTC.
func NewScheduler(scanner OverdueScanner, spec string) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron:    c,
		scanner: scanner,
		timeout: time.Minute,
		logger:  util.GetLogger(),
	}

	if _, err := s.cron.AddFunc(spec, s.scanOverdue); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) scanOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	count, err := s.scanner.ScanOverdue(ctx)
	if err != nil {
		s.logger.Error("Overdue scan failed", zap.Error(err))
		return
	}
	s.logger.Debug("Overdue scan ran", zap.Int("overdue", count))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler")
	s.cron.Start()
}

// Stop waits for a running scan to finish and stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns how many jobs are registered
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
