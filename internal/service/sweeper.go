package service

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// LockExpirer reclaims lapsed seat locks.  *Bookings implements it.
type LockExpirer interface {
	ExpireLocks(ctx context.Context, limit int) (int, error)
}

// Sweeper periodically reclaims expired seat locks.  The job runs in
// singleton mode so a slow sweep is never overlapped by the next one.
type Sweeper struct {
	expirer  LockExpirer
	interval time.Duration
	batch    int
	log      logrus.FieldLogger
	sched    gocron.Scheduler
	stop     sync.Once
}

func NewSweeper(expirer LockExpirer, interval time.Duration, batch int, log logrus.FieldLogger) *Sweeper {
	if batch <= 0 {
		batch = 500
	}
	return &Sweeper{expirer: expirer, interval: interval, batch: batch, log: log}
}

// Sweep runs one reclaim pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.expirer.ExpireLocks(ctx, s.batch)
	if err != nil {
		return 0, errors.Wrap(err, "sweep expired locks")
	}
	if n > 0 {
		s.log.WithField("seats", n).Info("expired seat locks reclaimed")
	}
	return n, nil
}

// Start schedules Sweep every interval until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.Newf("sweep interval must be positive, got %s", s.interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "create scheduler")
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				s.log.WithError(err).Error("lock sweep failed")
			}
		}),
		gocron.WithName("expired-seat-locks"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return errors.Wrap(err, "schedule lock sweep")
	}
	s.sched = sched
	sched.Start()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.sched == nil {
		return
	}
	s.stop.Do(func() {
		if err := s.sched.Shutdown(); err != nil {
			s.log.WithError(err).Warn("stop lock sweeper")
		}
	})
}
