package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs on 6-field cron specs. A job whose previous run has not
// finished is skipped rather than started concurrently.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job under spec. errFn, when non-nil, receives job failures.
func (s *Scheduler) AddJob(spec string, job func(context.Context) error, errFn func(error)) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil && errFn != nil {
			errFn(err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels the context handed to running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
