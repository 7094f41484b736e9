// Package sched runs the retention sweeps on cron schedules.
package sched

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"paperbase.org/internal/obs"
)

// Job is one scheduled sweep. Errors are logged; the schedule keeps firing.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Jobs are wrapped so a panicking or
// still-running sweep never wedges the schedule.
type Scheduler struct {
	cron       *cron.Cron
	onStart    []namedJob
	runOnStart bool
}

type namedJob struct {
	name string
	job  Job
}

// Option configures Scheduler behavior.
type Option func(*Scheduler)

// WithRunOnStart fires every registered job once at Start, in addition to
// its cron schedule.
func WithRunOnStart() Option {
	return func(s *Scheduler) { s.runOnStart = true }
}

// New creates a stopped scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job under a standard 5-field cron expression.
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { run(name, job) })
	if err != nil {
		return err
	}
	s.onStart = append(s.onStart, namedJob{name: name, job: job})
	return nil
}

func run(name string, job Job) {
	start := time.Now()
	if err := job(context.Background()); err != nil {
		obs.Error("scheduled job failed", err, map[string]any{"job": name})
		return
	}
	obs.Log(map[string]any{
		"level":       "info",
		"msg":         "scheduled job finished",
		"job":         name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Start launches the cron loop. With run-on-start enabled, every job fires
// once synchronously first so a freshly deployed service catches up on
// overdue sweeps before waiting for the next tick.
func (s *Scheduler) Start() {
	if s.runOnStart {
		for _, nj := range s.onStart {
			run(nj.name, nj.job)
		}
	}
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
