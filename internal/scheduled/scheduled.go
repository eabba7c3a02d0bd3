// Package scheduled drives periodic jobs off a cron expression (§6.5
// "sync interval"); the serve command uses it for the periodic sync tick.
package scheduled

import (
	"context"
	"log/slog"

	"github.com/robfig/cron"
)

// Job is one periodic unit of work; its error is logged, never fatal,
// so one bad tick doesn't stop the schedule.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron.Cron, running each Job's Run against a fresh
// background context per tick.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New builds a Scheduler. Call Start to begin ticking, Stop to drain.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// AddJob schedules job on spec, in robfig/cron v1 syntax: a seconds-first
// cron expression or a descriptor such as "@every 1h".
func (s *Scheduler) AddJob(spec string, job Job) error {
	return s.cron.AddFunc(spec, func() {
		s.log.Info("scheduled job starting", "job", job.Name)
		if err := job.Run(context.Background()); err != nil {
			s.log.Error("scheduled job failed", "job", job.Name, "error", err)
			return
		}
		s.log.Info("scheduled job finished", "job", job.Name)
	})
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to return.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
