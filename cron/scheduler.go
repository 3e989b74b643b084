// Package cron runs periodic maintenance jobs on a gocron scheduler.
package cron

import (
	"fmt"
	"sort"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/linanwx/sharebridge/logger"
)

const (
	JobKindEvery = "every"
	JobKindCron  = "cron"
)

// Job describes one maintenance job.
type Job struct {
	ID         string        `yaml:"id"`
	Kind       string        `yaml:"kind,omitempty"`
	Every      time.Duration `yaml:"every,omitempty"`
	Expr       string        `yaml:"expr,omitempty"`
	RunOnStart bool          `yaml:"runOnStart,omitempty"`
	Enabled    bool          `yaml:"enabled"`
}

// Task is the work a job performs.
type Task func() error

// Scheduler owns the registered jobs.
type Scheduler struct {
	cron    gocron.Scheduler
	jobs    map[string]Job
	cancels map[string]func()
	mu      sync.Mutex
}

// NewScheduler creates a scheduler. Options are passed to gocron.
func NewScheduler(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	sch, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		cron:    sch,
		jobs:    make(map[string]Job),
		cancels: make(map[string]func()),
	}, nil
}

// Add registers job, replacing any job with the same ID. Disabled jobs are
// recorded but not scheduled.
func (s *Scheduler) Add(job Job, task Task) error {
	job = Normalize(job)
	if err := Validate(job); err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("job %s: task is nil", job.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.unscheduleLocked(job.ID)
	s.jobs[job.ID] = job
	cancel, err := s.scheduleLocked(job, task)
	if err != nil {
		delete(s.jobs, job.ID)
		return err
	}
	if cancel != nil {
		s.cancels[job.ID] = cancel
	}
	return nil
}

// Remove unschedules and forgets a job.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	s.unscheduleLocked(id)
	delete(s.jobs, id)
	return true
}

// Jobs lists registered jobs sorted by ID.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *Scheduler) Start() {
	if s.cron != nil {
		s.cron.Start()
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id := range s.cancels {
		s.unscheduleLocked(id)
	}
	s.mu.Unlock()

	if s.cron != nil {
		if err := s.cron.Shutdown(); err != nil {
			logger.Warn("scheduler shutdown failed", "err", err)
		}
	}
}

func (s *Scheduler) scheduleLocked(job Job, task Task) (func(), error) {
	if !job.Enabled {
		return nil, nil
	}

	var def gocron.JobDefinition
	switch job.Kind {
	case JobKindEvery:
		def = gocron.DurationJob(job.Every)
	case JobKindCron:
		def = gocron.CronJob(job.Expr, false)
	default:
		return nil, fmt.Errorf("unsupported job kind: %s", job.Kind)
	}

	opts := []gocron.JobOption{
		gocron.WithName(job.ID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if job.RunOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	registered, err := s.cron.NewJob(def, gocron.NewTask(func(id string) {
		if err := task(); err != nil {
			logger.Warn("maintenance job failed", "id", id, "err", err)
		}
	}, job.ID), opts...)
	if err != nil {
		return nil, fmt.Errorf("schedule job %s: %w", job.ID, err)
	}
	return func() { _ = s.cron.RemoveJob(registered.ID()) }, nil
}

func (s *Scheduler) unscheduleLocked(id string) {
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}
