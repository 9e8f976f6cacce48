package cron

import (
	"context"
	"sync"
	"time"
)

// Job is one unit of scheduled work. Run must be safe to repeat: a crashed
// cycle is simply retried on the next tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule pairs a job with its cadence. Every <= 0 runs the job on every tick.
type Schedule struct {
	Job   Job
	Every time.Duration
}

type entry struct {
	Schedule
	next time.Time
}

// Registry tracks scheduled jobs and when each is next due.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

func NewRegistry(schedules ...Schedule) *Registry {
	r := &Registry{}
	for _, s := range schedules {
		r.Add(s.Job, s.Every)
	}
	return r
}

// Add schedules job; a job is due on the first tick after registration.
func (r *Registry) Add(job Job, every time.Duration) {
	if job == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &entry{Schedule: Schedule{Job: job, Every: every}})
}

// dueSlack absorbs tick jitter so a job ticked at its own cadence is not
// pushed back a whole period when a tick lands a little early.
const dueSlack = time.Second

// Due returns the jobs whose next run is at or before now (within dueSlack),
// in registration order. Each due job's next run advances from its previous
// slot, not from now; a job that fell more than a period behind restarts
// from now.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, e := range r.entries {
		if e.next.After(now.Add(dueSlack)) {
			continue
		}
		due = append(due, e.Job)
		if e.Every <= 0 {
			continue
		}
		if e.next.IsZero() {
			e.next = now
		}
		e.next = e.next.Add(e.Every)
		if !e.next.After(now) {
			e.next = now.Add(e.Every)
		}
	}
	return due
}

// Names lists the registered job names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Job.Name())
	}
	return names
}
