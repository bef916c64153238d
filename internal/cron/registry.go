package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is one unit of scheduled work. Run must be safe to repeat: a cycle can
// be retried after a partial failure.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry runs jobs in registration order. Names are unique because they
// label metrics and log lines.
type Registry struct {
	jobs []Job
}

// NewRegistry panics on a duplicate job name; registration happens once at
// startup.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			panic(err)
		}
	}
	return registry
}

// Register appends job. Nil jobs are ignored so optional jobs can be passed
// through unconditionally.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if slices.ContainsFunc(r.jobs, func(existing Job) bool { return existing.Name() == job.Name() }) {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
