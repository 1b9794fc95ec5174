package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of work run every cycle. Name must be unique within a
// registry; it labels logs and metrics.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry registers jobs in run order, skipping nils.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{index: map[string]int{}}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron: job %T has no name", job)
	}
	if r.index == nil {
		r.index = map[string]int{}
	}
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("cron: job %q registered twice", name)
	}
	r.index[name] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return nil
}

// Only narrows the registry to the named jobs, keeping registration order.
// An empty list returns the registry unchanged.
func (r *Registry) Only(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := r.index[name]; !ok {
			return nil, fmt.Errorf("cron: unknown job %q (have %s)", name, strings.Join(r.Names(), ", "))
		}
		keep[name] = true
	}
	out := &Registry{index: map[string]int{}}
	for _, job := range r.jobs {
		if keep[job.Name()] {
			_ = out.Register(job)
		}
	}
	return out, nil
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Jobs returns a copy in run order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
