package jobs

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfmerger/internal/models"
)

// Hooks lets callers observe the job lifecycle. Every field is optional.
type Hooks struct {
	Created          func(j *Job)
	PageProcessed    func(j *Job)
	Finished         func(s models.Snapshot, elapsed time.Duration)
	ListenersChanged func(delta int)
}

// Registry is the process-wide table of jobs.
type Registry struct {
	logger *slog.Logger
	hooks  Hooks

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewRegistry(logger *slog.Logger, hooks Hooks) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		hooks:  hooks,
		jobs:   make(map[string]*Job),
	}
}

// Create registers a new queued job.
func (r *Registry) Create(outputName string) *Job {
	j := newJob(newID(), outputName, time.Now())
	if r.hooks.ListenersChanged != nil {
		j.ch.setOnChange(r.hooks.ListenersChanged)
	}

	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()

	if r.hooks.Created != nil {
		r.hooks.Created(j)
	}
	r.logger.Info("job created", "job_id", j.id, "output_name", outputName)
	return j
}

// Lookup returns the job with the given id or ErrNotFound.
func (r *Registry) Lookup(id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns snapshots of the most recently updated jobs, newest first.
// A limit of zero or less returns every job.
func (r *Registry) List(limit int) []models.Snapshot {
	r.mu.RLock()
	snaps := make([]models.Snapshot, 0, len(r.jobs))
	for _, j := range r.jobs {
		snaps = append(snaps, j.Snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(snaps, func(a, b models.Snapshot) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// StartEviction periodically drops finished jobs that have not changed for
// ttl. It does nothing when either duration is not positive.
func (r *Registry) StartEviction(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.evict(now, ttl)
			}
		}
	}()
}

func (r *Registry) evict(now time.Time, ttl time.Duration) int {
	cutoff := now.Add(-ttl)

	r.mu.Lock()
	removed := 0
	for id, j := range r.jobs {
		s := j.cur.Load()
		if s.status.Terminal() && s.updatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Info("evicted finished jobs", "removed_jobs", removed)
	}
	return removed
}

// newID returns 128 random bits as 32 lowercase hex characters.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
