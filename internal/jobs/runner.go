package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrNothingSelected is returned when a plan selects zero pages.
var ErrNothingSelected = errors.New("no pages selected")

// ProgressFunc is called after each output page with the number of pages
// done so far and the label of the file the page came from.
type ProgressFunc func(processed int, currentFile string)

// Assembler builds the output of one job. Plan is called first and must fail
// for any bad input; Assemble then produces the document page by page.
type Assembler interface {
	Plan(ctx context.Context) (int, error)
	Assemble(ctx context.Context, progress ProgressFunc) ([]byte, error)
}

// Start runs asm for j in a new goroutine. It returns immediately.
func (r *Registry) Start(ctx context.Context, j *Job, asm Assembler) {
	go r.Run(ctx, j, asm)
}

// Run drives j through running to completed or error. A panic in asm ends
// the job in the error state and never escapes Run.
func (r *Registry) Run(ctx context.Context, j *Job, asm Assembler) {
	if err := j.MarkRunning(); err != nil {
		r.logger.Warn("job not started", "job_id", j.id, "error", err)
		return
	}
	r.broadcast(j)

	started := time.Now()
	logger := r.logger.With("job_id", j.id)
	logger.Info("job started")

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job panicked", "panic", rec, "stack", string(debug.Stack()))
			r.fail(j, fmt.Errorf("internal error: %v", rec))
		}
		snap := j.Snapshot()
		if r.hooks.Finished != nil {
			r.hooks.Finished(snap, time.Since(started))
		}
		logger.Info("job finished", "status", snap.Status, "pages", snap.ProcessedPages, "elapsed", time.Since(started))
	}()

	total, err := asm.Plan(ctx)
	if err != nil {
		r.fail(j, err)
		return
	}
	if total <= 0 {
		r.fail(j, ErrNothingSelected)
		return
	}

	data, err := asm.Assemble(ctx, func(processed int, currentFile string) {
		if err := j.UpdateProgress(processed, total, currentFile); err != nil {
			return
		}
		r.broadcast(j)
		if r.hooks.PageProcessed != nil {
			r.hooks.PageProcessed(j)
		}
	})
	if err != nil {
		r.fail(j, err)
		return
	}

	if err := j.MarkCompleted(data); err != nil {
		logger.Warn("job completion dropped", "error", err)
		return
	}
	r.broadcast(j)
}

func (r *Registry) fail(j *Job, err error) {
	r.logger.Warn("job failed", "job_id", j.id, "error", err)
	if j.MarkError(err.Error()) == nil {
		r.broadcast(j)
	}
}

func (r *Registry) broadcast(j *Job) {
	if err := j.Broadcast(); err != nil {
		r.logger.Error("broadcast failed", "job_id", j.id, "error", err)
	}
}
