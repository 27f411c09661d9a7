// Package jobs tracks merge jobs in memory and fans their progress out to
// any number of concurrent observers.
package jobs

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"pdfmerger/internal/models"
)

var (
	ErrNotFound    = errors.New("job not found")
	ErrTerminal    = errors.New("job already finished")
	ErrWaitTimeout = errors.New("wait timed out")
)

// state is one immutable revision of a job. A new value is published for
// every mutation so readers never observe a half-applied update.
type state struct {
	status      models.JobStatus
	total       int
	processed   int
	percent     float64
	currentFile string
	errMsg      string
	result      []byte
	revision    uint64
	updatedAt   time.Time
}

// Job is a single merge request. Its mutators are meant to be called from the
// one goroutine that runs the job; Snapshot and the progress channel are safe
// for concurrent use.
type Job struct {
	id         string
	outputName string
	createdAt  time.Time

	writeMu sync.Mutex
	cur     atomic.Pointer[state]

	ch *Channel
}

func newJob(id, outputName string, now time.Time) *Job {
	j := &Job{
		id:         id,
		outputName: outputName,
		createdAt:  now,
	}
	j.cur.Store(&state{status: models.StatusQueued, updatedAt: now})
	j.ch = newChannel(j.Snapshot)
	return j
}

func (j *Job) ID() string           { return j.id }
func (j *Job) OutputName() string   { return j.outputName }
func (j *Job) CreatedAt() time.Time { return j.createdAt }

// Channel returns the job's progress channel.
func (j *Job) Channel() *Channel { return j.ch }

// Broadcast publishes the current snapshot to every registered listener.
func (j *Job) Broadcast() error { return j.ch.Broadcast() }

// Status is shorthand for Snapshot().Status.
func (j *Job) Status() models.JobStatus { return j.cur.Load().status }

// Revision is shorthand for Snapshot().Revision.
func (j *Job) Revision() uint64 { return j.cur.Load().revision }

// Result returns the merged document once the job has completed.
func (j *Job) Result() ([]byte, bool) {
	s := j.cur.Load()
	if s.status != models.StatusCompleted || s.result == nil {
		return nil, false
	}
	return s.result, true
}

// Snapshot returns the externally visible state of the job.
func (j *Job) Snapshot() models.Snapshot {
	s := j.cur.Load()
	return models.Snapshot{
		JobID:          j.id,
		Status:         s.status,
		TotalPages:     s.total,
		ProcessedPages: s.processed,
		Percent:        s.percent,
		Error:          s.errMsg,
		HasResult:      s.result != nil,
		OutputName:     j.outputName,
		CurrentFile:    s.currentFile,
		Revision:       s.revision,
		UpdatedAt:      s.updatedAt,
	}
}

// MarkRunning moves a queued job to running and clears any stale error.
func (j *Job) MarkRunning() error {
	return j.mutate(func(s *state) {
		s.status = models.StatusRunning
		s.errMsg = ""
	})
}

// UpdateProgress records that processed of total pages are done. A blank
// currentFile clears the label once every page has been processed.
func (j *Job) UpdateProgress(processed, total int, currentFile string) error {
	return j.mutate(func(s *state) {
		s.processed = processed
		s.total = total
		switch {
		case currentFile != "":
			s.currentFile = currentFile
		case processed >= total:
			s.currentFile = ""
		}
		s.percent = percentOf(processed, total)
	})
}

// MarkCompleted stores the result and forces the counters to 100%.
func (j *Job) MarkCompleted(result []byte) error {
	if result == nil {
		result = []byte{}
	}
	return j.mutate(func(s *state) {
		s.status = models.StatusCompleted
		s.result = result
		s.processed = s.total
		s.percent = 100
		s.currentFile = ""
		s.errMsg = ""
	})
}

// MarkError moves the job to the error state with a human readable message.
func (j *Job) MarkError(message string) error {
	return j.mutate(func(s *state) {
		s.status = models.StatusError
		s.errMsg = message
		s.currentFile = ""
		s.result = nil
	})
}

func (j *Job) mutate(fn func(*state)) error {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	prev := j.cur.Load()
	if prev.status.Terminal() {
		return ErrTerminal
	}
	next := *prev
	fn(&next)
	next.revision = prev.revision + 1
	next.updatedAt = time.Now()
	j.cur.Store(&next)
	return nil
}

func percentOf(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(processed)/float64(total)*100*100) / 100
}
