package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// RunnerConfig tunes the background job runner.
type RunnerConfig struct {
	// BatchesPerSecond throttles batch commits against the graph store.
	// Zero disables the throttle.
	BatchesPerSecond float64
	// MaxConcurrent bounds simultaneously running consolidations. The
	// default of 1 serializes them; concurrent passes over the same
	// vocabulary would race each other's merges.
	MaxConcurrent int
}

// Runner owns the lifecycle of consolidation jobs: an in-memory registry of
// job records plus one worker goroutine per running job. The job record is
// the only durable artifact of a run; it survives until explicitly deleted.
type Runner struct {
	ctrl *Controller
	log  *slog.Logger

	// OnStatus, when set, is invoked after every status transition with a
	// snapshot of the job. Used to publish job events.
	OnStatus func(domain.ConsolidationJob)

	sem chan struct{}

	mu      sync.Mutex
	jobs    map[uuid.UUID]*domain.ConsolidationJob
	cancels map[uuid.UUID]context.CancelFunc
}

// NewRunner creates a Runner around ctrl.
func NewRunner(ctrl *Controller, cfg RunnerConfig, log *slog.Logger) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.BatchesPerSecond > 0 {
		ctrl.Throttle = rate.NewLimiter(rate.Limit(cfg.BatchesPerSecond), 1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		ctrl:    ctrl,
		log:     log,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		jobs:    make(map[uuid.UUID]*domain.ConsolidationJob),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit registers a new consolidation job and starts its worker. The job's
// context is detached from the caller's: submitting over HTTP must not tie
// the run's lifetime to the request.
func (r *Runner) Submit(params RunParams) (uuid.UUID, error) {
	id := uuid.New()
	job := &domain.ConsolidationJob{
		ID:          id,
		Status:      domain.JobPending,
		DryRun:      params.DryRun,
		SubmittedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.jobs[id] = job
	r.cancels[id] = cancel
	r.mu.Unlock()

	r.notify(id)
	go r.run(ctx, id, params)
	return id, nil
}

// Get returns a snapshot of the job.
func (r *Runner) Get(id uuid.UUID) (domain.ConsolidationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ConsolidationJob{}, fmt.Errorf("job %s: %w", id, domain.ErrJobNotFound)
	}
	return *job, nil
}

// List returns snapshots of every known job, most recently submitted first.
func (r *Runner) List() []domain.ConsolidationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ConsolidationJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].SubmittedAt.After(out[j-1].SubmittedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Cancel requests cancellation of a pending or running job. The worker
// observes it at the next batch boundary; work already committed stays
// committed.
func (r *Runner) Cancel(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrJobNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, domain.ErrJobNotCancellable)
	}
	if cancel, ok := r.cancels[id]; ok {
		cancel()
	}
	return nil
}

// Delete discards a terminal job record and its report.
func (r *Runner) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrJobNotFound)
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, domain.ErrJobNotCancellable)
	}
	delete(r.jobs, id)
	delete(r.cancels, id)
	return nil
}

func (r *Runner) run(ctx context.Context, id uuid.UUID, params RunParams) {
	defer func() {
		r.mu.Lock()
		delete(r.cancels, id)
		r.mu.Unlock()
	}()

	// Hold the slot for the whole run; a cancelled wait means the job was
	// cancelled while still queued.
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		r.finish(id, nil, ctx.Err())
		return
	}

	r.update(id, func(job *domain.ConsolidationJob) {
		job.Status = domain.JobRunning
		job.StartedAt = time.Now().UTC()
	})
	r.notify(id)

	report, err := r.ctrl.Run(ctx, params, func(pct int) {
		r.update(id, func(job *domain.ConsolidationJob) { job.Progress = pct })
	})
	r.finish(id, report, err)
}

func (r *Runner) finish(id uuid.UUID, report *domain.ConsolidationReport, err error) {
	r.update(id, func(job *domain.ConsolidationJob) {
		job.FinishedAt = time.Now().UTC()
		job.Result = report
		switch {
		case err == nil:
			job.Status = domain.JobCompleted
			job.Progress = 100
		case errors.Is(err, context.Canceled):
			job.Status = domain.JobCancelled
		default:
			job.Status = domain.JobFailed
			job.Error = err.Error()
		}
	})

	job, getErr := r.Get(id)
	if getErr == nil {
		r.log.Info("consolidation job finished",
			"job_id", id, "status", job.Status, "progress", job.Progress)
	}
	r.notify(id)
}

func (r *Runner) update(id uuid.UUID, fn func(*domain.ConsolidationJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

func (r *Runner) notify(id uuid.UUID) {
	if r.OnStatus == nil {
		return
	}
	if job, err := r.Get(id); err == nil {
		r.OnStatus(job)
	}
}
