// Package generation runs image batches and regenerations in the background.
// Each job is driven by one goroutine that calls the provider sequentially and
// records every result before moving on.
package generation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
	"stylegen/internal/providers/image"
)

// DefaultDelay is the pause between two provider calls of the same job.
const DefaultDelay = time.Second

// SourceFetcher loads the bytes behind an image reference.
type SourceFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Options configures a Runner.
type Options struct {
	Generator image.Generator
	Fetcher   SourceFetcher
	// Delay between provider calls. Zero disables the pause.
	Delay time.Duration
	// ScratchDir holds regeneration downloads. Empty means os.TempDir.
	ScratchDir string
	Logger     infra.Logger
	Now        func() time.Time
}

// Runner owns the background jobs of one process.
type Runner struct {
	jobs       domain.JobRepository
	images     domain.ImageRepository
	generator  image.Generator
	fetcher    SourceFetcher
	delay      time.Duration
	scratchDir string
	logger     infra.Logger
	now        func() time.Time

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	stopping bool
	wg       sync.WaitGroup
}

// NewRunner wires a runner over the job and image stores.
func NewRunner(repos domain.Repositories, opts Options) (*Runner, error) {
	if repos.Jobs == nil || repos.Images == nil {
		return nil, errors.New("generation: job and image repositories are required")
	}
	if opts.Generator == nil {
		return nil, errors.New("generation: image generator is required")
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		jobs:       repos.Jobs,
		images:     repos.Images,
		generator:  opts.Generator,
		fetcher:    opts.Fetcher,
		delay:      opts.Delay,
		scratchDir: opts.ScratchDir,
		logger:     infra.Component(opts.Logger, "generation"),
		now:        opts.Now,
		cancels:    make(map[string]context.CancelFunc),
	}, nil
}

// Cancel stops a running job. The loop notices between units and marks the
// job cancelled; an in-flight provider call is aborted through its context.
// It reports whether the job was running in this process.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether the job is driven by this runner.
func (r *Runner) Running(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[jobID]
	return ok
}

// Shutdown cancels every job and waits for the loops to record it, or for ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopping = true
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every background job has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// launch runs fn for the job in its own goroutine. The job context is
// detached from the caller's request so the loop outlives the HTTP response.
func (r *Runner) launch(parent context.Context, job *domain.GenerationJob, fn func(ctx context.Context, job *domain.GenerationJob) error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.cancels, job.ID)
			r.mu.Unlock()
			cancel()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().
					Str("job_id", job.ID).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("generation: job panicked")
				r.finish(ctx, job.ID, domain.JobStatusFailed, fmt.Sprintf("internal error: %v", rec))
			}
		}()

		err := fn(ctx, job)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			if r.isStopping() {
				r.logger.Warn().Str("job_id", job.ID).Msg("generation: job interrupted by shutdown")
				r.finish(ctx, job.ID, domain.JobStatusFailed, "interrupted by server shutdown")
				return
			}
			r.logger.Info().Str("job_id", job.ID).Msg("generation: job cancelled")
			r.finish(ctx, job.ID, domain.JobStatusCancelled, "cancelled")
		case errors.Is(err, domain.ErrJobTerminal):
			r.logger.Info().Str("job_id", job.ID).Msg("generation: job already terminal")
		default:
			r.logger.Error().Err(err).Str("job_id", job.ID).Msg("generation: job failed")
			r.finish(ctx, job.ID, domain.JobStatusFailed, err.Error())
		}
	}()
}

func (r *Runner) isStopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

// finish writes a terminal status. It runs on a context that survives the
// job's cancellation.
func (r *Runner) finish(ctx context.Context, jobID string, status domain.JobStatus, message string) {
	_, err := r.jobs.Update(context.WithoutCancel(ctx), jobID, domain.JobUpdate{Status: status, ErrorMessage: message})
	if err != nil && !errors.Is(err, domain.ErrJobTerminal) {
		r.logger.Error().Err(err).Str("job_id", jobID).Str("status", string(status)).Msg("generation: record terminal status failed")
	}
}

func (r *Runner) newLimiter() *rate.Limiter {
	if r.delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(r.delay), 1)
}

// unit is one provider call of a job.
type unit struct {
	concept   string
	variation int
	prompt    string
	request   image.ProviderRequest
	sourceID  *string
	edit      string
}

// tally tracks finished units of one job.
type tally struct {
	total     int
	completed int
	failed    int
}

func (t tally) update() domain.JobUpdate {
	status := domain.JobStatusRunning
	if t.completed+t.failed >= t.total {
		status = domain.JobStatusCompleted
	}
	return domain.JobUpdate{
		Status:         status,
		Progress:       domain.Progress(t.completed+t.failed, t.total),
		CompletedCount: t.completed,
		FailedCount:    t.failed,
	}
}

// runUnits executes units in order. A provider failure is recorded on the
// image and the loop moves on; persistence failures and cancellation abort.
func (r *Runner) runUnits(ctx context.Context, job *domain.GenerationJob, units []unit) error {
	store := context.WithoutCancel(ctx)
	if _, err := r.jobs.Update(store, job.ID, domain.JobUpdate{Status: domain.JobStatusRunning}); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	limiter := r.newLimiter()
	t := tally{total: len(units)}
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		ok, err := r.runUnit(ctx, job, u)
		if err != nil {
			return err
		}
		if ok {
			t.completed++
		} else {
			t.failed++
		}
		if _, err := r.jobs.Update(store, job.ID, t.update()); err != nil {
			return fmt.Errorf("update job progress: %w", err)
		}
	}
	if len(units) == 0 {
		_, err := r.jobs.Update(store, job.ID, t.update())
		return err
	}
	return nil
}

// runUnit persists the image row, calls the provider, and patches the row.
// It returns an error only when the job itself must stop.
func (r *Runner) runUnit(ctx context.Context, job *domain.GenerationJob, u unit) (bool, error) {
	store := context.WithoutCancel(ctx)
	log := r.logger.With().
		Str("job_id", job.ID).
		Str("concept", u.concept).
		Int("variation", u.variation).
		Logger()

	jobID := job.ID
	img := &domain.GeneratedImage{
		ID:                      uuid.NewString(),
		JobID:                   &jobID,
		OwnerID:                 job.OwnerID,
		SessionID:               job.SessionID,
		VisualConcept:           u.concept,
		Prompt:                  u.prompt,
		Status:                  domain.ImageStatusGenerating,
		SourceImageID:           u.sourceID,
		RegenerationInstruction: u.edit,
		Model:                   u.request.Model,
		Size:                    u.request.Size,
		Quality:                 u.request.Quality,
	}
	if err := r.images.Create(store, img); err != nil {
		return false, fmt.Errorf("create image: %w", err)
	}

	req := u.request
	req.Prompt = u.prompt
	var (
		res image.Result
		err error
	)
	if req.Kind == image.OperationEdit {
		res, err = r.generator.Edit(ctx, req)
	} else {
		res, err = r.generator.Generate(ctx, req)
	}
	var url string
	if err == nil {
		url, err = res.ImageURL()
	}
	if err != nil {
		if ctx.Err() != nil {
			// The row would otherwise stay "generating" forever.
			r.markImageFailed(store, img.ID, "cancelled")
			return false, ctx.Err()
		}
		log.Warn().Err(err).Msg("generation: image failed")
		r.markImageFailed(store, img.ID, err.Error())
		return false, nil
	}

	if _, err := r.images.Update(store, img.ID, domain.ImageUpdate{Status: domain.ImageStatusCompleted, ImageURL: url}); err != nil {
		return false, fmt.Errorf("complete image: %w", err)
	}
	log.Debug().Msg("generation: image completed")
	return true, nil
}

func (r *Runner) markImageFailed(ctx context.Context, imageID, message string) {
	if _, err := r.images.Update(ctx, imageID, domain.ImageUpdate{Status: domain.ImageStatusFailed, ErrorMessage: message}); err != nil {
		r.logger.Error().Err(err).Str("image_id", imageID).Msg("generation: mark image failed")
	}
}
