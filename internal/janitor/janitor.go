// Package janitor removes expired temporary sessions and fails jobs that no
// process is driving anymore.
package janitor

import (
	"context"
	"errors"
	"time"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
)

// StaleMessage is stored on jobs failed by a sweep.
const StaleMessage = "job abandoned: no progress since the service restarted"

// Options configures a Janitor. Zero durations fall back to the defaults.
type Options struct {
	Interval       time.Duration
	TempSessionTTL time.Duration
	StaleJobAfter  time.Duration
	Logger         infra.Logger
	Now            func() time.Time
}

// Janitor runs periodic cleanup sweeps.
type Janitor struct {
	sessions domain.SessionRepository
	jobs     domain.JobRepository
	opts     Options
	logger   infra.Logger
}

// Result counts what one sweep touched.
type Result struct {
	SessionsDeleted int
	JobsFailed      int
}

func New(repos domain.Repositories, opts Options) (*Janitor, error) {
	if repos.Sessions == nil || repos.Jobs == nil {
		return nil, errors.New("janitor: session and job repositories are required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.TempSessionTTL <= 0 {
		opts.TempSessionTTL = 24 * time.Hour
	}
	if opts.StaleJobAfter <= 0 {
		opts.StaleJobAfter = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Janitor{
		sessions: repos.Sessions,
		jobs:     repos.Jobs,
		opts:     opts,
		logger:   infra.Component(opts.Logger, "janitor"),
	}, nil
}

// FailStale marks every non-terminal job untouched for StaleJobAfter as failed.
func (j *Janitor) FailStale(ctx context.Context) (int, error) {
	return j.jobs.FailStale(ctx, j.opts.Now().Add(-j.opts.StaleJobAfter), StaleMessage)
}

// Sweep runs one cleanup pass. Both steps run even when the first fails.
func (j *Janitor) Sweep(ctx context.Context) (Result, error) {
	var res Result
	deleted, errSessions := j.sessions.DeleteTemporary(ctx, "", j.opts.Now().Add(-j.opts.TempSessionTTL))
	res.SessionsDeleted = deleted
	failed, errJobs := j.FailStale(ctx)
	res.JobsFailed = failed
	return res, errors.Join(errSessions, errJobs)
}

// Run sweeps immediately and then every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.opts.Interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.opts.Interval).Msg("janitor started")
	for {
		j.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("janitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (j *Janitor) sweepOnce(ctx context.Context) {
	res, err := j.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		j.logger.Error().Err(err).Msg("sweep failed")
	}
	if res.SessionsDeleted > 0 || res.JobsFailed > 0 {
		j.logger.Info().
			Int("sessions_deleted", res.SessionsDeleted).
			Int("jobs_failed", res.JobsFailed).
			Msg("sweep finished")
	}
}
