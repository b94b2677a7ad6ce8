package client

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is used when Poll is given a non-positive interval.
const DefaultPollInterval = 2 * time.Second

// API is the subset of Client the poller needs.
type API interface {
	Job(ctx context.Context, id string) (*Job, error)
	Images(ctx context.Context, jobID string) ([]Image, error)
}

// Callbacks receive poll results. Any of them may be nil.
type Callbacks struct {
	OnProgress func(job Job, images []Image)
	OnComplete func(job Job, images []Image)
	OnError    func(err error)
}

// Poll fetches the job and its images every interval until the job reaches a
// terminal status. OnProgress fires for every non-terminal snapshot and
// OnComplete exactly once at the end. The first fetch error goes to OnError
// and stops polling. Cancelling ctx stops silently.
func Poll(ctx context.Context, api API, jobID string, cb Callbacks, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, images, err := snapshot(ctx, api, jobID)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		case job.Terminal():
			if cb.OnComplete != nil {
				cb.OnComplete(*job, images)
			}
			return
		case cb.OnProgress != nil:
			cb.OnProgress(*job, images)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func snapshot(ctx context.Context, api API, jobID string) (*Job, []Image, error) {
	job, err := api.Job(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, errors.New("stylegen: empty job response")
	}
	images, err := api.Images(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, images, nil
}
