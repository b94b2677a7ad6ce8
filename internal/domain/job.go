package domain

import (
	"math"
	"time"

	"stylegen/internal/domain/jsoncfg"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is absorbing.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobKind distinguishes fresh batches from regenerations.
type JobKind string

const (
	JobKindBatch        JobKind = "batch"
	JobKindRegeneration JobKind = "regeneration"
)

// GenerationJob is one run over concepts x variations.
type GenerationJob struct {
	ID             string
	Name           string
	Kind           JobKind
	OwnerID        string
	SessionID      *string
	StyleID        *string
	Concepts       []string
	Settings       jsoncfg.GenerationSettings
	Status         JobStatus
	Progress       int
	CompletedCount int
	FailedCount    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (j GenerationJob) Owner() string { return j.OwnerID }

// Total is the number of images the job is expected to produce.
func (j GenerationJob) Total() int {
	return len(j.Concepts) * j.Settings.Variations
}

// JobUpdate carries the fields a runner writes after each unit of work.
type JobUpdate struct {
	Status         JobStatus
	Progress       int
	CompletedCount int
	FailedCount    int
	ErrorMessage   string
}

// Apply folds an update into the job. Terminal jobs reject every update and
// progress never moves backwards.
func (j *GenerationJob) Apply(u JobUpdate, now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrJobTerminal
	}
	if u.Status != "" {
		j.Status = u.Status
	}
	if u.Progress > j.Progress {
		j.Progress = min(u.Progress, 100)
	}
	if u.CompletedCount > j.CompletedCount {
		j.CompletedCount = u.CompletedCount
	}
	if u.FailedCount > j.FailedCount {
		j.FailedCount = u.FailedCount
	}
	if u.ErrorMessage != "" {
		j.ErrorMessage = u.ErrorMessage
	}
	j.UpdatedAt = now
	return nil
}

// Progress converts finished units into a 0-100 percentage.
func Progress(done, total int) int {
	if total <= 0 {
		return 100
	}
	if done >= total {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// JobFilter narrows job listings. An empty OwnerID lists every owner.
type JobFilter struct {
	OwnerID   string
	SessionID string
	Limit     int
}
