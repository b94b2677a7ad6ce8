package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

// JobRepo implements domain.JobRepository. The monotonic progress and
// absorbing terminal states are enforced inside QAdvanceJob so concurrent
// writers cannot race past them.
type JobRepo struct {
	sql infra.SQLExecutor
}

func (r *JobRepo) Create(ctx context.Context, job *domain.GenerationJob) error {
	concepts, err := json.Marshal(job.Concepts)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID, job.Name, string(job.Kind), job.OwnerID, job.SessionID, job.StyleID,
		concepts, settings, string(job.Status), job.Progress)
	return mapErr(row.Scan(&job.CreatedAt, &job.UpdatedAt))
}

func (r *JobRepo) Get(ctx context.Context, id string) (*domain.GenerationJob, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJob, id))
}

func (r *JobRepo) List(ctx context.Context, f domain.JobFilter) ([]domain.GenerationJob, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListJobs, f.OwnerID, f.SessionID, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func (r *JobRepo) Update(ctx context.Context, id string, u domain.JobUpdate) (*domain.GenerationJob, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QAdvanceJob,
		id, string(u.Status), u.Progress, u.CompletedCount, u.FailedCount, u.ErrorMessage))
	if !errors.Is(err, domain.ErrNotFound) {
		return job, err
	}
	// No row came back: either the job is gone or it is already terminal.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrJobTerminal
}

func (r *JobRepo) FailStale(ctx context.Context, before time.Time, message string) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailStaleJobs, before.UTC(), message)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var (
		job              domain.GenerationJob
		kind, status     string
		concepts, config []byte
	)
	if err := row.Scan(&job.ID, &job.Name, &kind, &job.OwnerID, &job.SessionID, &job.StyleID,
		&concepts, &config, &status, &job.Progress, &job.CompletedCount, &job.FailedCount,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	if err := unmarshalInto(concepts, &job.Concepts); err != nil {
		return nil, err
	}
	if err := unmarshalInto(config, &job.Settings); err != nil {
		return nil, err
	}
	return &job, nil
}
