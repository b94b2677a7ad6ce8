package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

// SessionRepo implements domain.SessionRepository. Jobs and images follow
// session deletes through ON DELETE CASCADE.
type SessionRepo struct {
	sql infra.SQLExecutor
}

func (r *SessionRepo) Create(ctx context.Context, ses *domain.ProjectSession) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertSession, ses.ID, ses.Name, ses.Description, ses.OwnerID, ses.IsTemporary)
	return mapErr(row.Scan(&ses.CreatedAt, &ses.UpdatedAt))
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.ProjectSession, error) {
	return scanSession(r.sql.QueryRow(ctx, sqlinline.QSelectSession, id))
}

func (r *SessionRepo) Update(ctx context.Context, ses *domain.ProjectSession) error {
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateSession, ses.ID, ses.Name, ses.Description, ses.IsTemporary)
	return mapErr(row.Scan(&ses.OwnerID, &ses.CreatedAt, &ses.UpdatedAt))
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	return affected(r.sql.Exec(ctx, sqlinline.QDeleteSession, id))
}

func (r *SessionRepo) List(ctx context.Context, ownerID string) ([]domain.ProjectSession, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListSessions, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProjectSession
	for rows.Next() {
		ses, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ses)
	}
	return out, rows.Err()
}

func (r *SessionRepo) DeleteTemporary(ctx context.Context, ownerID string, before time.Time) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteTemporarySessions, ownerID, nullableTime(before))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*domain.ProjectSession, error) {
	var ses domain.ProjectSession
	if err := row.Scan(&ses.ID, &ses.Name, &ses.Description, &ses.OwnerID, &ses.IsTemporary, &ses.CreatedAt, &ses.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &ses, nil
}
