// Package repo implements the domain repositories on PostgreSQL. Every query
// lives in internal/sqlinline and runs through infra.SQLExecutor.
package repo

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
)

// New wires every repository onto the executor.
func New(sql infra.SQLExecutor) domain.Repositories {
	return domain.Repositories{
		Users:        &UserRepo{sql: sql},
		Preferences:  &PreferencesRepo{sql: sql},
		Styles:       &StyleRepo{sql: sql},
		Sessions:     &SessionRepo{sql: sql},
		Jobs:         &JobRepo{sql: sql},
		Images:       &ImageRepo{sql: sql},
		Prompts:      &PromptRepo{sql: sql},
		ConceptLists: &ConceptListRepo{sql: sql},
	}
}

const uniqueViolation = "23505"

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if infra.IsNoRows(err) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrConflict
	}
	return err
}

// affected returns ErrNotFound when a write touched no rows.
func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// unmarshalInto decodes a jsonb column, leaving dst untouched for empty input.
func unmarshalInto(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
