package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

// UserRepo implements domain.UserRepository.
type UserRepo struct {
	sql infra.SQLExecutor
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertUser, u.ID, u.Email, u.PasswordHash, string(u.Role), u.IsActive)
	return mapErr(row.Scan(&u.CreatedAt, &u.UpdatedAt))
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByEmail, email))
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSetUserActive, id, active))
}

func (r *UserRepo) SetRole(ctx context.Context, id string, role domain.UserRole) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSetUserRole, id, string(role)))
}

func (r *UserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return affected(r.sql.Exec(ctx, sqlinline.QTouchUserLogin, id, at.UTC()))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	u.Role = domain.UserRole(role)
	return &u, nil
}

// PreferencesRepo implements domain.PreferencesRepository.
type PreferencesRepo struct {
	sql infra.SQLExecutor
}

func (r *PreferencesRepo) Get(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	prefs := &domain.UserPreferences{UserID: userID, Preferences: map[string]any{}}
	var raw []byte
	err := r.sql.QueryRow(ctx, sqlinline.QSelectPreferences, userID).Scan(&raw, &prefs.UpdatedAt)
	if infra.IsNoRows(err) {
		return prefs, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalInto(raw, &prefs.Preferences); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (r *PreferencesRepo) Put(ctx context.Context, p *domain.UserPreferences) error {
	raw, err := json.Marshal(p.Preferences)
	if err != nil {
		return err
	}
	return mapErr(r.sql.QueryRow(ctx, sqlinline.QUpsertPreferences, p.UserID, raw).Scan(&p.UpdatedAt))
}
