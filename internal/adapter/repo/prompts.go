package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

// PromptRepo implements domain.SystemPromptRepository.
type PromptRepo struct {
	sql infra.SQLExecutor
}

func (r *PromptRepo) Create(ctx context.Context, p *domain.SystemPrompt) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertSystemPrompt, p.ID, p.Name, string(p.Category), p.Content, p.IsDefault, p.OwnerID)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return r.clearOtherDefaults(ctx, p)
}

func (r *PromptRepo) Get(ctx context.Context, id string) (*domain.SystemPrompt, error) {
	return scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectSystemPrompt, id))
}

func (r *PromptRepo) Update(ctx context.Context, p *domain.SystemPrompt) error {
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateSystemPrompt, p.ID, p.Name, string(p.Category), p.Content, p.IsDefault)
	if err := row.Scan(&p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return r.clearOtherDefaults(ctx, p)
}

func (r *PromptRepo) Delete(ctx context.Context, id string) error {
	return affected(r.sql.Exec(ctx, sqlinline.QDeleteSystemPrompt, id))
}

func (r *PromptRepo) List(ctx context.Context, ownerID string, category domain.PromptCategory) ([]domain.SystemPrompt, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListSystemPrompts, ownerID, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SystemPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PromptRepo) Default(ctx context.Context, ownerID string, category domain.PromptCategory) (*domain.SystemPrompt, error) {
	return scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectDefaultSystemPrompt, ownerID, string(category)))
}

func (r *PromptRepo) clearOtherDefaults(ctx context.Context, p *domain.SystemPrompt) error {
	if !p.IsDefault {
		return nil
	}
	_, err := r.sql.Exec(ctx, sqlinline.QClearSystemPromptDefault, string(p.Category), p.OwnerID, p.ID)
	return err
}

func scanPrompt(row pgx.Row) (*domain.SystemPrompt, error) {
	var (
		p        domain.SystemPrompt
		category string
	)
	if err := row.Scan(&p.ID, &p.Name, &category, &p.Content, &p.IsDefault, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	p.Category = domain.PromptCategory(category)
	return &p, nil
}
