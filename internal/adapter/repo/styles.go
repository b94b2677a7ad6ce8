package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

// StyleRepo implements domain.StyleRepository.
type StyleRepo struct {
	sql infra.SQLExecutor
}

func (r *StyleRepo) Create(ctx context.Context, st *domain.ImageStyle) error {
	data, err := st.StyleData.MarshalJSON()
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertStyle,
		st.ID, st.Name, st.Description, st.StylePrompt, data, st.ReferenceImageURL, st.PreviewImageURL, st.CreatedBy)
	return mapErr(row.Scan(&st.CreatedAt, &st.UpdatedAt))
}

func (r *StyleRepo) Get(ctx context.Context, id string) (*domain.ImageStyle, error) {
	return scanStyle(r.sql.QueryRow(ctx, sqlinline.QSelectStyle, id))
}

func (r *StyleRepo) Update(ctx context.Context, st *domain.ImageStyle) error {
	data, err := st.StyleData.MarshalJSON()
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateStyle,
		st.ID, st.Name, st.Description, st.StylePrompt, data, st.ReferenceImageURL, st.PreviewImageURL)
	return mapErr(row.Scan(&st.CreatedBy, &st.CreatedAt, &st.UpdatedAt))
}

func (r *StyleRepo) Delete(ctx context.Context, id string) error {
	return affected(r.sql.Exec(ctx, sqlinline.QDeleteStyle, id))
}

func (r *StyleRepo) List(ctx context.Context, ownerID string) ([]domain.ImageStyle, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStyles, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ImageStyle
	for rows.Next() {
		st, err := scanStyle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanStyle(row pgx.Row) (*domain.ImageStyle, error) {
	var (
		st  domain.ImageStyle
		raw []byte
	)
	if err := row.Scan(&st.ID, &st.Name, &st.Description, &st.StylePrompt, &raw,
		&st.ReferenceImageURL, &st.PreviewImageURL, &st.CreatedBy, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	rec, err := jsoncfg.ParseRecord(raw)
	if err != nil {
		return nil, err
	}
	st.StyleData = rec
	return &st, nil
}
