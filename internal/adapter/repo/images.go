package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"stylegen/internal/domain"
	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

// ImageRepo implements domain.ImageRepository.
type ImageRepo struct {
	sql infra.SQLExecutor
}

func (r *ImageRepo) Create(ctx context.Context, img *domain.GeneratedImage) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertImage,
		img.ID, img.JobID, img.OwnerID, img.SessionID, img.VisualConcept, img.ImageURL, img.Prompt,
		string(img.Status), img.ErrorMessage, img.SourceImageID, img.RegenerationInstruction,
		img.Model, img.Size, img.Quality)
	return mapErr(row.Scan(&img.CreatedAt, &img.UpdatedAt))
}

func (r *ImageRepo) Get(ctx context.Context, id string) (*domain.GeneratedImage, error) {
	return scanImage(r.sql.QueryRow(ctx, sqlinline.QSelectImage, id))
}

func (r *ImageRepo) Update(ctx context.Context, id string, u domain.ImageUpdate) (*domain.GeneratedImage, error) {
	return scanImage(r.sql.QueryRow(ctx, sqlinline.QUpdateImage, id, string(u.Status), u.ImageURL, u.ErrorMessage))
}

func (r *ImageRepo) Delete(ctx context.Context, id string) error {
	return affected(r.sql.Exec(ctx, sqlinline.QDeleteImage, id))
}

func (r *ImageRepo) ListByJob(ctx context.Context, jobID string) ([]domain.GeneratedImage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListImagesByJob, jobID)
	if err != nil {
		return nil, err
	}
	return collectImages(rows)
}

func (r *ImageRepo) List(ctx context.Context, f domain.ImageFilter) ([]domain.GeneratedImage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListImages, f.OwnerID, f.SessionID, f.Limit)
	if err != nil {
		return nil, err
	}
	return collectImages(rows)
}

func collectImages(rows pgx.Rows) ([]domain.GeneratedImage, error) {
	defer rows.Close()
	var out []domain.GeneratedImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *img)
	}
	return out, rows.Err()
}

func scanImage(row pgx.Row) (*domain.GeneratedImage, error) {
	var (
		img    domain.GeneratedImage
		status string
	)
	if err := row.Scan(&img.ID, &img.JobID, &img.OwnerID, &img.SessionID, &img.VisualConcept,
		&img.ImageURL, &img.Prompt, &status, &img.ErrorMessage, &img.SourceImageID,
		&img.RegenerationInstruction, &img.Model, &img.Size, &img.Quality,
		&img.CreatedAt, &img.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	img.Status = domain.ImageStatus(status)
	return &img, nil
}
