package repo

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

// ConceptListRepo implements domain.ConceptListRepository. Concepts are stored
// as a jsonb array; jsoncfg.Record keeps each object's key order on the way back.
type ConceptListRepo struct {
	sql infra.SQLExecutor
}

func (r *ConceptListRepo) Create(ctx context.Context, c *domain.ConceptList) error {
	concepts, params, err := encodeConceptList(c)
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertConceptList, c.ID, c.CompanyName, c.MarketingContent, concepts, params, c.OwnerID)
	return mapErr(row.Scan(&c.CreatedAt, &c.UpdatedAt))
}

func (r *ConceptListRepo) Get(ctx context.Context, id string) (*domain.ConceptList, error) {
	return scanConceptList(r.sql.QueryRow(ctx, sqlinline.QSelectConceptList, id))
}

func (r *ConceptListRepo) Update(ctx context.Context, c *domain.ConceptList) error {
	concepts, params, err := encodeConceptList(c)
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateConceptList, c.ID, c.CompanyName, c.MarketingContent, concepts, params)
	return mapErr(row.Scan(&c.OwnerID, &c.CreatedAt, &c.UpdatedAt))
}

func (r *ConceptListRepo) Delete(ctx context.Context, id string) error {
	return affected(r.sql.Exec(ctx, sqlinline.QDeleteConceptList, id))
}

func (r *ConceptListRepo) List(ctx context.Context, ownerID string) ([]domain.ConceptList, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListConceptLists, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ConceptList
	for rows.Next() {
		c, err := scanConceptList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func encodeConceptList(c *domain.ConceptList) ([]byte, []byte, error) {
	concepts := c.Concepts
	if concepts == nil {
		concepts = []jsoncfg.Record{}
	}
	rawConcepts, err := json.Marshal(concepts)
	if err != nil {
		return nil, nil, err
	}
	rawParams, err := json.Marshal(c.Parameters)
	if err != nil {
		return nil, nil, err
	}
	return rawConcepts, rawParams, nil
}

func scanConceptList(row pgx.Row) (*domain.ConceptList, error) {
	var (
		c                domain.ConceptList
		concepts, params []byte
	)
	if err := row.Scan(&c.ID, &c.CompanyName, &c.MarketingContent, &concepts, &params, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if err := unmarshalInto(concepts, &c.Concepts); err != nil {
		return nil, err
	}
	if err := unmarshalInto(params, &c.Parameters); err != nil {
		return nil, err
	}
	return &c, nil
}
