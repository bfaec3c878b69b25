// Package series_repo provides the PostgreSQL implementation of the
// numbering-series catalog repository.
package series_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/domain/series"
	"geniuserp/internal/infrastructure/storage/postgres"
)

const seriesTable = "invoice_series"

var seriesCols = []string{
	"company_id", "code", "description", "active", "last_value",
	"created_at", "updated_at",
}

// Compile-time check against the domain contract.
var _ series.Repository = (*Repo)(nil)

// Repo persists numbering-series configuration. The counter column is
// owned by the allocator; this repo only seeds or administers it.
type Repo struct {
	txm *postgres.TxManager
}

// NewRepo creates a new series repository.
func NewRepo(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func (r *Repo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// List returns all series of a company ordered by code.
func (r *Repo) List(ctx context.Context, companyID id.ID) ([]series.Series, error) {
	q := r.builder().
		Select(seriesCols...).
		From(seriesTable).
		Where(squirrel.Eq{"company_id": companyID}).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	result := make([]series.Series, 0)
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &result, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("list series: %w", err))
	}

	return result, nil
}

// Get returns one series or NotFound.
func (r *Repo) Get(ctx context.Context, companyID id.ID, code string) (*series.Series, error) {
	q := r.builder().
		Select(seriesCols...).
		From(seriesTable).
		Where(squirrel.Eq{"company_id": companyID, "code": code})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var s series.Series
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("series", code)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("get series: %w", err))
	}

	return &s, nil
}

// Upsert inserts the series or updates description/active of an existing
// one. last_value is deliberately untouched on conflict.
func (r *Repo) Upsert(ctx context.Context, s *series.Series) error {
	querier := r.txm.GetQuerier(ctx)

	_, err := querier.Exec(ctx, `
		INSERT INTO invoice_series (company_id, code, description, active, last_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		ON CONFLICT (company_id, code) DO UPDATE
		SET description = EXCLUDED.description,
		    active = EXCLUDED.active,
		    updated_at = NOW()
	`, s.CompanyID, s.Code, s.Description, s.Active)

	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("upsert series: %w", err))
	}
	return nil
}

// SetLastValue overwrites the counter (migration seeding).
func (r *Repo) SetLastValue(ctx context.Context, companyID id.ID, code string, value int64) error {
	querier := r.txm.GetQuerier(ctx)

	result, err := querier.Exec(ctx, `
		UPDATE invoice_series
		SET last_value = $1, updated_at = NOW()
		WHERE company_id = $2 AND code = $3
	`, value, companyID, code)

	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("set series counter: %w", err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("series", code)
	}
	return nil
}
