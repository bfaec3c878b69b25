// Package sequence_repo implements invoice number allocation on top of the
// invoice_series counter table.
package sequence_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/core/sequence"
	"geniuserp/internal/infrastructure/storage/postgres"
)

// Compile-time check against the domain contract.
var _ sequence.Allocator = (*Allocator)(nil)

// Allocator hands out gapless numbers per (company, series).
//
// The counter row is updated with a single upsert; the row lock taken by
// the UPDATE serializes concurrent issuances in the same series until the
// surrounding transaction commits or rolls back. A rolled-back issuance
// releases the lock without consuming the number, which is what keeps the
// sequence gapless: the next transaction recomputes the same value.
type Allocator struct {
	txm *postgres.TxManager
}

// NewAllocator creates a new series number allocator.
func NewAllocator(txm *postgres.TxManager) *Allocator {
	return &Allocator{txm: txm}
}

// NextNumber returns the next number in the series.
//
// It refuses to run outside a transaction: the read-then-increment must
// commit or roll back together with the status write that consumes the
// number, otherwise a failed issuance would burn a number and leave a gap.
//
// An unknown series is registered on first use; an explicitly deactivated
// series rejects issuance.
func (a *Allocator) NextNumber(ctx context.Context, companyID id.ID, series string) (int64, error) {
	if series == "" {
		return 0, apperror.NewValidation("series is required").
			WithDetail("field", "series")
	}

	tx := a.txm.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("sequence allocation requires transaction context")
	}

	var number int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_series (company_id, code, active, last_value, created_at, updated_at)
		VALUES ($1, $2, TRUE, 1, NOW(), NOW())
		ON CONFLICT (company_id, code) DO UPDATE
		SET last_value = invoice_series.last_value + 1,
		    updated_at = NOW()
		WHERE invoice_series.active
		RETURNING last_value
	`, companyID, series).Scan(&number)

	if err != nil {
		// The WHERE on the conflict arm filters out inactive series,
		// which surfaces as no row returned.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewValidation("series is deactivated").
				WithDetail("field", "series").
				WithDetail("series", series)
		}
		return 0, apperror.NewDatabase(fmt.Errorf("next number for series %q: %w", series, err))
	}

	return number, nil
}
