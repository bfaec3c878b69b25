// Package invoice provides the Invoice aggregate repository contract.
package invoice

import (
	"context"

	"geniuserp/internal/core/id"
)

// Repository defines persistence operations for the invoice aggregate.
//
// Mutating operations are expected to run inside a transaction started by
// the service (tx.Manager); implementations pick up the transaction from
// context.
type Repository interface {
	// Create inserts the invoice row, its detail row and all line rows.
	// Callers wrap it in a transaction so the aggregate is all-or-nothing.
	Create(ctx context.Context, inv *Invoice) error

	// GetByID loads the full aggregate. Soft-deleted invoices are NotFound.
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)

	// GetForUpdate loads the invoice row with a row lock (FOR UPDATE).
	// Used by transitions and deletions to serialize writers on one invoice.
	GetForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error)

	// GetBySeriesAndNumber is a point lookup for external callers
	// (duplicate detection); not used by the allocator.
	GetBySeriesAndNumber(ctx context.Context, companyID id.ID, series string, number int64) (*Invoice, error)

	// UpdateStatus writes status, number, issued_at and updated_at with a
	// compare-and-swap on the previous status. Zero rows affected means a
	// concurrent writer won; implementations return ConcurrentModification.
	// Series and number columns are never rewritten once status != draft.
	UpdateStatus(ctx context.Context, inv *Invoice, from Status) error

	// LockSeries takes the series counter row lock, the same row an
	// issuance locks to allocate a number, and holds it until the
	// surrounding transaction ends. Deletions call it before MaxNumber so
	// no concurrent issuance can commit a higher number between the
	// topmost check and the delete. A series with no counter row yet is
	// a no-op: no number was ever allocated in it.
	LockSeries(ctx context.Context, companyID id.ID, series string) error

	// MaxNumber returns the highest number assigned among non-deleted
	// invoices of the series, or 0 if none. Used by the deletion policy
	// ("is this the topmost invoice?").
	MaxNumber(ctx context.Context, companyID id.ID, series string) (int64, error)

	// SoftDelete sets deleted_at. The record keeps its number.
	SoftDelete(ctx context.Context, inv *Invoice) error
}
