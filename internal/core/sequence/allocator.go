// Package sequence provides the domain contract for invoice number allocation.
// Implementations live in the infrastructure layer.
package sequence

import (
	"context"

	"geniuserp/internal/core/id"
)

// Allocator produces the next integer number for a numbering series.
//
// Contract (the crux of the issuance subsystem):
//   - For a given (company, series) the returned numbers are strictly
//     increasing with no duplicates: 1, 2, 3, ...
//   - NextNumber must be called inside the same transaction as the write
//     that consumes the number. The implementation takes a row-level lock
//     on the series counter, so two concurrent issuances in the same
//     series serialize on commit; different series never contend.
//   - The allocator does not retry internally. Serialization conflicts
//     propagate to the caller, which owns the retry policy.
type Allocator interface {
	// NextNumber returns the next number to assign in the series.
	NextNumber(ctx context.Context, companyID id.ID, series string) (int64, error)
}

// Mock is a test implementation of Allocator.
// Use in unit tests to avoid database dependencies.
type Mock struct {
	NextNumberFunc func(ctx context.Context, companyID id.ID, series string) (int64, error)
}

// NextNumber implements Allocator.
func (m *Mock) NextNumber(ctx context.Context, companyID id.ID, series string) (int64, error) {
	if m.NextNumberFunc != nil {
		return m.NextNumberFunc(ctx, companyID, series)
	}
	return 1, nil
}

// Ensure compile-time interface compliance.
var _ Allocator = (*Mock)(nil)
