package series

import (
	"context"

	"geniuserp/internal/core/id"
)

// Repository defines persistence operations for the series catalog.
type Repository interface {
	// List returns all series of a company, active and inactive.
	List(ctx context.Context, companyID id.ID) ([]Series, error)

	// Get returns one series or NotFound.
	Get(ctx context.Context, companyID id.ID, code string) (*Series, error)

	// Upsert inserts the series or updates description/active of an
	// existing one. The counter (last_value) is never touched here.
	Upsert(ctx context.Context, s *Series) error

	// SetLastValue overwrites the counter. Migration seeding only; using
	// it on a live series can break the uniqueness guarantee.
	SetLastValue(ctx context.Context, companyID id.ID, code string, value int64) error
}
