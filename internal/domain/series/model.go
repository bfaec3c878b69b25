// Package series provides the numbering-series catalog. A series row is
// both configuration (code, description, active flag) and the counter the
// allocator increments (last_value).
package series

import (
	"context"
	"time"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
)

// Series is one numbering stream of a company. Numbers within a series
// are unique and sequential; last_value holds the highest number handed
// out so far and never decreases, so deleted numbers are not reused.
type Series struct {
	CompanyID   id.ID     `db:"company_id" json:"companyId"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	LastValue   int64     `db:"last_value" json:"lastValue"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates an active series with an empty counter.
func New(companyID id.ID, code, description string) *Series {
	now := time.Now().UTC()
	return &Series{
		CompanyID:   companyID,
		Code:        code,
		Description: description,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks series invariants.
func (s *Series) Validate(ctx context.Context) error {
	if id.IsNil(s.CompanyID) {
		return apperror.NewValidation("company is required").
			WithDetail("field", "companyId")
	}
	if s.Code == "" {
		return apperror.NewValidation("series code is required").
			WithDetail("field", "code")
	}
	if len(s.Code) > 16 {
		return apperror.NewValidation("series code is too long").
			WithDetail("field", "code").
			WithDetail("max_length", 16)
	}
	return nil
}
