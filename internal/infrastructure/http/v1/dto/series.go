package dto

import (
	"time"

	"geniuserp/internal/core/id"
	"geniuserp/internal/domain/series"
)

// SaveSeriesRequest registers or updates a numbering series.
type SaveSeriesRequest struct {
	CompanyID   string `json:"companyId" binding:"required,uuid"`
	Code        string `json:"code" binding:"required,max=16"`
	Description string `json:"description,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *SaveSeriesRequest) ToEntity() *series.Series {
	companyID, _ := id.Parse(r.CompanyID)
	s := series.New(companyID, r.Code, r.Description)
	if r.Active != nil {
		s.Active = *r.Active
	}
	return s
}

// SetCounterRequest seeds a series counter (migration use).
type SetCounterRequest struct {
	CompanyID string `json:"companyId" binding:"required,uuid"`
	Value     int64  `json:"value" binding:"min=0"`
}

// SeriesResponse is the API representation of a numbering series.
type SeriesResponse struct {
	CompanyID   string    `json:"companyId"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	LastValue   int64     `json:"lastValue"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FromSeries converts a domain entity into the API representation.
func FromSeries(s *series.Series) SeriesResponse {
	return SeriesResponse{
		CompanyID:   s.CompanyID.String(),
		Code:        s.Code,
		Description: s.Description,
		Active:      s.Active,
		LastValue:   s.LastValue,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
