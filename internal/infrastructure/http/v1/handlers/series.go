package handlers

import (
	"github.com/gin-gonic/gin"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/domain/series"
	"geniuserp/internal/infrastructure/http/v1/dto"
)

// SeriesHandler handles HTTP requests for numbering series.
type SeriesHandler struct {
	*BaseHandler
	service *series.Service
}

// NewSeriesHandler creates a new series handler.
func NewSeriesHandler(base *BaseHandler, service *series.Service) *SeriesHandler {
	return &SeriesHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /series?companyId=.
func (h *SeriesHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, err := id.Parse(c.Query("companyId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid companyId"))
		return
	}

	items, err := h.service.List(ctx, companyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	responses := make([]dto.SeriesResponse, 0, len(items))
	for i := range items {
		responses = append(responses, dto.FromSeries(&items[i]))
	}

	h.OK(c, gin.H{"items": responses, "total": len(responses)})
}

// Get handles GET /series/:code?companyId=.
func (h *SeriesHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, err := id.Parse(c.Query("companyId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid companyId"))
		return
	}

	sr, err := h.service.Get(ctx, companyID, c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSeries(sr))
}

// Save handles PUT /series - registers or updates a series.
func (h *SeriesHandler) Save(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SaveSeriesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sr := req.ToEntity()
	if err := h.service.Save(ctx, sr); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSeries(sr))
}

// SetCounter handles PUT /series/:code/counter - seeds the counter.
// Intended for migration; refuses to move the counter backwards.
func (h *SeriesHandler) SetCounter(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SetCounterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	companyID, err := id.Parse(req.CompanyID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid companyId"))
		return
	}

	if err := h.service.SetCounter(ctx, companyID, c.Param("code"), req.Value); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "counter updated")
}

// Deactivate handles DELETE /series/:code?companyId= - stops new issuance.
func (h *SeriesHandler) Deactivate(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, err := id.Parse(c.Query("companyId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid companyId"))
		return
	}

	if err := h.service.Deactivate(ctx, companyID, c.Param("code")); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
