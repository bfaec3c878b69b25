package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/domain/invoice"
	"geniuserp/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler handles HTTP requests for invoices.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /invoices - creates a draft invoice.
func (h *InvoiceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv := req.ToEntity()
	if err := h.service.Create(ctx, inv); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromInvoice(inv))
}

// GetByID handles GET /invoices/:id.
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	invoiceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	inv, err := h.service.GetByID(ctx, invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// Lookup handles GET /invoices/lookup?companyId=&series=&number= -
// resolves an invoice by its allocated number.
func (h *InvoiceHandler) Lookup(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, err := id.Parse(c.Query("companyId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid companyId"))
		return
	}

	seriesCode := c.Query("series")
	if seriesCode == "" {
		h.Error(c, apperror.NewValidation("series is required"))
		return
	}

	number, err := strconv.ParseInt(c.Query("number"), 10, 64)
	if err != nil || number < 1 {
		h.Error(c, apperror.NewValidation("number must be a positive integer"))
		return
	}

	inv, err := h.service.GetBySeriesAndNumber(ctx, companyID, seriesCode, number)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// Issue handles POST /invoices/:id/issue - allocates number and issues.
func (h *InvoiceHandler) Issue(c *gin.Context) {
	h.transition(c, invoice.StatusIssued)
}

// Send handles POST /invoices/:id/send.
func (h *InvoiceHandler) Send(c *gin.Context) {
	h.transition(c, invoice.StatusSent)
}

// Cancel handles POST /invoices/:id/cancel.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.transition(c, invoice.StatusCanceled)
}

func (h *InvoiceHandler) transition(c *gin.Context, target invoice.Status) {
	ctx := c.Request.Context()

	invoiceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	inv, err := h.service.Transition(ctx, invoiceID, target)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}

// Delete handles DELETE /invoices/:id - soft delete subject to policy.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	invoiceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, invoiceID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
