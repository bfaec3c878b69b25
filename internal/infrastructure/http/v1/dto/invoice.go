package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"geniuserp/internal/core/id"
	"geniuserp/internal/domain/invoice"
)

// --- Request DTOs ---

// CreateInvoiceRequest represents a request to create a draft invoice.
// Status and number are never accepted from the caller.
type CreateInvoiceRequest struct {
	CompanyID string               `json:"companyId" binding:"required,uuid"`
	Series    string               `json:"series,omitempty"`
	Currency  string               `json:"currency,omitempty"`
	Detail    InvoiceDetailRequest `json:"detail" binding:"required"`
	Lines     []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// InvoiceDetailRequest carries the header data.
type InvoiceDetailRequest struct {
	CustomerName  string `json:"customerName" binding:"required"`
	CustomerTaxID string `json:"customerTaxId,omitempty"`
	PaymentTerms  string `json:"paymentTerms,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// InvoiceLineRequest represents a line in the create request.
type InvoiceLineRequest struct {
	Product   string          `json:"product" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unitPrice" binding:"required"`
	VATRate   decimal.Decimal `json:"vatRate"`
}

// ToEntity converts request to domain entity.
func (r *CreateInvoiceRequest) ToEntity() *invoice.Invoice {
	companyID, _ := id.Parse(r.CompanyID)

	inv := invoice.New(companyID, r.Series)
	if r.Currency != "" {
		inv.Currency = r.Currency
	}
	inv.Detail = &invoice.Detail{
		InvoiceID:     inv.ID,
		CustomerName:  r.Detail.CustomerName,
		CustomerTaxID: r.Detail.CustomerTaxID,
		PaymentTerms:  r.Detail.PaymentTerms,
		Notes:         r.Detail.Notes,
	}

	for _, line := range r.Lines {
		inv.AddLine(line.Product, line.Quantity, line.UnitPrice, line.VATRate)
	}

	return inv
}

// --- Response DTOs ---

// InvoiceResponse is the API representation of an invoice.
type InvoiceResponse struct {
	ID         string                 `json:"id"`
	CompanyID  string                 `json:"companyId"`
	Series     string                 `json:"series,omitempty"`
	Number     *int64                 `json:"number,omitempty"`
	Status     string                 `json:"status"`
	Currency   string                 `json:"currency"`
	TotalNet   decimal.Decimal        `json:"totalNet"`
	TotalVAT   decimal.Decimal        `json:"totalVat"`
	TotalGross decimal.Decimal        `json:"totalGross"`
	IssuedAt   *time.Time             `json:"issuedAt,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	Detail     *InvoiceDetailResponse `json:"detail,omitempty"`
	Lines      []InvoiceLineResponse  `json:"lines"`
}

// InvoiceDetailResponse mirrors the detail record.
type InvoiceDetailResponse struct {
	CustomerName  string `json:"customerName"`
	CustomerTaxID string `json:"customerTaxId,omitempty"`
	PaymentTerms  string `json:"paymentTerms,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// InvoiceLineResponse mirrors one invoice line.
type InvoiceLineResponse struct {
	LineNo    int             `json:"lineNo"`
	Product   string          `json:"product"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	VATRate   decimal.Decimal `json:"vatRate"`
	VATAmount decimal.Decimal `json:"vatAmount"`
	Amount    decimal.Decimal `json:"amount"`
}

// FromInvoice converts a domain entity into the API representation.
func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:         inv.ID.String(),
		CompanyID:  inv.CompanyID.String(),
		Series:     inv.Series,
		Number:     inv.Number,
		Status:     string(inv.Status),
		Currency:   inv.Currency,
		TotalNet:   inv.TotalNet,
		TotalVAT:   inv.TotalVAT,
		TotalGross: inv.TotalGross,
		IssuedAt:   inv.IssuedAt,
		CreatedAt:  inv.CreatedAt,
		UpdatedAt:  inv.UpdatedAt,
		Lines:      make([]InvoiceLineResponse, 0, len(inv.Lines)),
	}

	if inv.Detail != nil {
		resp.Detail = &InvoiceDetailResponse{
			CustomerName:  inv.Detail.CustomerName,
			CustomerTaxID: inv.Detail.CustomerTaxID,
			PaymentTerms:  inv.Detail.PaymentTerms,
			Notes:         inv.Detail.Notes,
		}
	}

	for _, line := range inv.Lines {
		resp.Lines = append(resp.Lines, InvoiceLineResponse{
			LineNo:    line.LineNo,
			Product:   line.Product,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			VATRate:   line.VATRate,
			VATAmount: line.VATAmount,
			Amount:    line.Amount,
		})
	}

	return resp
}
