// Package invoice provides the Invoice aggregate and its lifecycle:
// draft -> issued -> sent, with canceled reachable from issued or sent.
// A legally meaningful sequence number is assigned exactly once, at the
// draft -> issued transition.
package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
)

// Status is the invoice lifecycle state.
// Transitions only ever move forward; canceled and sent are terminal
// except for the sent -> canceled edge.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusIssued   Status = "issued"
	StatusSent     Status = "sent"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusSent, StatusCanceled:
		return true
	}
	return false
}

// transitions enumerates the allowed edges of the lifecycle.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusIssued},
	StatusIssued:   {StatusSent, StatusCanceled},
	StatusSent:     {StatusCanceled},
	StatusCanceled: {},
}

// CanTransition reports whether the edge from -> to is allowed.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Invoice is the aggregate root. Detail and Lines are owned exclusively by
// the invoice and are persisted atomically with it at creation time.
type Invoice struct {
	ID        id.ID `db:"id" json:"id"`
	CompanyID id.ID `db:"company_id" json:"companyId"`

	// Series identifies the numbering stream. Required before issuance;
	// may be set at draft time or deferred.
	Series string `db:"series" json:"series,omitempty"`

	// Number is nil while status = draft. Assigned exactly once at
	// issuance and immutable afterwards.
	Number *int64 `db:"number" json:"number,omitempty"`

	Status Status `db:"status" json:"status"`

	Currency   string          `db:"currency" json:"currency"`
	TotalNet   decimal.Decimal `db:"total_net" json:"totalNet"`
	TotalVAT   decimal.Decimal `db:"total_vat" json:"totalVat"`
	TotalGross decimal.Decimal `db:"total_gross" json:"totalGross"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	IssuedAt  *time.Time `db:"issued_at" json:"issuedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`

	// DeletedAt marks a soft-deleted record. Soft-deleted invoices are
	// excluded from lookups but keep their assigned numbers.
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`

	Detail *Detail `db:"-" json:"detail,omitempty"`
	Lines  []Line  `db:"-" json:"lines"`
}

// Detail holds the invoice header data created atomically with the invoice.
type Detail struct {
	InvoiceID     id.ID  `db:"invoice_id" json:"invoiceId"`
	CustomerName  string `db:"customer_name" json:"customerName"`
	CustomerTaxID string `db:"customer_tax_id" json:"customerTaxId,omitempty"`
	PaymentTerms  string `db:"payment_terms" json:"paymentTerms,omitempty"`
	Notes         string `db:"notes" json:"notes,omitempty"`
}

// Line is a single invoice position.
type Line struct {
	LineID    id.ID           `db:"line_id" json:"lineId"`
	InvoiceID id.ID           `db:"invoice_id" json:"-"`
	LineNo    int             `db:"line_no" json:"lineNo"`
	Product   string          `db:"product" json:"product"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	VATRate   decimal.Decimal `db:"vat_rate" json:"vatRate"` // percent, e.g. 19
	VATAmount decimal.Decimal `db:"vat_amount" json:"vatAmount"`
	Amount    decimal.Decimal `db:"amount" json:"amount"` // net + VAT
}

// New creates a draft invoice for a company. Number stays nil until issuance.
func New(companyID id.ID, series string) *Invoice {
	now := time.Now().UTC()
	return &Invoice{
		ID:         id.New(),
		CompanyID:  companyID,
		Series:     series,
		Status:     StatusDraft,
		Currency:   "RON",
		TotalNet:   decimal.Zero,
		TotalVAT:   decimal.Zero,
		TotalGross: decimal.Zero,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		Lines:      make([]Line, 0),
	}
}

// AddLine appends a line and recalculates totals.
func (inv *Invoice) AddLine(product string, quantity, unitPrice, vatRate decimal.Decimal) {
	net := quantity.Mul(unitPrice)
	vat := net.Mul(vatRate).Div(decimal.NewFromInt(100)).Round(2)

	line := Line{
		LineID:    id.New(),
		InvoiceID: inv.ID,
		LineNo:    len(inv.Lines) + 1,
		Product:   product,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		VATRate:   vatRate,
		VATAmount: vat,
		Amount:    net.Add(vat),
	}

	inv.Lines = append(inv.Lines, line)
	inv.recalculateTotals()
}

// recalculateTotals updates invoice totals from lines.
func (inv *Invoice) recalculateTotals() {
	inv.TotalNet = decimal.Zero
	inv.TotalVAT = decimal.Zero
	inv.TotalGross = decimal.Zero

	for _, line := range inv.Lines {
		net := line.Amount.Sub(line.VATAmount)
		inv.TotalNet = inv.TotalNet.Add(net)
		inv.TotalVAT = inv.TotalVAT.Add(line.VATAmount)
		inv.TotalGross = inv.TotalGross.Add(line.Amount)
	}
}

// Touch updates the UpdatedAt timestamp and increments version.
func (inv *Invoice) Touch() {
	inv.UpdatedAt = time.Now().UTC()
	inv.Version++
}

// IsDeleted reports whether the invoice is soft-deleted.
func (inv *Invoice) IsDeleted() bool {
	return inv.DeletedAt != nil
}

// Validate checks aggregate invariants before persistence.
func (inv *Invoice) Validate(ctx context.Context) error {
	if id.IsNil(inv.CompanyID) {
		return apperror.NewValidation("company is required").
			WithDetail("field", "companyId")
	}

	if inv.Detail == nil || inv.Detail.CustomerName == "" {
		return apperror.NewValidation("customer name is required").
			WithDetail("field", "detail.customerName")
	}

	if len(inv.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range inv.Lines {
		if line.Product == "" {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// ValidateTransition checks the requested edge against the current state.
// draft -> issued additionally requires a non-empty series (MissingSeries).
// Number assignment itself happens in the service, inside the issuance
// transaction.
func (inv *Invoice) ValidateTransition(target Status) error {
	if !target.Valid() {
		return apperror.NewValidation("unknown status").
			WithDetail("field", "status").
			WithDetail("value", string(target))
	}

	if !inv.Status.CanTransition(target) {
		return apperror.NewInvalidTransition(string(inv.Status), string(target))
	}

	if inv.Status == StatusDraft && target == StatusIssued && inv.Series == "" {
		return apperror.NewMissingSeries(inv.ID.String())
	}

	return nil
}

// MarkIssued assigns the number and moves the invoice to issued.
// Series and number are frozen from this point on.
func (inv *Invoice) MarkIssued(number int64) {
	now := time.Now().UTC()
	inv.Number = &number
	inv.Status = StatusIssued
	inv.IssuedAt = &now
	inv.Touch()
}
