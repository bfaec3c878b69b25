package invoice

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
)

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDraft, StatusIssued, true},
		{StatusDraft, StatusSent, false},
		{StatusDraft, StatusCanceled, false},
		{StatusIssued, StatusSent, true},
		{StatusIssued, StatusCanceled, true},
		{StatusIssued, StatusDraft, false},
		{StatusIssued, StatusIssued, false},
		{StatusSent, StatusCanceled, true},
		{StatusSent, StatusDraft, false},
		{StatusSent, StatusIssued, false},
		{StatusCanceled, StatusDraft, false},
		{StatusCanceled, StatusIssued, false},
		{StatusCanceled, StatusSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestValidateTransition_MissingSeries(t *testing.T) {
	inv := New(id.New(), "")
	err := inv.ValidateTransition(StatusIssued)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMissingSeries, appErr.Code)
}

func TestValidateTransition_InvalidEdge(t *testing.T) {
	inv := New(id.New(), "FACT")
	err := inv.ValidateTransition(StatusSent)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	inv := New(id.New(), "FACT")
	err := inv.ValidateTransition(Status("bogus"))
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestAddLine_Totals(t *testing.T) {
	inv := New(id.New(), "FACT")
	inv.AddLine("consulting", decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.NewFromInt(19))
	inv.AddLine("hosting", decimal.NewFromInt(1), decimal.NewFromInt(50), decimal.NewFromInt(19))

	// 10*100 = 1000 net, 190 VAT; 1*50 = 50 net, 9.50 VAT
	assert.True(t, inv.TotalNet.Equal(decimal.NewFromInt(1050)), "net = %s", inv.TotalNet)
	assert.True(t, inv.TotalVAT.Equal(decimal.RequireFromString("199.5")), "vat = %s", inv.TotalVAT)
	assert.True(t, inv.TotalGross.Equal(decimal.RequireFromString("1249.5")), "gross = %s", inv.TotalGross)

	require.Len(t, inv.Lines, 2)
	assert.Equal(t, 1, inv.Lines[0].LineNo)
	assert.Equal(t, 2, inv.Lines[1].LineNo)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	valid := func() *Invoice {
		inv := New(id.New(), "FACT")
		inv.Detail = &Detail{InvoiceID: inv.ID, CustomerName: "ACME SRL"}
		inv.AddLine("widget", decimal.NewFromInt(1), decimal.NewFromInt(10), decimal.NewFromInt(19))
		return inv
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate(ctx))
	})

	t.Run("missing company", func(t *testing.T) {
		inv := valid()
		inv.CompanyID = id.Nil()
		assert.Error(t, inv.Validate(ctx))
	})

	t.Run("missing customer", func(t *testing.T) {
		inv := valid()
		inv.Detail = nil
		assert.Error(t, inv.Validate(ctx))
	})

	t.Run("no lines", func(t *testing.T) {
		inv := valid()
		inv.Lines = nil
		assert.Error(t, inv.Validate(ctx))
	})

	t.Run("zero quantity", func(t *testing.T) {
		inv := valid()
		inv.Lines[0].Quantity = decimal.Zero
		assert.Error(t, inv.Validate(ctx))
	})

	t.Run("negative price", func(t *testing.T) {
		inv := valid()
		inv.Lines[0].UnitPrice = decimal.NewFromInt(-1)
		assert.Error(t, inv.Validate(ctx))
	})
}

func TestMarkIssued(t *testing.T) {
	inv := New(id.New(), "FACT")
	require.Nil(t, inv.Number)
	require.Nil(t, inv.IssuedAt)
	v := inv.Version

	inv.MarkIssued(42)

	require.NotNil(t, inv.Number)
	assert.Equal(t, int64(42), *inv.Number)
	assert.Equal(t, StatusIssued, inv.Status)
	assert.NotNil(t, inv.IssuedAt)
	assert.Equal(t, v+1, inv.Version)
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, EventIssued, EventTypeFor(StatusIssued))
	assert.Equal(t, EventSent, EventTypeFor(StatusSent))
	assert.Equal(t, EventCanceled, EventTypeFor(StatusCanceled))
	assert.Equal(t, "", EventTypeFor(StatusDraft))
}
