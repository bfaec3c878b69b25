// Package invoice_repo provides the PostgreSQL implementation of the
// invoice aggregate repository.
package invoice_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/domain/invoice"
	"geniuserp/internal/infrastructure/storage/postgres"
)

const (
	invoiceTable = "invoices"
	detailTable  = "invoice_details"
	lineTable    = "invoice_lines"
)

var invoiceCols = []string{
	"id", "company_id", "series", "number", "status",
	"currency", "total_net", "total_vat", "total_gross",
	"version", "issued_at", "created_at", "updated_at", "deleted_at",
}

var lineCols = []string{
	"line_id", "invoice_id", "line_no", "product",
	"quantity", "unit_price", "vat_rate", "vat_amount", "amount",
}

// Compile-time check against the domain contract.
var _ invoice.Repository = (*Repo)(nil)

// Repo persists the invoice aggregate. All writes pick up the transaction
// from context through the TxManager.
type Repo struct {
	txm *postgres.TxManager
}

// NewRepo creates a new invoice repository.
func NewRepo(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func (r *Repo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts the invoice row, the detail row and every line row.
// The caller wraps it in a transaction, so a failed insert leaves nothing.
func (r *Repo) Create(ctx context.Context, inv *invoice.Invoice) error {
	querier := r.txm.GetQuerier(ctx)

	q := r.builder().
		Insert(invoiceTable).
		Columns(invoiceCols...).
		Values(
			inv.ID, inv.CompanyID, inv.Series, inv.Number, inv.Status,
			inv.Currency, inv.TotalNet, inv.TotalVAT, inv.TotalGross,
			inv.Version, inv.IssuedAt, inv.CreatedAt, inv.UpdatedAt, inv.DeletedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert invoice: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert invoice: %w", err))
	}

	if inv.Detail != nil {
		dq := r.builder().
			Insert(detailTable).
			Columns("invoice_id", "customer_name", "customer_tax_id", "payment_terms", "notes").
			Values(inv.ID, inv.Detail.CustomerName, inv.Detail.CustomerTaxID, inv.Detail.PaymentTerms, inv.Detail.Notes)

		sql, args, err := dq.ToSql()
		if err != nil {
			return fmt.Errorf("build insert detail: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return apperror.NewDatabase(fmt.Errorf("insert invoice detail: %w", err))
		}
	}

	for _, line := range inv.Lines {
		lq := r.builder().
			Insert(lineTable).
			Columns(lineCols...).
			Values(
				line.LineID, inv.ID, line.LineNo, line.Product,
				line.Quantity, line.UnitPrice, line.VATRate, line.VATAmount, line.Amount,
			)

		sql, args, err := lq.ToSql()
		if err != nil {
			return fmt.Errorf("build insert line: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return apperror.NewDatabase(fmt.Errorf("insert invoice line %d: %w", line.LineNo, err))
		}
	}

	return nil
}

// GetByID loads the full aggregate. Soft-deleted rows are NotFound.
func (r *Repo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	inv, err := r.getHeader(ctx, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// GetForUpdate loads the aggregate with the invoice row locked.
func (r *Repo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	inv, err := r.getHeader(ctx, invoiceID, true)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *Repo) getHeader(ctx context.Context, invoiceID id.ID, forUpdate bool) (*invoice.Invoice, error) {
	q := r.builder().
		Select(invoiceCols...).
		From(invoiceTable).
		Where(squirrel.Eq{"id": invoiceID}).
		Where("deleted_at IS NULL")
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv invoice.Invoice
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID.String())
		}
		return nil, apperror.NewDatabase(fmt.Errorf("get invoice: %w", err))
	}

	return &inv, nil
}

// GetBySeriesAndNumber is a point lookup by the legal document number.
func (r *Repo) GetBySeriesAndNumber(ctx context.Context, companyID id.ID, series string, number int64) (*invoice.Invoice, error) {
	q := r.builder().
		Select(invoiceCols...).
		From(invoiceTable).
		Where(squirrel.Eq{"company_id": companyID, "series": series, "number": number}).
		Where("deleted_at IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv invoice.Invoice
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", fmt.Sprintf("%s-%d", series, number))
		}
		return nil, apperror.NewDatabase(fmt.Errorf("get invoice by number: %w", err))
	}

	if err := r.loadChildren(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repo) loadChildren(ctx context.Context, inv *invoice.Invoice) error {
	querier := r.txm.GetQuerier(ctx)

	dq := r.builder().
		Select("invoice_id", "customer_name", "customer_tax_id", "payment_terms", "notes").
		From(detailTable).
		Where(squirrel.Eq{"invoice_id": inv.ID})

	sql, args, err := dq.ToSql()
	if err != nil {
		return fmt.Errorf("build detail query: %w", err)
	}

	var detail invoice.Detail
	if err := pgxscan.Get(ctx, querier, &detail, sql, args...); err != nil {
		if !pgxscan.NotFound(err) {
			return apperror.NewDatabase(fmt.Errorf("get invoice detail: %w", err))
		}
	} else {
		inv.Detail = &detail
	}

	lq := r.builder().
		Select(lineCols...).
		From(lineTable).
		Where(squirrel.Eq{"invoice_id": inv.ID}).
		OrderBy("line_no")

	sql, args, err = lq.ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}

	lines := make([]invoice.Line, 0)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("get invoice lines: %w", err))
	}
	inv.Lines = lines

	return nil
}

// UpdateStatus writes the new status with a compare-and-swap on the
// previous one. Number and issued_at are written only on the draft edge,
// which keeps them frozen for every later transition.
func (r *Repo) UpdateStatus(ctx context.Context, inv *invoice.Invoice, from invoice.Status) error {
	q := r.builder().
		Update(invoiceTable).
		Set("status", inv.Status).
		Set("updated_at", inv.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": inv.ID, "status": from}).
		Where("deleted_at IS NULL")

	if from == invoice.StatusDraft {
		q = q.Set("number", inv.Number).
			Set("issued_at", inv.IssuedAt)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("update invoice status: %w", err))
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("invoice", inv.ID.String())
	}

	return nil
}

// LockSeries locks the series counter row for the rest of the current
// transaction. Issuance increments the same row, so a deletion holding
// this lock cannot race a concurrent issuance in the series: the topmost
// check and the delete commit before any higher number can be allocated.
func (r *Repo) LockSeries(ctx context.Context, companyID id.ID, series string) error {
	querier := r.txm.GetQuerier(ctx)

	var lastValue int64
	err := querier.QueryRow(ctx, `
		SELECT last_value FROM invoice_series
		WHERE company_id = $1 AND code = $2
		FOR UPDATE
	`, companyID, series).Scan(&lastValue)

	if err != nil {
		// No counter row means no number was ever allocated in the series.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperror.NewDatabase(fmt.Errorf("lock series %q: %w", series, err))
	}

	return nil
}

// MaxNumber returns the highest assigned number among non-deleted invoices
// of the series, or 0 if none.
func (r *Repo) MaxNumber(ctx context.Context, companyID id.ID, series string) (int64, error) {
	q := r.builder().
		Select("COALESCE(MAX(number), 0)").
		From(invoiceTable).
		Where(squirrel.Eq{"company_id": companyID, "series": series}).
		Where("number IS NOT NULL").
		Where("deleted_at IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build max number query: %w", err)
	}

	var max int64
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&max); err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, apperror.NewDatabase(fmt.Errorf("max number in series: %w", err))
	}

	return max, nil
}

// SoftDelete sets deleted_at. The assigned number stays on the record.
func (r *Repo) SoftDelete(ctx context.Context, inv *invoice.Invoice) error {
	q := r.builder().
		Update(invoiceTable).
		Set("deleted_at", squirrel.Expr("NOW()")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": inv.ID}).
		Where("deleted_at IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("soft delete invoice: %w", err))
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("invoice", inv.ID.String())
	}

	return nil
}
