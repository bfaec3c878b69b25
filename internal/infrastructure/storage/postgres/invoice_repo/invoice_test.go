package invoice_repo

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/domain/invoice"
	"geniuserp/internal/infrastructure/storage/postgres"
)

// mockTx records executed SQL and returns a fixed command tag.
type mockTx struct {
	pgx.Tx
	tag      pgconn.CommandTag
	rowErr   error
	lastSQL  string
	lastArgs []any
}

func (m *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.lastSQL = sql
	m.lastArgs = args
	return m.tag, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.lastSQL = sql
	m.lastArgs = args
	return &mockRow{err: m.rowErr}
}

type mockRow struct {
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.err
}

func newMockCtx(tag string) (context.Context, *mockTx) {
	mock := &mockTx{tag: pgconn.NewCommandTag(tag)}
	return postgres.WithTx(context.Background(), mock), mock
}

func newTestRepo() *Repo {
	return NewRepo(postgres.NewTxManagerFromRawPool(nil))
}

func TestUpdateStatus_CASOnPreviousStatus(t *testing.T) {
	repo := newTestRepo()
	ctx, mock := newMockCtx("UPDATE 1")

	inv := invoice.New(id.New(), "FACT")
	inv.Status = invoice.StatusSent

	if err := repo.UpdateStatus(ctx, inv, invoice.StatusIssued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(mock.lastSQL, "status = $") {
		t.Errorf("expected status predicate in SQL: %s", mock.lastSQL)
	}
	if !strings.Contains(mock.lastSQL, "deleted_at IS NULL") {
		t.Errorf("expected deleted_at guard in SQL: %s", mock.lastSQL)
	}
	// Non-draft edges must never rewrite number or issued_at.
	if strings.Contains(mock.lastSQL, "number") || strings.Contains(mock.lastSQL, "issued_at") {
		t.Errorf("number/issued_at must stay frozen: %s", mock.lastSQL)
	}
}

func TestUpdateStatus_DraftEdgeWritesNumber(t *testing.T) {
	repo := newTestRepo()
	ctx, mock := newMockCtx("UPDATE 1")

	inv := invoice.New(id.New(), "FACT")
	inv.MarkIssued(7)

	if err := repo.UpdateStatus(ctx, inv, invoice.StatusDraft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(mock.lastSQL, "number = $") {
		t.Errorf("expected number assignment in SQL: %s", mock.lastSQL)
	}
	if !strings.Contains(mock.lastSQL, "issued_at = $") {
		t.Errorf("expected issued_at assignment in SQL: %s", mock.lastSQL)
	}
}

func TestUpdateStatus_ZeroRowsIsConflict(t *testing.T) {
	repo := newTestRepo()
	ctx, _ := newMockCtx("UPDATE 0")

	inv := invoice.New(id.New(), "FACT")
	inv.Status = invoice.StatusIssued

	err := repo.UpdateStatus(ctx, inv, invoice.StatusDraft)
	if !apperror.IsConcurrentModification(err) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
}

func TestLockSeries_TakesRowLock(t *testing.T) {
	repo := newTestRepo()
	ctx, mock := newMockCtx("SELECT 1")

	if err := repo.LockSeries(ctx, id.New(), "FACT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(mock.lastSQL, "FOR UPDATE") {
		t.Errorf("expected FOR UPDATE lock in SQL: %s", mock.lastSQL)
	}
	if !strings.Contains(mock.lastSQL, "invoice_series") {
		t.Errorf("expected series counter table in SQL: %s", mock.lastSQL)
	}
}

func TestLockSeries_NoCounterRowIsNoop(t *testing.T) {
	repo := newTestRepo()
	ctx, mock := newMockCtx("SELECT 0")
	mock.rowErr = pgx.ErrNoRows

	// A series without a counter row never allocated a number.
	if err := repo.LockSeries(ctx, id.New(), "FRESH"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSoftDelete_ZeroRowsIsNotFound(t *testing.T) {
	repo := newTestRepo()
	ctx, _ := newMockCtx("UPDATE 0")

	inv := invoice.New(id.New(), "FACT")

	err := repo.SoftDelete(ctx, inv)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSoftDelete_KeepsNumber(t *testing.T) {
	repo := newTestRepo()
	ctx, mock := newMockCtx("UPDATE 1")

	inv := invoice.New(id.New(), "FACT")
	inv.MarkIssued(3)

	if err := repo.SoftDelete(ctx, inv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(mock.lastSQL, "deleted_at = NOW()") {
		t.Errorf("expected deleted_at assignment: %s", mock.lastSQL)
	}
	if strings.Contains(mock.lastSQL, "number =") {
		t.Errorf("soft delete must not touch the number: %s", mock.lastSQL)
	}
}
