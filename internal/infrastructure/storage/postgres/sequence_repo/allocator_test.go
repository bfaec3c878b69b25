package sequence_repo

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/infrastructure/storage/postgres"
)

// Mock objects

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockTx simulates the counter upsert: one monotonically increasing value
// per series key, no row for deactivated series (WHERE arm filters it).
type mockTx struct {
	pgx.Tx
	mu       sync.Mutex
	counters map[string]int64
	inactive map[string]bool
	calls    int
}

func newMockTx() *mockTx {
	return &mockTx{
		counters: make(map[string]int64),
		inactive: make(map[string]bool),
	}
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	series, _ := args[1].(string)
	if m.inactive[series] {
		return &mockRow{err: pgx.ErrNoRows}
	}
	m.counters[series]++
	return &mockRow{val: m.counters[series]}
}

func newTestAllocator() *Allocator {
	// Pool is never touched: the allocator only reads the tx from context.
	return NewAllocator(postgres.NewTxManagerFromRawPool(nil))
}

func TestNextNumber_Sequential(t *testing.T) {
	alloc := newTestAllocator()
	mock := newMockTx()
	ctx := postgres.WithTx(context.Background(), mock)
	companyID := id.New()

	for want := int64(1); want <= 3; want++ {
		got, err := alloc.NextNumber(ctx, companyID, "FACT")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestNextNumber_SeriesIndependent(t *testing.T) {
	alloc := newTestAllocator()
	mock := newMockTx()
	ctx := postgres.WithTx(context.Background(), mock)
	companyID := id.New()

	if _, err := alloc.NextNumber(ctx, companyID, "FACT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := alloc.NextNumber(ctx, companyID, "PROF")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("expected PROF to start at 1, got %d", got)
	}
}

func TestNextNumber_RequiresTransaction(t *testing.T) {
	alloc := newTestAllocator()

	_, err := alloc.NextNumber(context.Background(), id.New(), "FACT")
	if err == nil {
		t.Fatal("expected error outside transaction")
	}
}

func TestNextNumber_EmptySeries(t *testing.T) {
	alloc := newTestAllocator()
	mock := newMockTx()
	ctx := postgres.WithTx(context.Background(), mock)

	_, err := alloc.NextNumber(ctx, id.New(), "")
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("expected no DB call, got %d", mock.calls)
	}
}

func TestNextNumber_DeactivatedSeries(t *testing.T) {
	alloc := newTestAllocator()
	mock := newMockTx()
	mock.inactive["OLD"] = true
	ctx := postgres.WithTx(context.Background(), mock)

	_, err := alloc.NextNumber(ctx, id.New(), "OLD")
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeValidation {
		t.Fatalf("expected validation error for deactivated series, got %v", err)
	}
}
