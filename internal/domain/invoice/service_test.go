package invoice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geniuserp/internal/core/apperror"
	"geniuserp/internal/core/id"
	"geniuserp/internal/core/sequence"
)

// --- Fakes ---

// seriesLocks models the row locks on series counter rows: one mutex per
// (company, series) key, held until the owning transaction ends.
type seriesLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSeriesLocks() *seriesLocks {
	return &seriesLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *seriesLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.locks[key]; !ok {
		l.locks[key] = &sync.Mutex{}
	}
	return l.locks[key]
}

// txLocks tracks the series locks a transaction holds; released when the
// transaction ends. Re-acquiring a held lock is a no-op, like in Postgres.
type txLocks struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

type txLocksKey struct{}

func acquireSeriesLock(ctx context.Context, locks *seriesLocks, key string) {
	if locks == nil {
		return
	}
	tl, ok := ctx.Value(txLocksKey{}).(*txLocks)
	if !ok {
		return
	}
	tl.mu.Lock()
	if _, held := tl.held[key]; held {
		tl.mu.Unlock()
		return
	}
	tl.mu.Unlock()

	m := locks.get(key)
	m.Lock()

	tl.mu.Lock()
	tl.held[key] = m
	tl.mu.Unlock()
}

// fakeTxManager runs the function directly and releases any series locks
// the function acquired, mirroring lock release at commit/rollback.
type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txLocksKey{}).(*txLocks); ok {
		// Nested call reuses the outer transaction.
		return fn(ctx)
	}

	tl := &txLocks{held: make(map[string]*sync.Mutex)}
	err := fn(context.WithValue(ctx, txLocksKey{}, tl))

	tl.mu.Lock()
	defer tl.mu.Unlock()
	for _, m := range tl.held {
		m.Unlock()
	}
	return err
}

// fakeRepo is an in-memory Repository with CAS semantics on UpdateStatus,
// mirroring the SQL implementation's zero-rows-affected behavior.
type fakeRepo struct {
	mu       sync.Mutex
	invoices map[id.ID]*Invoice

	// locks simulates the series counter row locks when set.
	locks *seriesLocks

	// maxNumberHook runs after MaxNumber reads, before it returns.
	maxNumberHook func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{invoices: make(map[id.ID]*Invoice)}
}

func seriesKey(companyID id.ID, series string) string {
	return companyID.String() + "/" + series
}

func (r *fakeRepo) Create(ctx context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *fakeRepo) get(invoiceID id.ID) (*Invoice, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok || inv.DeletedAt != nil {
		return nil, apperror.NewNotFound("invoice", invoiceID.String())
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(invoiceID)
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(invoiceID)
}

func (r *fakeRepo) GetBySeriesAndNumber(ctx context.Context, companyID id.ID, series string, number int64) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.DeletedAt == nil && inv.CompanyID == companyID &&
			inv.Series == series && inv.Number != nil && *inv.Number == number {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", series)
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, inv *Invoice, from Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invoices[inv.ID]
	if !ok || stored.DeletedAt != nil || stored.Status != from {
		return apperror.NewConcurrentModification("invoice", inv.ID.String())
	}
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *fakeRepo) LockSeries(ctx context.Context, companyID id.ID, series string) error {
	acquireSeriesLock(ctx, r.locks, seriesKey(companyID, series))
	return nil
}

func (r *fakeRepo) MaxNumber(ctx context.Context, companyID id.ID, series string) (int64, error) {
	r.mu.Lock()
	var max int64
	for _, inv := range r.invoices {
		if inv.DeletedAt == nil && inv.CompanyID == companyID &&
			inv.Series == series && inv.Number != nil && *inv.Number > max {
			max = *inv.Number
		}
	}
	r.mu.Unlock()

	if r.maxNumberHook != nil {
		r.maxNumberHook()
	}
	return max, nil
}

func (r *fakeRepo) SoftDelete(ctx context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invoices[inv.ID]
	if !ok || stored.DeletedAt != nil {
		return apperror.NewNotFound("invoice", inv.ID.String())
	}
	now := time.Now().UTC()
	stored.DeletedAt = &now
	return nil
}

// fakeAllocator hands out strictly increasing numbers per (company, series).
// With locks set it takes the series counter lock first, like the SQL
// upsert does.
type fakeAllocator struct {
	mu       sync.Mutex
	counters map[string]int64
	locks    *seriesLocks
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{counters: make(map[string]int64)}
}

func (a *fakeAllocator) NextNumber(ctx context.Context, companyID id.ID, series string) (int64, error) {
	acquireSeriesLock(ctx, a.locks, seriesKey(companyID, series))

	a.mu.Lock()
	defer a.mu.Unlock()
	key := seriesKey(companyID, series)
	a.counters[key]++
	return a.counters[key], nil
}

// --- Helpers ---

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeAllocator) {
	t.Helper()
	repo := newFakeRepo()
	alloc := newFakeAllocator()
	svc := NewService(repo, alloc, fakeTxManager{}, nil)
	return svc, repo, alloc
}

func newDraft(t *testing.T, svc *Service, companyID id.ID, series string) *Invoice {
	t.Helper()
	inv := New(companyID, series)
	inv.Detail = &Detail{CustomerName: "ACME SRL"}
	inv.AddLine("widget", decimal.NewFromInt(1), decimal.NewFromInt(100), decimal.NewFromInt(19))
	require.NoError(t, svc.Create(context.Background(), inv))
	return inv
}

// --- Tests ---

func TestCreate_ForcesDraft(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	inv := New(id.New(), "FACT")
	inv.Detail = &Detail{CustomerName: "ACME SRL"}
	inv.AddLine("widget", decimal.NewFromInt(1), decimal.NewFromInt(100), decimal.NewFromInt(19))

	// Caller-supplied status and number must be discarded.
	n := int64(99)
	inv.Status = StatusIssued
	inv.Number = &n

	require.NoError(t, svc.Create(ctx, inv))

	stored, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, stored.Status)
	assert.Nil(t, stored.Number)
	assert.Nil(t, stored.IssuedAt)
}

func TestCreate_Invalid(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := New(id.New(), "FACT")
	// no detail, no lines
	err := svc.Create(context.Background(), inv)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestIssue_AssignsSequentialNumbers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := id.New()

	for want := int64(1); want <= 3; want++ {
		inv := newDraft(t, svc, companyID, "FACT")
		issued, err := svc.Transition(ctx, inv.ID, StatusIssued)
		require.NoError(t, err)
		require.NotNil(t, issued.Number)
		assert.Equal(t, want, *issued.Number)
		assert.Equal(t, StatusIssued, issued.Status)
		assert.NotNil(t, issued.IssuedAt)
	}
}

func TestIssue_SeriesIndependent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := id.New()

	a := newDraft(t, svc, companyID, "FACT")
	b := newDraft(t, svc, companyID, "PROF")

	issuedA, err := svc.Transition(ctx, a.ID, StatusIssued)
	require.NoError(t, err)
	issuedB, err := svc.Transition(ctx, b.ID, StatusIssued)
	require.NoError(t, err)

	assert.Equal(t, int64(1), *issuedA.Number)
	assert.Equal(t, int64(1), *issuedB.Number)
}

func TestIssue_MissingSeries(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	inv := newDraft(t, svc, id.New(), "")
	_, err := svc.Transition(ctx, inv.ID, StatusIssued)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMissingSeries, appErr.Code)
}

func TestIssue_Twice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	inv := newDraft(t, svc, id.New(), "FACT")
	_, err := svc.Transition(ctx, inv.ID, StatusIssued)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, inv.ID, StatusIssued)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestTransition_FullLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	inv := newDraft(t, svc, id.New(), "FACT")

	issued, err := svc.Transition(ctx, inv.ID, StatusIssued)
	require.NoError(t, err)
	number := *issued.Number

	sent, err := svc.Transition(ctx, inv.ID, StatusSent)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	assert.Equal(t, number, *sent.Number, "number frozen after issuance")

	canceled, err := svc.Transition(ctx, inv.ID, StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)
	assert.Equal(t, number, *canceled.Number)

	// Terminal state: nothing leaves canceled.
	_, err = svc.Transition(ctx, inv.ID, StatusSent)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestTransition_DraftCannotSkip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	inv := newDraft(t, svc, id.New(), "FACT")

	_, err := svc.Transition(ctx, inv.ID, StatusSent)
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = svc.Transition(ctx, inv.ID, StatusCanceled)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestIssue_ConcurrentSameSeries(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	companyID := id.New()

	const n = 20
	drafts := make([]*Invoice, n)
	for i := range drafts {
		drafts[i] = newDraft(t, svc, companyID, "FACT")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, drafts[i].ID, StatusIssued)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "invoice %d", i)
	}

	// All numbers assigned, no duplicates, no gaps.
	seen := make(map[int64]bool, n)
	for _, d := range drafts {
		stored, err := repo.GetByID(ctx, d.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.Number)
		assert.False(t, seen[*stored.Number], "duplicate number %d", *stored.Number)
		seen[*stored.Number] = true
	}
	for want := int64(1); want <= n; want++ {
		assert.True(t, seen[want], "missing number %d", want)
	}
}

func TestIssue_RetryOnConflict(t *testing.T) {
	repo := newFakeRepo()
	alloc := newFakeAllocator()

	// Allocator that fails with a transient conflict on the first two calls.
	calls := 0
	flaky := &sequence.Mock{
		NextNumberFunc: func(ctx context.Context, companyID id.ID, series string) (int64, error) {
			calls++
			if calls <= 2 {
				return 0, apperror.NewConcurrentModification("invoice_series", series)
			}
			return alloc.NextNumber(ctx, companyID, series)
		},
	}

	svc := NewService(repo, flaky, fakeTxManager{}, nil)
	inv := newDraft(t, svc, id.New(), "FACT")

	issued, err := svc.Transition(context.Background(), inv.ID, StatusIssued)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *issued.Number)
	assert.Equal(t, 3, calls)
}

func TestIssue_RetriesExhausted(t *testing.T) {
	repo := newFakeRepo()
	flaky := &sequence.Mock{
		NextNumberFunc: func(ctx context.Context, companyID id.ID, series string) (int64, error) {
			return 0, apperror.NewConcurrentModification("invoice_series", series)
		},
	}

	svc := NewService(repo, flaky, fakeTxManager{}, nil)
	inv := newDraft(t, svc, id.New(), "FACT")

	_, err := svc.Transition(context.Background(), inv.ID, StatusIssued)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConcurrencyExhausted, appErr.Code)
}

func TestDelete_Draft(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	inv := newDraft(t, svc, id.New(), "FACT")
	require.NoError(t, svc.Delete(ctx, inv.ID))

	_, err := svc.GetByID(ctx, inv.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDelete_LastIssuedOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := id.New()

	first := newDraft(t, svc, companyID, "FACT")
	second := newDraft(t, svc, companyID, "FACT")

	_, err := svc.Transition(ctx, first.ID, StatusIssued)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, second.ID, StatusIssued)
	require.NoError(t, err)

	// #1 is not the topmost number, deletion must be refused.
	err = svc.Delete(ctx, first.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsPolicyViolation(err))

	// #2 is the topmost, deletion is allowed.
	require.NoError(t, svc.Delete(ctx, second.ID))

	// With #2 gone, #1 becomes the topmost.
	require.NoError(t, svc.Delete(ctx, first.ID))
}

func TestDelete_SentAndCanceledImmutable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := id.New()

	sent := newDraft(t, svc, companyID, "FACT")
	_, err := svc.Transition(ctx, sent.ID, StatusIssued)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, sent.ID, StatusSent)
	require.NoError(t, err)

	err = svc.Delete(ctx, sent.ID)
	assert.True(t, apperror.IsPolicyViolation(err))

	canceled := newDraft(t, svc, companyID, "FACT")
	_, err = svc.Transition(ctx, canceled.ID, StatusIssued)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, canceled.ID, StatusCanceled)
	require.NoError(t, err)

	err = svc.Delete(ctx, canceled.ID)
	assert.True(t, apperror.IsPolicyViolation(err))
}

// A deletion holds the series counter lock across the topmost check and
// the delete, so an issuance started in that window must wait for the
// deletion to finish instead of committing a higher number mid-check.
// Without the lock the delete would remove a no-longer-topmost invoice
// and leave a hole in the sequence.
func TestDelete_SerializesWithIssuance(t *testing.T) {
	locks := newSeriesLocks()
	repo := newFakeRepo()
	repo.locks = locks
	alloc := newFakeAllocator()
	alloc.locks = locks
	svc := NewService(repo, alloc, fakeTxManager{}, nil)
	ctx := context.Background()
	companyID := id.New()

	first := newDraft(t, svc, companyID, "FACT")
	second := newDraft(t, svc, companyID, "FACT")

	issued, err := svc.Transition(ctx, first.ID, StatusIssued)
	require.NoError(t, err)
	require.Equal(t, int64(1), *issued.Number)

	issueDone := make(chan error, 1)
	repo.maxNumberHook = func() {
		repo.maxNumberHook = nil

		// The delete holds the series lock at this point. Start a
		// concurrent issuance: it must block, not allocate #2.
		go func() {
			_, err := svc.Transition(ctx, second.ID, StatusIssued)
			issueDone <- err
		}()

		select {
		case <-issueDone:
			t.Error("issuance completed while deletion held the series lock")
		case <-time.After(50 * time.Millisecond):
		}
	}

	require.NoError(t, svc.Delete(ctx, first.ID))

	require.NoError(t, <-issueDone)
	stored, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Number)
	assert.Equal(t, int64(2), *stored.Number)

	// First stays deleted; it was the topmost when its delete committed.
	_, err = svc.GetByID(ctx, first.ID)
	assert.True(t, apperror.IsNotFound(err))
}

// Deleting the topmost issued invoice does not roll the counter back:
// the next issuance continues past the freed number.
func TestDelete_NumberNeverReused(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := id.New()

	first := newDraft(t, svc, companyID, "FACT")
	issued, err := svc.Transition(ctx, first.ID, StatusIssued)
	require.NoError(t, err)
	require.Equal(t, int64(1), *issued.Number)

	require.NoError(t, svc.Delete(ctx, first.ID))

	second := newDraft(t, svc, companyID, "FACT")
	issued, err = svc.Transition(ctx, second.ID, StatusIssued)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *issued.Number)
}

func TestGetBySeriesAndNumber(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := id.New()

	inv := newDraft(t, svc, companyID, "FACT")
	_, err := svc.Transition(ctx, inv.ID, StatusIssued)
	require.NoError(t, err)

	found, err := svc.GetBySeriesAndNumber(ctx, companyID, "FACT", 1)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, found.ID)

	_, err = svc.GetBySeriesAndNumber(ctx, companyID, "FACT", 2)
	assert.True(t, apperror.IsNotFound(err))
}

// recordingEvents captures recorded events for assertions.
type recordingEvents struct {
	mu          sync.Mutex
	transitions []string
	deletions   []string
}

func (r *recordingEvents) RecordTransition(ctx context.Context, inv *Invoice, previous Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(previous)+"->"+string(inv.Status))
	return nil
}

func (r *recordingEvents) RecordDeletion(ctx context.Context, inv *Invoice, previous Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletions = append(r.deletions, string(previous))
	return nil
}

func TestEvents_RecordedPerOperation(t *testing.T) {
	repo := newFakeRepo()
	events := &recordingEvents{}
	svc := NewService(repo, newFakeAllocator(), fakeTxManager{}, events)
	ctx := context.Background()

	inv := newDraft(t, svc, id.New(), "FACT")
	_, err := svc.Transition(ctx, inv.ID, StatusIssued)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, inv.ID, StatusSent)
	require.NoError(t, err)

	other := newDraft(t, svc, id.New(), "FACT")
	require.NoError(t, svc.Delete(ctx, other.ID))

	assert.Equal(t, []string{"draft->issued", "issued->sent"}, events.transitions)
	assert.Equal(t, []string{"draft"}, events.deletions)
}
