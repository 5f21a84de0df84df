package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// fakeStore backs both repositories with transactional semantics: the tx
// manager snapshots it before running the callback and restores the
// snapshot when the callback errors, mirroring a database rollback.
type fakeStore struct {
	mu      sync.Mutex
	prs     map[uuid.UUID]model.PurchaseRequest
	entries []model.TrackingEntry

	// test hooks
	beforeUpdate func() // runs inside UpdateState before the version check
	appendErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{prs: make(map[uuid.UUID]model.PurchaseRequest)}
}

func (s *fakeStore) snapshot() ([]model.TrackingEntry, map[uuid.UUID]model.PurchaseRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prs := make(map[uuid.UUID]model.PurchaseRequest, len(s.prs))
	for k, v := range s.prs {
		prs[k] = v
	}
	return append([]model.TrackingEntry(nil), s.entries...), prs
}

func (s *fakeStore) restore(entries []model.TrackingEntry, prs map[uuid.UUID]model.PurchaseRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.prs = prs
}

// txWritesKey carries a per-transaction write counter so the fake tx
// manager can tell a rollback with dirty writes apart from a transaction
// that failed before writing anything (restoring a stale snapshot in the
// latter case would clobber a concurrent winner's commit).
type txWritesKey struct{}

func markWrite(ctx context.Context) {
	if counter, ok := ctx.Value(txWritesKey{}).(*int32); ok {
		atomic.AddInt32(counter, 1)
	}
}

type fakeTxManager struct {
	store *fakeStore
}

func (t *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	counter := new(int32)
	txCtx := context.WithValue(ctx, txWritesKey{}, counter)
	entries, prs := t.store.snapshot()
	if err := fn(txCtx); err != nil {
		if atomic.LoadInt32(counter) > 0 {
			t.store.restore(entries, prs)
		}
		return err
	}
	return nil
}

type fakePRRepo struct {
	store *fakeStore
}

func (r *fakePRRepo) Create(ctx context.Context, pr *model.PurchaseRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	r.store.prs[pr.ID] = *pr
	markWrite(ctx)
	return nil
}

func (r *fakePRRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	r.store.mu.Lock()
	pr, ok := r.store.prs[id]
	r.store.mu.Unlock()
	if !ok {
		return nil, model.ErrPRNotFound
	}
	return &pr, nil
}

func (r *fakePRRepo) FindByNumber(ctx context.Context, prNumber string) (*model.PurchaseRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, pr := range r.store.prs {
		if pr.PRNumber == prNumber {
			found := pr
			return &found, nil
		}
	}
	return nil, model.ErrPRNotFound
}

func (r *fakePRRepo) List(ctx context.Context, filter repository.PRFilter) ([]model.PurchaseRequest, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.PurchaseRequest
	for _, pr := range r.store.prs {
		if filter.Status != "" && string(pr.Status) != filter.Status {
			continue
		}
		out = append(out, pr)
	}
	return out, int64(len(out)), nil
}

func (r *fakePRRepo) UpdateState(ctx context.Context, id uuid.UUID, fromVersion int64, status model.PRStatus, designation model.Designation) error {
	if r.store.beforeUpdate != nil {
		r.store.beforeUpdate()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	pr, ok := r.store.prs[id]
	if !ok || pr.Version != fromVersion {
		return model.ErrConcurrentModification
	}
	pr.Status = status
	pr.CurrentDesignation = designation
	pr.Version++
	r.store.prs[id] = pr
	markWrite(ctx)
	return nil
}

type fakeTrackingRepo struct {
	store *fakeStore
}

func (r *fakeTrackingRepo) Append(ctx context.Context, entry *model.TrackingEntry) error {
	if r.store.appendErr != nil {
		return r.store.appendErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry.ID = uuid.New()
	r.store.entries = append(r.store.entries, *entry)
	markWrite(ctx)
	return nil
}

func (r *fakeTrackingRepo) ListForPR(ctx context.Context, prID uuid.UUID) ([]model.TrackingEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.TrackingEntry
	for _, e := range r.store.entries {
		if e.PRID == prID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeTrackingRepo) ListRecent(ctx context.Context, limit int) ([]model.TrackingEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := append([]model.TrackingEntry(nil), r.store.entries...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *fakeBroadcaster) BroadcastEvent(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
}

func newTestService() (*fakeStore, *fakeBroadcaster, LifecycleService) {
	store := newFakeStore()
	hub := &fakeBroadcaster{}
	svc := NewLifecycleService(
		&fakePRRepo{store: store},
		&fakeTrackingRepo{store: store},
		&fakeTxManager{store: store},
		hub,
	)
	return store, hub, svc
}

// --- tests ---

func TestCreateThenApproveThenForward(t *testing.T) {
	store, _, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-01-0001",
		Description: "Office chairs",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", pr.Status)
	require.Equal(t, "procurement", pr.CurrentDesignation)
	require.Len(t, store.entries, 1)
	require.Equal(t, "Initial creation", store.entries[0].Notes)

	pr, err = svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{Action: "approve"})
	require.NoError(t, err)
	require.Equal(t, "approved", pr.Status)

	pr, err = svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{
		Action:      "forward",
		Destination: "supply",
	})
	require.NoError(t, err)
	require.Equal(t, "forwarded", pr.Status)
	require.Equal(t, "supply", pr.CurrentDesignation)
	require.Len(t, store.entries, 3)

	// current state is a projection of the latest trail entry
	last := store.entries[len(store.entries)-1]
	require.Equal(t, model.StatusForwarded, last.Status)
	require.Equal(t, model.DesignationSupply, last.Designation)
	require.Equal(t, model.DesignationProcurement, last.ActorRole)
}

func TestCreateRejectsBadNumberAndDuplicate(t *testing.T) {
	store, _, svc := newTestService()
	ctx := context.Background()

	_, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-13-0001",
		Description: "bad month",
	})
	require.ErrorIs(t, err, model.ErrInvalidPRNumber)
	require.Empty(t, store.entries)

	_, err = svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-01-0001",
		Description: "first",
	})
	require.NoError(t, err)

	_, err = svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-01-0001",
		Description: "second",
	})
	require.ErrorIs(t, err, model.ErrDuplicatePRNumber)
	require.Len(t, store.prs, 1)
	require.Len(t, store.entries, 1)
}

func TestEndUserSubmissionLandsAtProcurement(t *testing.T) {
	_, _, svc := newTestService()

	pr, err := svc.CreatePurchaseRequest(context.Background(), "end-user", CreatePRRequest{
		PRNumber:    "PR-2025-02-0007",
		Description: "Printer toner",
	})
	require.NoError(t, err)
	require.Equal(t, "procurement", pr.CurrentDesignation)
}

func TestApplyTransitionNotOwner(t *testing.T) {
	store, hub, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "budget", CreatePRRequest{
		PRNumber:    "PR-2025-03-0002",
		Description: "Projector",
		Designation: "budget",
	})
	require.NoError(t, err)

	_, err = svc.ApplyTransition(ctx, pr.ID, "admin", TransitionRequest{Action: "approve"})
	require.ErrorIs(t, err, model.ErrNotOwner)

	// nothing moved, nothing appended, nothing broadcast
	got, err := svc.GetPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, "pending", got.Status)
	require.Len(t, store.entries, 1)
	require.Empty(t, hub.payloads)
}

func TestSupplyReceiveThenForwardFails(t *testing.T) {
	_, _, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-04-0003",
		Description: "Network switches",
	})
	require.NoError(t, err)

	_, err = svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{Action: "approve"})
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{Action: "forward", Destination: "supply"})
	require.NoError(t, err)

	got, err := svc.ApplyTransition(ctx, pr.ID, "supply", TransitionRequest{Action: "receive"})
	require.NoError(t, err)
	require.Equal(t, "received", got.Status)

	_, err = svc.ApplyTransition(ctx, pr.ID, "supply", TransitionRequest{Action: "forward", Destination: "budget"})
	require.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestSupplyDeliveryDiscrepancyReturn(t *testing.T) {
	_, _, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-05-0004",
		Description: "Laptops",
	})
	require.NoError(t, err)

	for _, step := range []TransitionRequest{
		{Action: "approve"},
		{Action: "forward", Destination: "supply"},
	} {
		_, err = svc.ApplyTransition(ctx, pr.ID, "procurement", step)
		require.NoError(t, err)
	}

	got, err := svc.ApplyTransition(ctx, pr.ID, "supply", TransitionRequest{Action: "mark_delivered"})
	require.NoError(t, err)
	require.Equal(t, "delivered", got.Status)

	got, err = svc.ApplyTransition(ctx, pr.ID, "supply", TransitionRequest{Action: "report_discrepancy"})
	require.NoError(t, err)
	require.Equal(t, "discrepancy", got.Status)

	got, err = svc.ApplyTransition(ctx, pr.ID, "supply", TransitionRequest{Action: "return", Destination: "procurement"})
	require.NoError(t, err)
	require.Equal(t, "returned", got.Status)
	require.Equal(t, "procurement", got.CurrentDesignation)
}

func TestTrailAppendFailureAbortsTransition(t *testing.T) {
	store, hub, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-06-0005",
		Description: "Monitors",
	})
	require.NoError(t, err)

	store.appendErr = errors.New("disk full")
	_, err = svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{Action: "approve"})
	require.Error(t, err)

	// the rolled-back transaction left neither the state change nor a
	// dangling trail entry behind
	got, err := svc.GetPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, "pending", got.Status)
	require.Len(t, store.entries, 1)
	require.Empty(t, hub.payloads)

	// and the request remains fully usable afterwards
	store.appendErr = nil
	got, err = svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{Action: "approve"})
	require.NoError(t, err)
	require.Equal(t, "approved", got.Status)
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	store, _, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-07-0006",
		Description: "Desks",
	})
	require.NoError(t, err)

	// hold both callers until each has loaded the same version
	var barrier sync.WaitGroup
	barrier.Add(2)
	store.beforeUpdate = func() {
		barrier.Done()
		barrier.Wait()
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{Action: "approve"})
			errs <- err
		}()
	}

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			failures = append(failures, err)
		}
	}

	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0], model.ErrConcurrentModification)

	// exactly one new trail entry beyond the initial creation
	require.Len(t, store.entries, 2)

	got, err := svc.GetPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, "approved", got.Status)
}

func TestBroadcastCarriesCommittedState(t *testing.T) {
	_, hub, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:    "PR-2025-08-0008",
		Description: "Cabling",
	})
	require.NoError(t, err)

	_, err = svc.ApplyTransition(ctx, pr.ID, "procurement", TransitionRequest{Action: "approve"})
	require.NoError(t, err)

	require.Len(t, hub.payloads, 1)
	var event model.TransitionEvent
	require.NoError(t, json.Unmarshal(hub.payloads[0], &event))
	require.Equal(t, pr.ID, event.PRID.String())
	require.Equal(t, "PR-2025-08-0008", event.PRNumber)
	require.Equal(t, model.StatusApproved, event.NewStatus)
	require.Equal(t, model.DesignationProcurement, event.NewDesignation)
	require.NotEqual(t, uuid.Nil, event.TrailEntryID)
}

func TestGetPurchaseRequestIdempotent(t *testing.T) {
	_, _, svc := newTestService()
	ctx := context.Background()

	pr, err := svc.CreatePurchaseRequest(ctx, "procurement", CreatePRRequest{
		PRNumber:        "PR-2025-09-0009",
		Description:     "Shelving",
		EstimatedAmount: "1250.50",
	})
	require.NoError(t, err)
	require.Equal(t, "1250.50", pr.EstimatedAmount)

	first, err := svc.GetPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	second, err := svc.GetPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
