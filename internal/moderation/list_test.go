package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// row is a minimal moderated record for exercising the list.
type row struct {
	ID      int64
	Status  string
	Pinned  bool
	Created int64
}

type fakeNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *fakeNotifier) Success(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, text)
}

func (n *fakeNotifier) Error(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, text)
}

func (n *fakeNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

func rowConfig(fetch func(ctx context.Context, q Query) ([]row, int64, error)) Config[row] {
	return Config[row]{
		ID:          func(r row) int64 { return r.ID },
		Pinned:      func(r row) bool { return r.Pinned },
		SetPinned:   func(r *row, v bool) { r.Pinned = v },
		CreatedUnix: func(r row) int64 { return r.Created },
		Fetch:       fetch,
	}
}

func staticFetch(rows ...row) func(ctx context.Context, q Query) ([]row, int64, error) {
	return func(ctx context.Context, q Query) ([]row, int64, error) {
		out := make([]row, len(rows))
		copy(out, rows)
		return out, int64(len(rows)), nil
	}
}

func newLoadedList(t *testing.T, rows ...row) (*List[row], *fakeNotifier) {
	t.Helper()
	n := &fakeNotifier{}
	l := NewList(rowConfig(staticFetch(rows...)), n)
	if err := l.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	return l, n
}

func listIDs(l *List[row]) []int64 {
	items := l.Items()
	out := make([]int64, len(items))
	for i, r := range items {
		out[i] = r.ID
	}
	return out
}

func sameIDs(a []int64, b ...int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMutate_AppliesOptimistically(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1, Status: "pending"})

	err := l.Mutate(context.Background(), 1,
		func(r *row) { r.Status = "approved" },
		func(ctx context.Context) error { return nil },
	)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	if got := l.Items()[0].Status; got != "approved" {
		t.Errorf("status = %q, want approved", got)
	}
}

func TestMutate_RollsBackOnRemoteFailure(t *testing.T) {
	l, n := newLoadedList(t, row{ID: 1, Status: "pending"})
	boom := errors.New("network down")

	err := l.Mutate(context.Background(), 1,
		func(r *row) { r.Status = "approved" },
		func(ctx context.Context) error { return boom },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the remote error", err)
	}

	if got := l.Items()[0].Status; got != "pending" {
		t.Errorf("status = %q, want pending (snapshot restored)", got)
	}
	if n.errorCount() != 1 {
		t.Errorf("errors surfaced = %d, want 1", n.errorCount())
	}
}

func TestMutate_RejectsConcurrentMutationOnSameRecord(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1, Status: "pending"})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- l.Mutate(context.Background(), 1,
			func(r *row) { r.Status = "approved" },
			func(ctx context.Context) error {
				close(entered)
				<-release
				return nil
			},
		)
	}()

	<-entered
	err := l.Mutate(context.Background(), 1,
		func(r *row) { r.Status = "rejected" },
		func(ctx context.Context) error { return nil },
	)
	if !errors.Is(err, ErrMutationInFlight) {
		t.Errorf("second mutation err = %v, want ErrMutationInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first mutation: %v", err)
	}

	// And the lock is released on settle.
	err = l.Mutate(context.Background(), 1,
		func(r *row) { r.Status = "rejected" },
		func(ctx context.Context) error { return nil },
	)
	if err != nil {
		t.Errorf("mutation after settle: %v", err)
	}
}

func TestMutate_UnknownRecord(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1})

	err := l.Mutate(context.Background(), 42, func(r *row) {}, func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrNotDisplayed) {
		t.Errorf("err = %v, want ErrNotDisplayed", err)
	}
}

func TestTogglePin_FloatsToTopAndSorts(t *testing.T) {
	l, _ := newLoadedList(t,
		row{ID: 1, Created: 100},
		row{ID: 2, Created: 200},
		row{ID: 3, Created: 300},
	)

	err := l.TogglePin(context.Background(), 1, func(ctx context.Context, pinned bool) error {
		if !pinned {
			t.Error("remote should receive pinned=true")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("toggle pin: %v", err)
	}

	// Pinned item first, then unpinned newest-first.
	if got := listIDs(l); !sameIDs(got, 1, 3, 2) {
		t.Errorf("order = %v, want [1 3 2]", got)
	}
}

func TestTogglePin_RollbackRestoresOrder(t *testing.T) {
	l, _ := newLoadedList(t,
		row{ID: 1, Created: 100},
		row{ID: 2, Created: 200},
	)

	err := l.TogglePin(context.Background(), 1, func(ctx context.Context, pinned bool) error {
		return errors.New("denied")
	})
	if err == nil {
		t.Fatal("expected remote error")
	}

	if got := listIDs(l); !sameIDs(got, 1, 2) {
		t.Errorf("order = %v, want original [1 2]", got)
	}
	if l.Items()[0].Pinned {
		t.Error("pin flag should be rolled back")
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1})

	called := false
	err := l.Delete(context.Background(), 1, false, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("err = %v, want ErrConfirmationRequired", err)
	}
	if called {
		t.Error("remote delete must not run without confirmation")
	}
	if len(l.Items()) != 1 {
		t.Error("record removed without confirmation")
	}
}

func TestDelete_RemovesOnlyAfterRemoteSuccess(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1}, row{ID: 2})

	err := l.Delete(context.Background(), 1, true, func(ctx context.Context) error {
		// The record must still be displayed while the remote call runs:
		// no optimistic removal that could mask a failed delete.
		if len(l.Items()) != 2 {
			t.Error("record removed before remote confirmation")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := listIDs(l); !sameIDs(got, 2) {
		t.Errorf("remaining = %v, want [2]", got)
	}
}

func TestDelete_KeepsRecordOnRemoteFailure(t *testing.T) {
	l, n := newLoadedList(t, row{ID: 1})

	err := l.Delete(context.Background(), 1, true, func(ctx context.Context) error {
		return errors.New("conflict")
	})
	if err == nil {
		t.Fatal("expected remote error")
	}
	if len(l.Items()) != 1 {
		t.Error("record must stay in the list when the delete failed")
	}
	if n.errorCount() != 1 {
		t.Errorf("errors surfaced = %d, want 1", n.errorCount())
	}
}

func TestBulkDelete_AtomicRemovalAndSelectionClear(t *testing.T) {
	rows := make([]row, 0, 10)
	for i := int64(1); i <= 10; i++ {
		rows = append(rows, row{ID: i, Created: i})
	}
	l, _ := newLoadedList(t, rows...)

	if err := l.Select(2); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := l.Select(4); err != nil {
		t.Fatalf("select: %v", err)
	}

	var batched []int64
	err := l.BulkDelete(context.Background(), true, func(ctx context.Context, ids []int64) error {
		batched = ids
		return nil
	})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}

	if !sameIDs(batched, 2, 4) {
		t.Errorf("batch = %v, want [2 4]", batched)
	}
	if len(l.Items()) != 8 {
		t.Errorf("remaining = %d, want 8", len(l.Items()))
	}
	for _, id := range listIDs(l) {
		if id == 2 || id == 4 {
			t.Errorf("id %d still displayed after bulk delete", id)
		}
	}
	if len(l.Selected()) != 0 {
		t.Error("selection should be cleared after bulk delete")
	}
}

func TestBulkDelete_RemovesNothingOnFailure(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1}, row{ID: 2}, row{ID: 3})
	_ = l.Select(1)
	_ = l.Select(3)

	err := l.BulkDelete(context.Background(), true, func(ctx context.Context, ids []int64) error {
		return errors.New("partial failure upstream")
	})
	if err == nil {
		t.Fatal("expected remote error")
	}

	if len(l.Items()) != 3 {
		t.Errorf("remaining = %d, want 3 (no partial removal)", len(l.Items()))
	}
	if len(l.Selected()) != 2 {
		t.Error("selection should survive a failed bulk delete")
	}
}

func TestBulkDelete_LocksSelectedRecordsWhileInFlight(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1, Status: "pending"}, row{ID: 2}, row{ID: 3})
	_ = l.Select(1)
	_ = l.Select(2)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- l.BulkDelete(context.Background(), true, func(ctx context.Context, ids []int64) error {
			close(entered)
			<-release
			return nil
		})
	}()

	// While the batch is in flight, a mutation on a selected record must fail
	// fast. If it were accepted, its failure-path snapshot would put the rows
	// back after the batch removed them.
	<-entered
	err := l.Mutate(context.Background(), 1,
		func(r *row) { r.Status = "approved" },
		func(ctx context.Context) error { return errors.New("store unavailable") },
	)
	if !errors.Is(err, ErrMutationInFlight) {
		t.Errorf("mutation during bulk delete: err = %v, want ErrMutationInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("bulk delete: %v", err)
	}

	if got := listIDs(l); !sameIDs(got, 3) {
		t.Errorf("remaining = %v, want [3]", got)
	}

	// And the locks are released on settle.
	err = l.Mutate(context.Background(), 3,
		func(r *row) { r.Status = "approved" },
		func(ctx context.Context) error { return nil },
	)
	if err != nil {
		t.Errorf("mutation after settle: %v", err)
	}
}

func TestBulkDelete_FailsFastWhenSelectedRecordBusy(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1, Status: "pending"}, row{ID: 2})
	_ = l.Select(1)
	_ = l.Select(2)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- l.Mutate(context.Background(), 1,
			func(r *row) { r.Status = "approved" },
			func(ctx context.Context) error {
				close(entered)
				<-release
				return nil
			},
		)
	}()

	<-entered
	called := false
	err := l.BulkDelete(context.Background(), true, func(ctx context.Context, ids []int64) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrMutationInFlight) {
		t.Errorf("bulk delete over a busy record: err = %v, want ErrMutationInFlight", err)
	}
	if called {
		t.Error("remote batch must not run while a selected record is busy")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("mutation: %v", err)
	}
}

func TestSelection_SubsetOfDisplayedAndClearedOnQueryChange(t *testing.T) {
	l, _ := newLoadedList(t, row{ID: 1}, row{ID: 2})

	if err := l.Select(5); !errors.Is(err, ErrNotDisplayed) {
		t.Errorf("selecting an undisplayed id: err = %v, want ErrNotDisplayed", err)
	}

	_ = l.Select(1)
	_ = l.Select(2)
	l.Deselect(2)
	if got := l.Selected(); !sameIDs(got, 1) {
		t.Fatalf("selected = %v, want [1]", got)
	}

	// New search term → new listing → empty selection.
	if err := l.SetQuery(context.Background(), Query{Search: "breaking"}); err != nil {
		t.Fatalf("set query: %v", err)
	}
	if len(l.Selected()) != 0 {
		t.Error("selection must be cleared when the listing changes")
	}
}

func TestRefetch_SurfacesFailureAndKeepsList(t *testing.T) {
	n := &fakeNotifier{}
	healthy := true
	l := NewList(rowConfig(func(ctx context.Context, q Query) ([]row, int64, error) {
		if !healthy {
			return nil, 0, errors.New("gateway unavailable")
		}
		return []row{{ID: 1}}, 1, nil
	}), n)

	if err := l.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}

	healthy = false
	if err := l.Refetch(context.Background()); err == nil {
		t.Fatal("expected refetch error")
	}
	if len(l.Items()) != 1 {
		t.Error("a failed refetch must not clobber the displayed list")
	}
	if n.errorCount() != 1 {
		t.Errorf("errors surfaced = %d, want 1", n.errorCount())
	}
}

func TestDebouncer_TrailingWindow(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	calls := 0
	hit := func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}

	// A burst of keystrokes collapses to one trailing call.
	d.Trigger(hit)
	d.Trigger(hit)
	d.Trigger(hit)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	fired := make(chan struct{}, 1)
	d.Trigger(func() { fired <- struct{}{} })
	d.Stop()

	select {
	case <-fired:
		t.Error("stopped debouncer still fired")
	case <-time.After(80 * time.Millisecond):
	}
}
