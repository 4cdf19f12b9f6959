// Package moderation implements the admin working list: an in-memory view of
// the records currently on screen, mutated optimistically and reconciled back
// to server truth when a remote call fails.
package moderation

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Errors surfaced by list operations.
var (
	ErrMutationInFlight     = errors.New("a mutation is already in flight for this record")
	ErrConfirmationRequired = errors.New("deletion requires confirmation")
	ErrNotDisplayed         = errors.New("record is not in the displayed list")
	ErrEmptySelection       = errors.New("selection is empty")
)

// Query describes the current listing: equality filters, a free-text search
// term matched case-insensitively across the searchable fields, and an
// offset/limit window.
type Query struct {
	Filters map[string]string
	Search  string
	Offset  int
	Limit   int
}

// Notifier is the surface failures and outcomes are reported through.
// *notify.Center satisfies it.
type Notifier interface {
	Success(text string)
	Error(text string)
}

// Config wires a List to its record type and its remote fetch.
type Config[T any] struct {
	// ID extracts the record identifier.
	ID func(T) int64
	// Pinned and SetPinned read and write the pin flag.
	Pinned    func(T) bool
	SetPinned func(*T, bool)
	// CreatedUnix is the recency tiebreaker for the pin sort.
	CreatedUnix func(T) int64
	// Fetch loads a page for the given query, returning rows and total count.
	Fetch func(ctx context.Context, q Query) ([]T, int64, error)
}

// List is the working list for one admin screen. It owns its items
// exclusively; there is no cross-screen shared cache.
//
// All mutations follow one discipline: snapshot the list, apply the change
// locally, issue the remote call, and restore the snapshot if the call fails.
// Deletes are the exception: a record is only removed locally after the
// remote delete succeeded, never optimistically.
type List[T any] struct {
	cfg      Config[T]
	notifier Notifier

	mu       sync.Mutex
	items    []T
	total    int64
	query    Query
	selected map[int64]struct{}
	inFlight map[int64]struct{}
}

// NewList creates an empty working list. Call Refetch or SetQuery to load it.
func NewList[T any](cfg Config[T], notifier Notifier) *List[T] {
	return &List[T]{
		cfg:      cfg,
		notifier: notifier,
		selected: make(map[int64]struct{}),
		inFlight: make(map[int64]struct{}),
	}
}

// Refetch reloads the current query from the store and replaces the list.
// Concurrent refetches are not serialized against each other; the last one to
// resolve wins.
func (l *List[T]) Refetch(ctx context.Context) error {
	l.mu.Lock()
	q := l.query
	l.mu.Unlock()

	items, total, err := l.cfg.Fetch(ctx, q)
	if err != nil {
		l.notifier.Error("Failed to load list: " + err.Error())
		return err
	}

	l.mu.Lock()
	l.items = items
	l.total = total
	l.pruneSelection()
	l.mu.Unlock()
	return nil
}

// SetQuery replaces the listing query and refetches. Any change to the
// displayed listing clears the selection, since a selection carried across a
// different page, filter or search term would be stale.
func (l *List[T]) SetQuery(ctx context.Context, q Query) error {
	l.mu.Lock()
	l.query = q
	l.selected = make(map[int64]struct{})
	l.mu.Unlock()
	return l.Refetch(ctx)
}

// Items returns a copy of the displayed records.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Total returns the store-side total for the current query.
func (l *List[T]) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Select adds a displayed record to the selection set.
func (l *List[T]) Select(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOf(id) < 0 {
		return ErrNotDisplayed
	}
	l.selected[id] = struct{}{}
	return nil
}

// Deselect removes a record from the selection set.
func (l *List[T]) Deselect(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.selected, id)
}

// Selected returns the selected ids in display order.
func (l *List[T]) Selected() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectedLocked()
}

// selectedLocked returns the selected ids in display order. Caller holds mu.
func (l *List[T]) selectedLocked() []int64 {
	out := make([]int64, 0, len(l.selected))
	for _, item := range l.items {
		id := l.cfg.ID(item)
		if _, ok := l.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// ClearSelection empties the selection set.
func (l *List[T]) ClearSelection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected = make(map[int64]struct{})
}

// Mutate is the reconciliation helper every optimistic mutation goes
// through: it snapshots the list, applies the change locally, issues the
// remote call, and restores the snapshot on failure. A second mutation on a
// record with one still in flight fails fast so conflicting calls (approve
// racing delete) cannot interleave.
func (l *List[T]) Mutate(ctx context.Context, id int64, apply func(*T), remote func(context.Context) error) error {
	l.mu.Lock()
	idx := l.indexOf(id)
	if idx < 0 {
		l.mu.Unlock()
		return ErrNotDisplayed
	}
	if _, busy := l.inFlight[id]; busy {
		l.mu.Unlock()
		return ErrMutationInFlight
	}
	l.inFlight[id] = struct{}{}

	snapshot := make([]T, len(l.items))
	copy(snapshot, l.items)

	apply(&l.items[idx])
	l.mu.Unlock()

	err := remote(ctx)

	l.mu.Lock()
	delete(l.inFlight, id)
	if err != nil {
		l.items = snapshot
		l.mu.Unlock()
		l.notifier.Error("Update failed: " + err.Error())
		return err
	}
	l.mu.Unlock()
	return nil
}

// TogglePin flips the pin flag optimistically and re-sorts the list so
// pinned records float to the top, newest first within each group. Rollback
// restores both the flag and the previous order.
func (l *List[T]) TogglePin(ctx context.Context, id int64, remote func(ctx context.Context, pinned bool) error) error {
	var pinnedAfter bool
	return l.Mutate(ctx, id,
		func(item *T) {
			pinnedAfter = !l.cfg.Pinned(*item)
			l.cfg.SetPinned(item, pinnedAfter)
			l.resortLocked()
		},
		func(ctx context.Context) error {
			return remote(ctx, pinnedAfter)
		},
	)
}

// Delete removes one record: remote first, local removal only after the
// remote call succeeded. The confirmed flag models the modal gate; nothing
// is issued without it.
func (l *List[T]) Delete(ctx context.Context, id int64, confirmed bool, remote func(context.Context) error) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	l.mu.Lock()
	if l.indexOf(id) < 0 {
		l.mu.Unlock()
		return ErrNotDisplayed
	}
	if _, busy := l.inFlight[id]; busy {
		l.mu.Unlock()
		return ErrMutationInFlight
	}
	l.inFlight[id] = struct{}{}
	l.mu.Unlock()

	err := remote(ctx)

	l.mu.Lock()
	delete(l.inFlight, id)
	if err != nil {
		l.mu.Unlock()
		l.notifier.Error("Delete failed: " + err.Error())
		return err
	}
	l.removeLocked(id)
	delete(l.selected, id)
	l.mu.Unlock()
	return nil
}

// BulkDelete deletes the current selection as one batched remote call. The
// batch is atomic at this layer: on success every selected record is removed
// in one pass and the selection is cleared; on failure nothing is removed.
// Every selected id is held in flight for the whole call, so a concurrent
// mutation on any of them fails fast instead of snapshotting rows the batch
// is about to remove.
func (l *List[T]) BulkDelete(ctx context.Context, confirmed bool, remote func(ctx context.Context, ids []int64) error) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	l.mu.Lock()
	ids := l.selectedLocked()
	if len(ids) == 0 {
		l.mu.Unlock()
		return ErrEmptySelection
	}
	for _, id := range ids {
		if _, busy := l.inFlight[id]; busy {
			l.mu.Unlock()
			return ErrMutationInFlight
		}
	}
	for _, id := range ids {
		l.inFlight[id] = struct{}{}
	}
	l.mu.Unlock()

	err := remote(ctx, ids)

	l.mu.Lock()
	for _, id := range ids {
		delete(l.inFlight, id)
	}
	if err != nil {
		l.mu.Unlock()
		l.notifier.Error("Bulk delete failed: " + err.Error())
		return err
	}
	doomed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	kept := l.items[:0]
	for _, item := range l.items {
		if _, gone := doomed[l.cfg.ID(item)]; !gone {
			kept = append(kept, item)
		}
	}
	l.items = kept
	l.total -= int64(len(ids))
	l.selected = make(map[int64]struct{})
	l.mu.Unlock()
	return nil
}

// indexOf returns the display index of id, or -1. Caller holds mu.
func (l *List[T]) indexOf(id int64) int {
	for i, item := range l.items {
		if l.cfg.ID(item) == id {
			return i
		}
	}
	return -1
}

// removeLocked drops id from the items slice. Caller holds mu.
func (l *List[T]) removeLocked(id int64) {
	if idx := l.indexOf(id); idx >= 0 {
		l.items = append(l.items[:idx], l.items[idx+1:]...)
		l.total--
	}
}

// resortLocked orders pinned records before unpinned ones, newest first
// within each group. Stable so equal keys keep their relative order.
// Caller holds mu.
func (l *List[T]) resortLocked() {
	sort.SliceStable(l.items, func(i, j int) bool {
		pi, pj := l.cfg.Pinned(l.items[i]), l.cfg.Pinned(l.items[j])
		if pi != pj {
			return pi
		}
		return l.cfg.CreatedUnix(l.items[i]) > l.cfg.CreatedUnix(l.items[j])
	})
}

// pruneSelection drops selected ids no longer displayed, keeping the
// selection a subset of the visible list. Caller holds mu.
func (l *List[T]) pruneSelection() {
	if len(l.selected) == 0 {
		return
	}
	visible := make(map[int64]struct{}, len(l.items))
	for _, item := range l.items {
		visible[l.cfg.ID(item)] = struct{}{}
	}
	for id := range l.selected {
		if _, ok := visible[id]; !ok {
			delete(l.selected, id)
		}
	}
}
