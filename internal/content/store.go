package content

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Repository is the durable backend behind a Store.
type Repository[T Entity] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Snapshots persists the last good list of each store so a fresh process has
// something to show before its first fetch completes.
type Snapshots interface {
	Load(ctx context.Context, name string, dst any) (bool, error)
	Save(ctx context.Context, name string, value any) error
}

// Observer receives one call per store operation.
type Observer func(store, op string, err error)

type Options struct {
	// Swap persists a position exchange atomically. Required for Reorder.
	Swap func(ctx context.Context, swap Swap) error
	// Renumber rewrites positions to 1..n following ids. Required for Normalize.
	Renumber  func(ctx context.Context, ids []string) error
	Snapshots Snapshots
	Observe   Observer
}

// View is a consistent read of a store. Loaded is false while the items are
// only a cached placeholder or the store has never been fetched.
type View[T Entity] struct {
	Items     []T        `json:"items"`
	Loaded    bool       `json:"loaded"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Store keeps one collection in memory. Every mutation goes to the repository
// first and is followed by a full re-fetch; nothing is merged optimistically.
type Store[T Entity] struct {
	name string
	repo Repository[T]
	opts Options

	// writeMu serializes fetches and mutations.
	writeMu sync.Mutex

	mu        sync.RWMutex
	items     []T
	loaded    bool
	fetchedAt time.Time
	lastErr   error
	listeners []func([]T)
}

func NewStore[T Entity](name string, repo Repository[T], opts Options) *Store[T] {
	return &Store[T]{name: name, repo: repo, opts: opts, items: make([]T, 0)}
}

func (s *Store[T]) Name() string {
	return s.name
}

// OnChange registers fn to run with the new list after every successful fetch.
func (s *Store[T]) OnChange(fn func([]T)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Hydrate fills an unloaded store from the snapshot cache.
func (s *Store[T]) Hydrate(ctx context.Context) (bool, error) {
	if s.opts.Snapshots == nil {
		return false, nil
	}
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return false, nil
	}

	var items []T
	found, err := s.opts.Snapshots.Load(ctx, s.name, &items)
	if err != nil || !found {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return false, nil
	}
	if items == nil {
		items = make([]T, 0)
	}
	s.items = items
	return true, nil
}

func (s *Store[T]) Fetch(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.fetchLocked(ctx)
}

// Ensure fetches once if the store has not loaded yet.
func (s *Store[T]) Ensure(ctx context.Context) error {
	if s.Loaded() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.Loaded() {
		return nil
	}
	return s.fetchLocked(ctx)
}

func (s *Store[T]) fetchLocked(ctx context.Context) error {
	items, err := s.repo.List(ctx)
	s.observe("fetch", err)
	if err != nil {
		err = fmt.Errorf("fetch %s: %w", s.name, err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	if items == nil {
		items = make([]T, 0)
	}

	s.mu.Lock()
	s.items = items
	s.loaded = true
	s.fetchedAt = time.Now().UTC()
	s.lastErr = nil
	listeners := append([]func([]T){}, s.listeners...)
	s.mu.Unlock()

	if s.opts.Snapshots != nil {
		_ = s.opts.Snapshots.Save(ctx, s.name, items)
	}
	for _, fn := range listeners {
		fn(cloneItems(items))
	}
	return nil
}

func (s *Store[T]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

func (s *Store[T]) View() View[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := View[T]{Items: cloneItems(s.items), Loaded: s.loaded}
	if s.loaded {
		fetchedAt := s.fetchedAt
		view.FetchedAt = &fetchedAt
	}
	if s.lastErr != nil {
		view.Error = s.lastErr.Error()
	}
	return view
}

// Find looks an item up in the current in-memory list.
func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Create persists item and reloads the list. A failed reload after a
// successful write is recorded on the store but not returned, so callers do
// not retry a write that already happened.
func (s *Store[T]) Create(ctx context.Context, item T) (T, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	created, err := s.repo.Create(ctx, item)
	s.observe("create", err)
	if err != nil {
		return created, s.fail("create", err)
	}
	_ = s.fetchLocked(ctx)
	return created, nil
}

func (s *Store[T]) Update(ctx context.Context, id string, item T) (T, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	updated, err := s.repo.Update(ctx, id, item)
	s.observe("update", err)
	if err != nil {
		return updated, s.fail("update", err)
	}
	_ = s.fetchLocked(ctx)
	return updated, nil
}

// Mutate reads the current row from the repository, applies fn and writes the
// result back. Toggles and partial edits go through here.
func (s *Store[T]) Mutate(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		s.observe("mutate", err)
		return current, s.fail("mutate", err)
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	updated, err := s.repo.Update(ctx, id, next)
	s.observe("mutate", err)
	if err != nil {
		return updated, s.fail("mutate", err)
	}
	_ = s.fetchLocked(ctx)
	return updated, nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.repo.Delete(ctx, id)
	s.observe("delete", err)
	if err != nil {
		return s.fail("delete", err)
	}
	_ = s.fetchLocked(ctx)
	return nil
}

// Get reads a single row straight from the repository.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return item, fmt.Errorf("get %s: %w", s.name, err)
	}
	return item, nil
}

// Reorder swaps an item with its neighbour in the current list. Moving the
// first item up or the last item down changes nothing and reports moved=false.
func Reorder[T Ordered](ctx context.Context, s *Store[T], id string, dir Direction) (moved bool, err error) {
	if s.opts.Swap == nil {
		return false, fmt.Errorf("reorder %s: store is not orderable", s.name)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.Loaded() {
		if err := s.fetchLocked(ctx); err != nil {
			return false, err
		}
	}

	swap, ok, err := PlanSwap(s.Items(), id, dir)
	if errors.Is(err, ErrTiedPositions) {
		// Duplicate positions: renumber to 1..n, then plan again.
		if s.opts.Renumber == nil {
			return false, nil
		}
		if err := renumberLocked(ctx, s); err != nil {
			return false, err
		}
		swap, ok, err = PlanSwap(s.Items(), id, dir)
		if errors.Is(err, ErrTiedPositions) {
			return false, nil
		}
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("reorder %s %s: %w", s.name, id, ErrNotFound)
		}
		return false, err
	}
	if !ok {
		return false, nil
	}

	err = s.opts.Swap(ctx, swap)
	s.observe("reorder", err)
	if err != nil {
		return false, s.fail("reorder", err)
	}
	_ = s.fetchLocked(ctx)
	return true, nil
}

// Normalize renumbers the collection to 1..n keeping the current order.
func Normalize[T Ordered](ctx context.Context, s *Store[T]) error {
	if s.opts.Renumber == nil {
		return fmt.Errorf("normalize %s: store is not orderable", s.name)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.fetchLocked(ctx); err != nil {
		return err
	}
	return renumberLocked(ctx, s)
}

func renumberLocked[T Ordered](ctx context.Context, s *Store[T]) error {
	err := s.opts.Renumber(ctx, Sequence(s.Items()))
	s.observe("normalize", err)
	if err != nil {
		return s.fail("normalize", err)
	}
	return s.fetchLocked(ctx)
}

func (s *Store[T]) fail(op string, err error) error {
	err = fmt.Errorf("%s %s: %w", op, s.name, err)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Store[T]) observe(op string, err error) {
	if s.opts.Observe != nil {
		s.opts.Observe(s.name, op, err)
	}
}

func cloneItems[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
