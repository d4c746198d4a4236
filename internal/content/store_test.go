package content

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type memoryRepo struct {
	mu      sync.Mutex
	rows    map[string]row
	listErr error
	failOps map[string]error
	calls   []string
}

func newMemoryRepo(rows ...row) *memoryRepo {
	repo := &memoryRepo{rows: map[string]row{}, failOps: map[string]error{}}
	for _, r := range rows {
		repo.rows[r.ID] = r
	}
	return repo
}

func (m *memoryRepo) record(op string) error {
	m.calls = append(m.calls, op)
	return m.failOps[op]
}

func (m *memoryRepo) List(context.Context) ([]row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("list"); err != nil {
		return nil, err
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	items := make([]row, 0, len(m.rows))
	for _, r := range m.rows {
		items = append(items, r)
	}
	SortByPosition(items)
	return items, nil
}

func (m *memoryRepo) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.calls {
		if call == op {
			n++
		}
	}
	return n
}

func (m *memoryRepo) Get(_ context.Context, id string) (row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get"); err != nil {
		return row{}, err
	}
	r, ok := m.rows[id]
	if !ok {
		return row{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryRepo) Create(_ context.Context, item row) (row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create"); err != nil {
		return row{}, err
	}
	m.rows[item.ID] = item
	return item, nil
}

func (m *memoryRepo) Update(_ context.Context, id string, item row) (row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update"); err != nil {
		return row{}, err
	}
	if _, ok := m.rows[id]; !ok {
		return row{}, ErrNotFound
	}
	m.rows[id] = item
	return item, nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("delete"); err != nil {
		return err
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryRepo) swap(_ context.Context, swap Swap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("swap"); err != nil {
		return err
	}
	first, second := m.rows[swap.FirstID], m.rows[swap.SecondID]
	first.Pos, second.Pos = swap.FirstPos, swap.SecondPos
	m.rows[first.ID], m.rows[second.ID] = first, second
	return nil
}

func (m *memoryRepo) renumber(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("renumber"); err != nil {
		return err
	}
	for i, id := range ids {
		r := m.rows[id]
		r.Pos = i + 1
		m.rows[id] = r
	}
	return nil
}

type memorySnapshots struct {
	data map[string][]byte
}

func (m *memorySnapshots) Load(_ context.Context, name string, dst any) (bool, error) {
	raw, ok := m.data[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memorySnapshots) Save(_ context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[name] = raw
	return nil
}

func newOrderedStore(repo *memoryRepo) *Store[row] {
	return NewStore[row]("rows", repo, Options{Swap: repo.swap, Renumber: repo.renumber})
}

func ids(items []row) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestStoreReorderRefetchesAfterSwap(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 1}, row{ID: "b", Pos: 2}, row{ID: "c", Pos: 3})
	store := newOrderedStore(repo)
	ctx := context.Background()

	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	moved, err := Reorder(ctx, store, "b", Up)
	if err != nil || !moved {
		t.Fatalf("reorder b up: moved=%v err=%v", moved, err)
	}
	if got := ids(store.Items()); got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("unexpected order after reorder: %v", got)
	}

	moved, err = Reorder(ctx, store, "b", Up)
	if err != nil || moved {
		t.Fatalf("second reorder should be a no-op: moved=%v err=%v", moved, err)
	}
}

func TestStoreReorderRenumbersTiedPositions(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 2}, row{ID: "b", Pos: 1}, row{ID: "c", Pos: 1})
	store := newOrderedStore(repo)
	ctx := context.Background()

	moved, err := Reorder(ctx, store, "c", Up)
	if err != nil || !moved {
		t.Fatalf("reorder c up: moved=%v err=%v", moved, err)
	}
	if got := ids(store.Items()); got[0] != "c" || got[1] != "b" || got[2] != "a" {
		t.Fatalf("unexpected order after reorder: %v", got)
	}
	if got := positions(store.Items()); got["c"] != 1 || got["b"] != 2 || got["a"] != 3 {
		t.Fatalf("unexpected positions after reorder: %v", got)
	}
	if repo.count("renumber") != 1 || repo.count("swap") != 1 {
		t.Fatalf("expected one renumber and one swap, calls=%v", repo.calls)
	}
}

func TestStoreReorderTiedWithoutRenumberIsNoop(t *testing.T) {
	repo := newMemoryRepo(row{ID: "b", Pos: 1}, row{ID: "c", Pos: 1})
	store := NewStore[row]("rows", repo, Options{Swap: repo.swap})

	moved, err := Reorder(context.Background(), store, "c", Up)
	if err != nil || moved {
		t.Fatalf("expected no-op, moved=%v err=%v", moved, err)
	}
	if repo.count("swap") != 0 {
		t.Fatalf("expected no swap write, calls=%v", repo.calls)
	}
}

func TestStoreReorderUnknownID(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 1})
	store := newOrderedStore(repo)
	if _, err := Reorder(context.Background(), store, "missing", Down); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreFailedMutationKeepsList(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 1}, row{ID: "b", Pos: 2})
	store := newOrderedStore(repo)
	ctx := context.Background()
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	boom := errors.New("connection reset")
	repo.failOps["swap"] = boom
	if _, err := Reorder(ctx, store, "b", Up); !errors.Is(err, boom) {
		t.Fatalf("expected swap error, got %v", err)
	}
	if got := ids(store.Items()); got[0] != "a" || got[1] != "b" {
		t.Fatalf("list changed after failed reorder: %v", got)
	}
	if !errors.Is(store.Err(), boom) {
		t.Fatalf("expected error recorded on store, got %v", store.Err())
	}

	repo.failOps["delete"] = boom
	if err := store.Delete(ctx, "a"); err == nil {
		t.Fatal("expected delete error")
	}
	if len(store.Items()) != 2 {
		t.Fatalf("list changed after failed delete: %v", store.Items())
	}
}

func TestStoreFetchFailureKeepsPreviousItems(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 1})
	store := newOrderedStore(repo)
	ctx := context.Background()
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	repo.listErr = errors.New("timeout")
	if err := store.Fetch(ctx); err == nil {
		t.Fatal("expected fetch error")
	}
	view := store.View()
	if len(view.Items) != 1 || !view.Loaded || view.Error == "" {
		t.Fatalf("unexpected view after failed fetch: %+v", view)
	}
}

func TestStoreMutateToggleTwiceRestores(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 1, Public: true})
	store := newOrderedStore(repo)
	ctx := context.Background()

	toggle := func(r row) (row, error) {
		r.Public = !r.Public
		return r, nil
	}
	if _, err := store.Mutate(ctx, "a", toggle); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if item, _ := store.Find("a"); item.Public {
		t.Fatal("expected item hidden after first toggle")
	}
	if _, err := store.Mutate(ctx, "a", toggle); err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if item, _ := store.Find("a"); !item.Public {
		t.Fatal("expected toggle twice to restore visibility")
	}
}

func TestStoreMutateValidationSkipsWrite(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 1})
	store := newOrderedStore(repo)
	invalid := errors.New("title is required")

	_, err := store.Mutate(context.Background(), "a", func(r row) (row, error) { return r, invalid })
	if !errors.Is(err, invalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, call := range repo.calls {
		if call == "update" {
			t.Fatal("repository update must not run after validation failure")
		}
	}
}

func TestStoreHydrateIsPlaceholderUntilFetch(t *testing.T) {
	snapshots := &memorySnapshots{data: map[string][]byte{}}
	seed := newMemoryRepo(row{ID: "cached", Pos: 1})
	seeded := NewStore[row]("rows", seed, Options{Snapshots: snapshots})
	if err := seeded.Fetch(context.Background()); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	repo := newMemoryRepo(row{ID: "fresh", Pos: 1})
	store := NewStore[row]("rows", repo, Options{Snapshots: snapshots})
	ok, err := store.Hydrate(context.Background())
	if err != nil || !ok {
		t.Fatalf("hydrate ok=%v err=%v", ok, err)
	}
	view := store.View()
	if view.Loaded || len(view.Items) != 1 || view.Items[0].ID != "cached" {
		t.Fatalf("unexpected placeholder view: %+v", view)
	}

	if err := store.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	view = store.View()
	if !view.Loaded || view.Items[0].ID != "fresh" {
		t.Fatalf("expected backend data to replace placeholder: %+v", view)
	}

	if ok, _ := store.Hydrate(context.Background()); ok {
		t.Fatal("hydrate must not overwrite a loaded store")
	}
}

func TestStoreOnChangeAndNormalize(t *testing.T) {
	repo := newMemoryRepo(row{ID: "a", Pos: 10}, row{ID: "b", Pos: 10}, row{ID: "c", Pos: 40})
	store := newOrderedStore(repo)
	var seen [][]row
	store.OnChange(func(items []row) { seen = append(seen, items) })

	if err := Normalize(context.Background(), store); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	got := positions(store.Items())
	if got["a"] != 1 || got["b"] != 2 || got["c"] != 3 {
		t.Fatalf("unexpected positions after normalize: %v", got)
	}
	if len(seen) != 2 {
		t.Fatalf("expected a change notification per fetch, got %d", len(seen))
	}
}
