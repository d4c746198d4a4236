package search

import (
	"errors"
	"regexp"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

type fakeIndex struct {
	mu        sync.Mutex
	healthy   bool
	searchErr error
	results   []Result
	indexed   map[ResultType][]Record
	deleted   map[ResultType][]string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{healthy: true, indexed: map[ResultType][]Record{}, deleted: map[ResultType][]string{}}
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(Query) ([]Result, int, error) {
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}

func (f *fakeIndex) IndexRecords(t ResultType, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[t] = records
	return nil
}

func (f *fakeIndex) DeleteRecords(t ResultType, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[t] = append(f.deleted[t], ids...)
	return nil
}

func TestRecordsKeepPublicItemsOnly(t *testing.T) {
	services := ServiceRecords([]store.Service{
		{ID: "s1", Title: "Cloud", Status: store.StatusPublished, Technologies: []string{"aws"}},
		{ID: "s2", Title: "Rascunho", Status: store.StatusDraft},
	})
	if len(services) != 1 || services[0].ID != "s1" || services[0].Tags[0] != "aws" {
		t.Fatalf("unexpected service records: %+v", services)
	}

	portfolio := PortfolioRecords([]store.PortfolioItem{{ID: "p1", Enabled: false}, {ID: "p2", Enabled: true}})
	if len(portfolio) != 1 || portfolio[0].ID != "p2" {
		t.Fatalf("unexpected portfolio records: %+v", portfolio)
	}

	pages := PageRecords([]store.Page{{ID: "g1", Status: store.StatusDraft}})
	if len(pages) != 0 {
		t.Fatalf("draft pages must not be indexed: %+v", pages)
	}
}

func TestSyncRemovesRecordsThatDisappear(t *testing.T) {
	idx := newFakeIndex()
	svc := newService(idx, nil)

	svc.Sync(ResultService, []Record{{ID: "a"}, {ID: "b"}})
	svc.Wait()
	svc.Sync(ResultService, []Record{{ID: "b"}})
	svc.Wait()

	if got := idx.indexed[ResultService]; len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only b indexed, got %+v", got)
	}
	deleted := idx.deleted[ResultService]
	sort.Strings(deleted)
	if len(deleted) != 1 || deleted[0] != "a" {
		t.Fatalf("expected a to be deleted, got %v", deleted)
	}
}

func TestSyncSkipsUnhealthyIndex(t *testing.T) {
	idx := newFakeIndex()
	idx.healthy = false
	svc := newService(idx, nil)

	svc.Sync(ResultPage, []Record{{ID: "x"}})
	svc.Wait()
	if len(idx.indexed) != 0 {
		t.Fatal("unhealthy index must not receive records")
	}
}

func TestSearchFallsBackToPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM (")).WithArgs("nuvem").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT type, id, title, slug, snippet").WithArgs("nuvem").
		WillReturnRows(sqlmock.NewRows([]string{"type", "id", "title", "slug", "snippet"}).
			AddRow("service", "s1", "Cloud", "cloud", "migração para <b>nuvem</b>"))

	idx := newFakeIndex()
	idx.searchErr = errors.New("connection refused")
	svc := newService(idx, NewPgFTS(db))

	resp := svc.Search(Query{Text: "nuvem"})
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results[0].Type != ResultService || resp.Results[0].Slug != "cloud" {
		t.Fatalf("unexpected result: %+v", resp.Results[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	resp := NewService(nil, NewPgFTS(db)).Search(Query{Text: "   "})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}

func TestParseType(t *testing.T) {
	if typ, ok := ParseType("portfolio"); !ok || typ != ResultPortfolio {
		t.Fatalf("ParseType(portfolio) = %q, %v", typ, ok)
	}
	if _, ok := ParseType("thread"); ok {
		t.Fatal("unknown type must not parse")
	}
}
