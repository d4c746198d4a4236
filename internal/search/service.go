package search

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

type index interface {
	Searcher
	IndexRecords(t ResultType, records []Record) error
	DeleteRecords(t ResultType, ids []string) error
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  index
	fallback Searcher

	mu      sync.Mutex
	indexed map[ResultType]map[string]struct{}
	wg      sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	var primary index
	if meili != nil {
		primary = meili
	}
	var fallback Searcher
	if pgfts != nil {
		fallback = pgfts
	}
	return newService(primary, fallback)
}

func newService(primary index, fallback Searcher) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		indexed:  make(map[ResultType]map[string]struct{}),
	}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.WithError(err).Warn("search: meilisearch error, falling back to pgfts")
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.WithError(err).Error("search: pgfts error")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Sync makes the index for t hold exactly records. Records that were indexed
// before and are missing now (deleted or unpublished) are removed. It runs in
// the background and is a no-op without a healthy Meilisearch.
func (s *Service) Sync(t ResultType, records []Record) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sync(t, records); err != nil {
			log.WithError(err).WithField("type", t).Warn("search: sync index")
		}
	}()
}

// Wait blocks until background syncs finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) sync(t ResultType, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]struct{}, len(records))
	for _, record := range records {
		current[record.ID] = struct{}{}
	}
	var stale []string
	for id := range s.indexed[t] {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}

	if err := s.primary.IndexRecords(t, records); err != nil {
		return err
	}
	if len(stale) > 0 {
		if err := s.primary.DeleteRecords(t, stale); err != nil {
			return err
		}
	}
	s.indexed[t] = current
	return nil
}

// ReindexAll pushes every record synchronously and reports the first failure.
func (s *Service) ReindexAll(records map[ResultType][]Record) error {
	if s.primary == nil || !s.primary.Healthy() {
		return nil
	}
	for _, t := range Types {
		if err := s.sync(t, records[t]); err != nil {
			return err
		}
		log.WithFields(log.Fields{"type": t, "count": len(records[t])}).Info("search: reindexed")
	}
	return nil
}

// Enabled reports whether an external index is configured and reachable.
func (s *Service) Enabled() bool {
	return s.primary != nil && s.primary.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
