package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	log "github.com/sirupsen/logrus"
)

var indexNames = map[ResultType]string{
	ResultService:   "portal_services",
	ResultPortfolio: "portal_portfolio",
	ResultPage:      "portal_pages",
}

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not fatal; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.WithError(err).WithField("url", url).Warn("search: meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	for _, t := range Types {
		uid := indexNames[t]
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        uid,
			PrimaryKey: "id",
		}); err != nil {
			log.WithError(err).WithField("index", uid).Debug("search: create index (may already exist)")
		}

		index := m.client.Index(uid)
		filterable := []interface{}{"group", "tags"}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.WithError(err).WithField("index", uid).Warn("search: update filterable attributes")
		}
		searchable := []string{"title", "body", "tags", "group"}
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.WithError(err).WithField("index", uid).Warn("search: update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Info("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries every index (or the filtered one) and merges the hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	for _, t := range Types {
		if q.FilterType != "" && q.FilterType != t {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              indexNames[t],
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"title", "body"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	for t, name := range indexNames {
		if name == uid {
			return t
		}
	}
	return ""
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	return Result{
		Type:    rtyp,
		ID:      decodeString(hit, "id"),
		Slug:    decodeString(hit, "slug"),
		Title:   firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title")),
		Snippet: firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body")),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexRecords adds or replaces records in the index for t.
func (m *Meili) IndexRecords(t ResultType, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(indexNames[t]).AddDocuments(records, nil)
	return err
}

// DeleteRecords removes records from the index for t.
func (m *Meili) DeleteRecords(t ResultType, ids []string) error {
	index := m.client.Index(indexNames[t])
	for _, id := range ids {
		if _, err := index.DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete %s %s: %w", t, id, err)
		}
	}
	return nil
}
