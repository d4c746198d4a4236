package search

import (
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

// ResultType identifies the kind of public content in a search result.
type ResultType string

const (
	ResultService   ResultType = "service"
	ResultPortfolio ResultType = "portfolio"
	ResultPage      ResultType = "page"
)

// Types lists every indexed kind in display order.
var Types = []ResultType{ResultService, ResultPortfolio, ResultPage}

func ParseType(value string) (ResultType, bool) {
	for _, t := range Types {
		if string(t) == value {
			return t, true
		}
	}
	return "", false
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Slug    string     `json:"slug,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Record is what gets pushed into the index for one public item.
type Record struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Slug  string   `json:"slug"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
	Group string   `json:"group"`
}

// ServiceRecords keeps published services only.
func ServiceRecords(items []store.Service) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		if !item.IsPublic() {
			continue
		}
		records = append(records, Record{
			ID:    item.ID,
			Title: item.Title,
			Slug:  item.Slug,
			Body:  item.Summary,
			Tags:  append([]string(nil), item.Technologies...),
			Group: item.CategoryName,
		})
	}
	return records
}

// PortfolioRecords keeps enabled items only.
func PortfolioRecords(items []store.PortfolioItem) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		if !item.IsPublic() {
			continue
		}
		records = append(records, Record{
			ID:    item.ID,
			Title: item.Title,
			Body:  item.Summary,
			Tags:  append([]string(nil), item.Technologies...),
			Group: item.Client,
		})
	}
	return records
}

// PageRecords keeps published pages only.
func PageRecords(items []store.Page) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		if !item.IsPublic() {
			continue
		}
		records = append(records, Record{
			ID:    item.ID,
			Title: item.Title,
			Slug:  item.Slug,
			Body:  item.Excerpt,
			Group: item.CategoryName,
		})
	}
	return records
}
