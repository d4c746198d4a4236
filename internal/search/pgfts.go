package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// Only published services, enabled portfolio items and published pages match.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

const tsQuery = "plainto_tsquery('portuguese', $1)"

// The vector expressions match the GIN indexes in 0004_search.
var ftsSubQueries = map[ResultType]string{
	ResultService: `
		SELECT 'service'::text AS type, s.id, s.title, s.slug,
			ts_headline('portuguese', s.summary, ` + tsQuery + `, 'MaxFragments=1,MaxWords=30') AS snippet,
			ts_rank(to_tsvector('portuguese', s.title || ' ' || s.summary), ` + tsQuery + `) AS rank
		FROM services s
		WHERE s.status = 'published'
			AND to_tsvector('portuguese', s.title || ' ' || s.summary) @@ ` + tsQuery,
	ResultPortfolio: `
		SELECT 'portfolio'::text AS type, pi.id, pi.title, ''::text AS slug,
			ts_headline('portuguese', pi.summary, ` + tsQuery + `, 'MaxFragments=1,MaxWords=30') AS snippet,
			ts_rank(to_tsvector('portuguese', pi.title || ' ' || pi.client || ' ' || pi.summary), ` + tsQuery + `) AS rank
		FROM portfolio_items pi
		WHERE pi.enabled
			AND to_tsvector('portuguese', pi.title || ' ' || pi.client || ' ' || pi.summary) @@ ` + tsQuery,
	ResultPage: `
		SELECT 'page'::text AS type, pg.id, pg.title, pg.slug,
			ts_headline('portuguese', pg.excerpt, ` + tsQuery + `, 'MaxFragments=1,MaxWords=30') AS snippet,
			ts_rank(to_tsvector('portuguese', pg.title || ' ' || pg.excerpt), ` + tsQuery + `) AS rank
		FROM pages pg
		WHERE pg.status = 'published'
			AND to_tsvector('portuguese', pg.title || ' ' || pg.excerpt) @@ ` + tsQuery,
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	return p.SearchContext(context.Background(), q)
}

func (p *PgFTS) SearchContext(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var subQueries []string
	for _, t := range Types {
		if q.FilterType != "" && q.FilterType != t {
			continue
		}
		subQueries = append(subQueries, ftsSubQueries[t])
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}
	union := strings.Join(subQueries, " UNION ALL ")

	var total int
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM (%s) sub", union), q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT type, id, title, slug, snippet
		FROM (%s) sub
		ORDER BY rank DESC, id ASC
		LIMIT %d OFFSET %d`, union, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r   Result
			typ string
		)
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Slug, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}
