package store

import (
	"context"
	"database/sql"
	"fmt"
)

const portfolioColumns = `id, title, client, summary, image_url, project_url, technologies, enabled, featured, order_position, completed_at, created_at, updated_at`

type PortfolioRepository struct {
	db *sql.DB
}

func (s *PostgresStore) Portfolio() PortfolioRepository {
	return PortfolioRepository{db: s.db}
}

func scanPortfolioItem(row rowScanner) (PortfolioItem, error) {
	var (
		item         PortfolioItem
		technologies []byte
	)
	err := row.Scan(&item.ID, &item.Title, &item.Client, &item.Summary, &item.ImageURL, &item.ProjectURL, &technologies,
		&item.Enabled, &item.Featured, &item.OrderPosition, &item.CompletedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return PortfolioItem{}, err
	}
	item.Technologies = decodeStrings(technologies)
	return item, nil
}

func (r PortfolioRepository) List(ctx context.Context) ([]PortfolioItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+portfolioColumns+` FROM portfolio_items ORDER BY order_position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list portfolio: %w", err)
	}
	defer rows.Close()

	items := make([]PortfolioItem, 0)
	for rows.Next() {
		item, err := scanPortfolioItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r PortfolioRepository) Get(ctx context.Context, id string) (PortfolioItem, error) {
	item, err := scanPortfolioItem(r.db.QueryRowContext(ctx, `SELECT `+portfolioColumns+` FROM portfolio_items WHERE id=$1`, id))
	if err != nil {
		return PortfolioItem{}, notFound(err)
	}
	return item, nil
}

func (r PortfolioRepository) Create(ctx context.Context, item PortfolioItem) (PortfolioItem, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO portfolio_items (id, title, client, summary, image_url, project_url, technologies, enabled, featured, completed_at, order_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			COALESCE(NULLIF($11::int, 0), (SELECT COALESCE(MAX(order_position), 0) + 1 FROM portfolio_items)))
		RETURNING order_position, created_at, updated_at
	`, item.ID, item.Title, item.Client, item.Summary, item.ImageURL, item.ProjectURL, encodeStrings(item.Technologies),
		item.Enabled, item.Featured, item.CompletedAt, item.OrderPosition).
		Scan(&item.OrderPosition, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return PortfolioItem{}, fmt.Errorf("insert portfolio item: %w", classify(err))
	}
	return item, nil
}

func (r PortfolioRepository) Update(ctx context.Context, id string, item PortfolioItem) (PortfolioItem, error) {
	err := r.db.QueryRowContext(ctx, `
		UPDATE portfolio_items
		SET title=$2, client=$3, summary=$4, image_url=$5, project_url=$6, technologies=$7, enabled=$8, featured=$9, completed_at=$10, updated_at=NOW()
		WHERE id=$1
		RETURNING order_position, created_at, updated_at
	`, id, item.Title, item.Client, item.Summary, item.ImageURL, item.ProjectURL, encodeStrings(item.Technologies),
		item.Enabled, item.Featured, item.CompletedAt).
		Scan(&item.OrderPosition, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return PortfolioItem{}, fmt.Errorf("update portfolio item: %w", notFound(err))
	}
	item.ID = id
	return item, nil
}

func (r PortfolioRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete portfolio item: %w", err)
	}
	return expectOne(res)
}
