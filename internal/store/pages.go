package store

import (
	"context"
	"database/sql"
	"fmt"
)

const pageSelect = `
	SELECT p.id, p.title, p.slug, p.excerpt, p.content, p.category_id, c.name, p.status, p.featured,
		p.meta_title, p.meta_description, p.author_id, p.published_at, p.created_at, p.updated_at
	FROM pages p
	LEFT JOIN page_categories c ON c.id = p.category_id
`

type PageRepository struct {
	db *sql.DB
}

func (s *PostgresStore) Pages() PageRepository {
	return PageRepository{db: s.db}
}

func scanPage(row rowScanner) (Page, error) {
	var (
		page         Page
		body         []byte
		categoryName *string
	)
	err := row.Scan(&page.ID, &page.Title, &page.Slug, &page.Excerpt, &body, &page.CategoryID, &categoryName, &page.Status, &page.Featured,
		&page.MetaTitle, &page.MetaDescription, &page.AuthorID, &page.PublishedAt, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return Page{}, err
	}
	page.Content = copyRaw(body)
	page.CategoryName = categoryLabel(categoryName)
	return page, nil
}

func (r PageRepository) List(ctx context.Context) ([]Page, error) {
	rows, err := r.db.QueryContext(ctx, pageSelect+` ORDER BY p.updated_at DESC, p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	items := make([]Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		items = append(items, page)
	}
	return items, rows.Err()
}

func (r PageRepository) Get(ctx context.Context, id string) (Page, error) {
	page, err := scanPage(r.db.QueryRowContext(ctx, pageSelect+` WHERE p.id=$1`, id))
	if err != nil {
		return Page{}, notFound(err)
	}
	return page, nil
}

// published_at is stamped the first time a page goes live and kept afterwards.
func (r PageRepository) Create(ctx context.Context, page Page) (Page, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO pages (id, title, slug, excerpt, content, category_id, status, featured, meta_title, meta_description, author_id, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CASE WHEN $7 = 'published' THEN NOW() END)
		RETURNING published_at, created_at, updated_at
	`, page.ID, page.Title, page.Slug, page.Excerpt, jsonText(page.Content, "{}"), page.CategoryID, page.Status, page.Featured,
		page.MetaTitle, page.MetaDescription, page.AuthorID).
		Scan(&page.PublishedAt, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return Page{}, fmt.Errorf("insert page: %w", classify(err))
	}
	return page, nil
}

func (r PageRepository) Update(ctx context.Context, id string, page Page) (Page, error) {
	err := r.db.QueryRowContext(ctx, `
		UPDATE pages
		SET title=$2, slug=$3, excerpt=$4, content=$5, category_id=$6, status=$7, featured=$8, meta_title=$9, meta_description=$10,
			published_at=CASE WHEN $7 = 'published' AND published_at IS NULL THEN NOW() ELSE published_at END,
			updated_at=NOW()
		WHERE id=$1
		RETURNING author_id, published_at, created_at, updated_at
	`, id, page.Title, page.Slug, page.Excerpt, jsonText(page.Content, "{}"), page.CategoryID, page.Status, page.Featured,
		page.MetaTitle, page.MetaDescription).
		Scan(&page.AuthorID, &page.PublishedAt, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return Page{}, fmt.Errorf("update page: %w", classify(notFound(err)))
	}
	page.ID = id
	return page, nil
}

func (r PageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return expectOne(res)
}
