package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CategoryRepository serves both service_categories and page_categories.
// Deleting a category leaves referencing rows in place with a NULL category.
type CategoryRepository struct {
	db    *sql.DB
	table string
}

func (s *PostgresStore) ServiceCategories() CategoryRepository {
	return CategoryRepository{db: s.db, table: "service_categories"}
}

func (s *PostgresStore) PageCategories() CategoryRepository {
	return CategoryRepository{db: s.db, table: "page_categories"}
}

func (r CategoryRepository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug, description, created_at, updated_at FROM `+r.table+` ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	defer rows.Close()

	items := make([]Category, 0)
	for rows.Next() {
		var item Category
		if err := rows.Scan(&item.ID, &item.Name, &item.Slug, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r CategoryRepository) Get(ctx context.Context, id string) (Category, error) {
	var item Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name, slug, description, created_at, updated_at FROM `+r.table+` WHERE id=$1`, id).
		Scan(&item.ID, &item.Name, &item.Slug, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Category{}, notFound(err)
	}
	return item, nil
}

func (r CategoryRepository) Create(ctx context.Context, item Category) (Category, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO `+r.table+` (id, name, slug, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, item.ID, item.Name, item.Slug, item.Description).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", classify(err))
	}
	return item, nil
}

func (r CategoryRepository) Update(ctx context.Context, id string, item Category) (Category, error) {
	err := r.db.QueryRowContext(ctx, `
		UPDATE `+r.table+`
		SET name=$2, slug=$3, description=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING created_at, updated_at
	`, id, item.Name, item.Slug, item.Description).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", classify(notFound(err)))
	}
	item.ID = id
	return item, nil
}

func (r CategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOne(res)
}
