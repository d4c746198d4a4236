package store

import (
	"context"
	"database/sql"
	"fmt"
)

const serviceSelect = `
	SELECT s.id, s.title, s.slug, s.summary, s.description, s.icon, s.image_url, s.category_id, c.name,
		s.type, s.complexity, s.status, s.featured, s.order_position, s.price_from, s.delivery_time,
		s.technologies, s.created_at, s.updated_at
	FROM services s
	LEFT JOIN service_categories c ON c.id = s.category_id
`

type ServiceRepository struct {
	db *sql.DB
}

func (s *PostgresStore) Services() ServiceRepository {
	return ServiceRepository{db: s.db}
}

func scanService(row rowScanner) (Service, error) {
	var (
		item         Service
		description  []byte
		categoryName *string
		technologies []byte
	)
	err := row.Scan(&item.ID, &item.Title, &item.Slug, &item.Summary, &description, &item.Icon, &item.ImageURL, &item.CategoryID, &categoryName,
		&item.Type, &item.Complexity, &item.Status, &item.Featured, &item.OrderPosition, &item.PriceFrom, &item.DeliveryTime,
		&technologies, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Service{}, err
	}
	item.Description = copyRaw(description)
	item.CategoryName = categoryLabel(categoryName)
	item.Technologies = decodeStrings(technologies)
	return item, nil
}

func (r ServiceRepository) List(ctx context.Context) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx, serviceSelect+` ORDER BY s.order_position ASC, s.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	items := make([]Service, 0)
	for rows.Next() {
		item, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r ServiceRepository) Get(ctx context.Context, id string) (Service, error) {
	item, err := scanService(r.db.QueryRowContext(ctx, serviceSelect+` WHERE s.id=$1`, id))
	if err != nil {
		return Service{}, notFound(err)
	}
	return item, nil
}

func (r ServiceRepository) Create(ctx context.Context, item Service) (Service, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO services (id, title, slug, summary, description, icon, image_url, category_id, type, complexity,
			status, featured, price_from, delivery_time, technologies, order_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			COALESCE(NULLIF($16::int, 0), (SELECT COALESCE(MAX(order_position), 0) + 1 FROM services)))
		RETURNING order_position, created_at, updated_at
	`, item.ID, item.Title, item.Slug, item.Summary, jsonText(item.Description, "{}"), item.Icon, item.ImageURL, item.CategoryID, item.Type, item.Complexity,
		item.Status, item.Featured, item.PriceFrom, item.DeliveryTime, encodeStrings(item.Technologies), item.OrderPosition).
		Scan(&item.OrderPosition, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Service{}, fmt.Errorf("insert service: %w", classify(err))
	}
	return item, nil
}

func (r ServiceRepository) Update(ctx context.Context, id string, item Service) (Service, error) {
	err := r.db.QueryRowContext(ctx, `
		UPDATE services
		SET title=$2, slug=$3, summary=$4, description=$5, icon=$6, image_url=$7, category_id=$8, type=$9, complexity=$10,
			status=$11, featured=$12, price_from=$13, delivery_time=$14, technologies=$15, updated_at=NOW()
		WHERE id=$1
		RETURNING order_position, created_at, updated_at
	`, id, item.Title, item.Slug, item.Summary, jsonText(item.Description, "{}"), item.Icon, item.ImageURL, item.CategoryID, item.Type, item.Complexity,
		item.Status, item.Featured, item.PriceFrom, item.DeliveryTime, encodeStrings(item.Technologies)).
		Scan(&item.OrderPosition, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Service{}, fmt.Errorf("update service: %w", classify(notFound(err)))
	}
	item.ID = id
	return item, nil
}

func (r ServiceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return expectOne(res)
}
