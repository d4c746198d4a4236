package store

import (
	"context"
	"database/sql"
	"fmt"
)

const sectionColumns = `id, key, title, subtitle, content, enabled, order_position, updated_at`

type SectionRepository struct {
	db *sql.DB
}

func (s *PostgresStore) Sections() SectionRepository {
	return SectionRepository{db: s.db}
}

func scanSection(row rowScanner) (SiteSection, error) {
	var (
		section SiteSection
		body    []byte
	)
	if err := row.Scan(&section.ID, &section.Key, &section.Title, &section.Subtitle, &body, &section.Enabled, &section.OrderPosition, &section.UpdatedAt); err != nil {
		return SiteSection{}, err
	}
	section.Content = copyRaw(body)
	return section, nil
}

func (r SectionRepository) List(ctx context.Context) ([]SiteSection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sectionColumns+` FROM site_sections ORDER BY order_position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	items := make([]SiteSection, 0)
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		items = append(items, section)
	}
	return items, rows.Err()
}

func (r SectionRepository) Get(ctx context.Context, id string) (SiteSection, error) {
	section, err := scanSection(r.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM site_sections WHERE id=$1`, id))
	if err != nil {
		return SiteSection{}, notFound(err)
	}
	return section, nil
}

func (r SectionRepository) Create(ctx context.Context, section SiteSection) (SiteSection, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO site_sections (id, key, title, subtitle, content, enabled, order_position)
		VALUES ($1, $2, $3, $4, $5, $6,
			COALESCE(NULLIF($7::int, 0), (SELECT COALESCE(MAX(order_position), 0) + 1 FROM site_sections)))
		RETURNING order_position, updated_at
	`, section.ID, section.Key, section.Title, section.Subtitle, jsonText(section.Content, "{}"), section.Enabled, section.OrderPosition).
		Scan(&section.OrderPosition, &section.UpdatedAt)
	if err != nil {
		return SiteSection{}, fmt.Errorf("insert section: %w", classify(err))
	}
	return section, nil
}

func (r SectionRepository) Update(ctx context.Context, id string, section SiteSection) (SiteSection, error) {
	err := r.db.QueryRowContext(ctx, `
		UPDATE site_sections
		SET key=$2, title=$3, subtitle=$4, content=$5, enabled=$6, updated_at=NOW()
		WHERE id=$1
		RETURNING order_position, updated_at
	`, id, section.Key, section.Title, section.Subtitle, jsonText(section.Content, "{}"), section.Enabled).
		Scan(&section.OrderPosition, &section.UpdatedAt)
	if err != nil {
		return SiteSection{}, fmt.Errorf("update section: %w", classify(notFound(err)))
	}
	section.ID = id
	return section, nil
}

func (r SectionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM site_sections WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return expectOne(res)
}
