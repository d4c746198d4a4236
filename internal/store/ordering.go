package store

import (
	"context"
	"fmt"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
)

// orderedTables lists the tables whose order_position may be rewritten and
// whether they carry an updated_at column.
var orderedTables = map[string]bool{
	"plans":           true,
	"services":        true,
	"portfolio_items": true,
	"site_sections":   true,
}

// SwapPositions exchanges the positions of two rows in one transaction. The
// unique constraint on order_position is deferred, so the intermediate state
// where both rows share a value never fails.
func (s *PostgresStore) SwapPositions(ctx context.Context, table string, swap content.Swap) error {
	stamp, ok := orderedTables[table]
	if !ok {
		return fmt.Errorf("swap positions: table %q is not ordered", table)
	}
	query := `UPDATE ` + table + ` SET order_position=$2 WHERE id=$1`
	if stamp {
		query = `UPDATE ` + table + ` SET order_position=$2, updated_at=NOW() WHERE id=$1`
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, step := range []struct {
		id  string
		pos int
	}{{swap.FirstID, swap.FirstPos}, {swap.SecondID, swap.SecondPos}} {
		res, err := tx.ExecContext(ctx, query, step.id, step.pos)
		if err != nil {
			return fmt.Errorf("swap %s position: %w", table, err)
		}
		if err := expectOne(res); err != nil {
			return fmt.Errorf("swap %s position %s: %w", table, step.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

// Renumber assigns positions 1..n following ids.
func (s *PostgresStore) Renumber(ctx context.Context, table string, ids []string) error {
	if _, ok := orderedTables[table]; !ok {
		return fmt.Errorf("renumber: table %q is not ordered", table)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin renumber: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET order_position=$2 WHERE id=$1`, id, i+1); err != nil {
			return fmt.Errorf("renumber %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit renumber: %w", err)
	}
	return nil
}

// Ordering returns the swap and renumber hooks for one table, ready to plug
// into content.Options.
func (s *PostgresStore) Ordering(table string) content.Options {
	return content.Options{
		Swap: func(ctx context.Context, swap content.Swap) error {
			return s.SwapPositions(ctx, table, swap)
		},
		Renumber: func(ctx context.Context, ids []string) error {
			return s.Renumber(ctx, table, ids)
		},
	}
}
