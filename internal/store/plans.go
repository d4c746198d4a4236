package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/util"
)

const planColumns = `id, name, description, price, billing_period, status, featured, order_position, cta_label, cta_url, created_at, updated_at`

// PlanRepository persists plans together with their feature lists.
type PlanRepository struct {
	db *sql.DB
}

func (s *PostgresStore) Plans() PlanRepository {
	return PlanRepository{db: s.db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (Plan, error) {
	var plan Plan
	err := row.Scan(&plan.ID, &plan.Name, &plan.Description, &plan.Price, &plan.BillingPeriod, &plan.Status, &plan.Featured, &plan.OrderPosition, &plan.CTALabel, &plan.CTAURL, &plan.CreatedAt, &plan.UpdatedAt)
	plan.Features = make([]PlanFeature, 0)
	return plan, err
}

func (r PlanRepository) List(ctx context.Context) ([]Plan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY order_position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	items := make([]Plan, 0)
	index := map[string]int{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		index[plan.ID] = len(items)
		items = append(items, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	features, err := r.listFeatures(ctx, `SELECT id, plan_id, label, included, order_position FROM plan_features ORDER BY plan_id ASC, order_position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	for _, feature := range features {
		if i, ok := index[feature.PlanID]; ok {
			items[i].Features = append(items[i].Features, feature)
		}
	}
	return items, nil
}

func (r PlanRepository) Get(ctx context.Context, id string) (Plan, error) {
	plan, err := scanPlan(r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id=$1`, id))
	if err != nil {
		return Plan{}, notFound(err)
	}
	features, err := r.listFeatures(ctx, `SELECT id, plan_id, label, included, order_position FROM plan_features WHERE plan_id=$1 ORDER BY order_position ASC, id ASC`, id)
	if err != nil {
		return Plan{}, err
	}
	plan.Features = features
	return plan, nil
}

func (r PlanRepository) listFeatures(ctx context.Context, query string, args ...any) ([]PlanFeature, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plan features: %w", err)
	}
	defer rows.Close()

	items := make([]PlanFeature, 0)
	for rows.Next() {
		var feature PlanFeature
		if err := rows.Scan(&feature.ID, &feature.PlanID, &feature.Label, &feature.Included, &feature.OrderPosition); err != nil {
			return nil, fmt.Errorf("scan plan feature: %w", err)
		}
		items = append(items, feature)
	}
	return items, rows.Err()
}

func (r PlanRepository) Create(ctx context.Context, plan Plan) (Plan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Plan{}, fmt.Errorf("begin create plan: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO plans (id, name, description, price, billing_period, status, featured, cta_label, cta_url, order_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			COALESCE(NULLIF($10::int, 0), (SELECT COALESCE(MAX(order_position), 0) + 1 FROM plans)))
		RETURNING order_position, created_at, updated_at
	`, plan.ID, plan.Name, plan.Description, plan.Price, plan.BillingPeriod, plan.Status, plan.Featured, plan.CTALabel, plan.CTAURL, plan.OrderPosition).
		Scan(&plan.OrderPosition, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return Plan{}, fmt.Errorf("insert plan: %w", classify(err))
	}
	if plan.Features, err = replaceFeatures(ctx, tx, plan.ID, plan.Features); err != nil {
		return Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return Plan{}, fmt.Errorf("commit create plan: %w", err)
	}
	return plan, nil
}

func (r PlanRepository) Update(ctx context.Context, id string, plan Plan) (Plan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Plan{}, fmt.Errorf("begin update plan: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		UPDATE plans
		SET name=$2, description=$3, price=$4, billing_period=$5, status=$6, featured=$7, cta_label=$8, cta_url=$9, updated_at=NOW()
		WHERE id=$1
		RETURNING order_position, created_at, updated_at
	`, id, plan.Name, plan.Description, plan.Price, plan.BillingPeriod, plan.Status, plan.Featured, plan.CTALabel, plan.CTAURL).
		Scan(&plan.OrderPosition, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return Plan{}, fmt.Errorf("update plan: %w", notFound(err))
	}
	plan.ID = id
	if plan.Features, err = replaceFeatures(ctx, tx, id, plan.Features); err != nil {
		return Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return Plan{}, fmt.Errorf("commit update plan: %w", err)
	}
	return plan, nil
}

func (r PlanRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return expectOne(res)
}

// replaceFeatures rewrites a plan's feature list, numbering positions in the
// order given.
func replaceFeatures(ctx context.Context, tx *sql.Tx, planID string, features []PlanFeature) ([]PlanFeature, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_features WHERE plan_id=$1`, planID); err != nil {
		return nil, fmt.Errorf("clear plan features: %w", err)
	}
	out := make([]PlanFeature, 0, len(features))
	for i, feature := range features {
		if feature.ID == "" {
			feature.ID = util.NewID("feat")
		}
		feature.PlanID = planID
		feature.OrderPosition = i + 1
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plan_features (id, plan_id, label, included, order_position)
			VALUES ($1, $2, $3, $4, $5)
		`, feature.ID, planID, feature.Label, feature.Included, feature.OrderPosition); err != nil {
			return nil, fmt.Errorf("insert plan feature: %w", classify(err))
		}
		out = append(out, feature)
	}
	return out, nil
}
