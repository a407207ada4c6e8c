package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

const ruleColumns = `key, value, type, enabled, priority, category, updated_by, updated_at`

// RuleRepository persists rule configuration rows.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository constructs the repository.
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// List returns every rule row ordered by priority.
func (r *RuleRepository) List(ctx context.Context) ([]models.RuleConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM rule_configs ORDER BY priority ASC, key ASC`, ruleColumns)
	var rules []models.RuleConfig
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// Get fetches a single rule by key.
func (r *RuleRepository) Get(ctx context.Context, key models.RuleKey) (*models.RuleConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM rule_configs WHERE key = $1`, ruleColumns)
	var rule models.RuleConfig
	if err := r.db.GetContext(ctx, &rule, query, key); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Upsert inserts or updates a rule row.
func (r *RuleRepository) Upsert(ctx context.Context, rule *models.RuleConfig) error {
	rule.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO rule_configs (%s)
VALUES (:key, :value, :type, :enabled, :priority, :category, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, enabled = EXCLUDED.enabled,
              priority = EXCLUDED.priority, category = EXCLUDED.category,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`, ruleColumns)
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}
