package dto

import (
	"time"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// RuleItem is the API shape of one configurable rule.
type RuleItem struct {
	Key       models.RuleKey       `json:"key"`
	Value     string               `json:"value"`
	Type      models.RuleValueType `json:"type"`
	Enabled   bool                 `json:"enabled"`
	Priority  int                  `json:"priority"`
	Category  string               `json:"category"`
	UpdatedBy *string              `json:"updated_by,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// UpdateRuleRequest changes one rule's raw value and enabled flag. The value
// is validated against the key's schema before persisting.
type UpdateRuleRequest struct {
	Value   string `json:"value" validate:"required"`
	Enabled bool   `json:"enabled"`
}

// RuleFromModel maps a rule row into its response shape.
func RuleFromModel(r *models.RuleConfig) RuleItem {
	return RuleItem{
		Key:       r.Key,
		Value:     r.Value,
		Type:      r.Type,
		Enabled:   r.Enabled,
		Priority:  r.Priority,
		Category:  r.Category,
		UpdatedBy: r.UpdatedBy,
		UpdatedAt: r.UpdatedAt,
	}
}
