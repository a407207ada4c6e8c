package dto

import (
	"time"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// BalanceResponse is the API shape of a user's seasonal ledger.
type BalanceResponse struct {
	UserID          string               `json:"user_id"`
	SeasonID        string               `json:"season_id"`
	Taken           int                  `json:"taken"`
	Mandatory       int                  `json:"mandatory"`
	LicenseCredit   float64              `json:"license_credit"`
	Consumed        int                  `json:"consumed"`
	ProjectedMax    int                  `json:"projected_max"`
	ManualMax       *int                 `json:"manual_max,omitempty"`
	ManualMaxReason *string              `json:"manual_max_reason,omitempty"`
	EffectiveMax    int                  `json:"effective_max"`
	BlockUsed       bool                 `json:"block_used"`
	WeekendMonths   models.WeekendMonths `json:"weekend_months"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OverrideBalanceRequest sets or clears the manual seasonal maximum. A nil
// Max clears the override; setting one requires a justification.
type OverrideBalanceRequest struct {
	SeasonID string  `json:"season_id" validate:"omitempty,uuid"`
	Max      *int    `json:"max" validate:"omitempty,min=0"`
	Reason   *string `json:"reason" validate:"omitempty,max=500"`
}

// RecalculateRequest triggers a projected-max repair over a season.
type RecalculateRequest struct {
	SeasonID string `json:"season_id" validate:"omitempty,uuid"`
	Scope    string `json:"scope" validate:"omitempty,oneof=zeroOnly all"`
}

// RecalculateResponse reports how many ledger rows were rewritten.
type RecalculateResponse struct {
	SeasonID     string `json:"season_id"`
	ProjectedMax int    `json:"projected_max"`
	RowsUpdated  int    `json:"rows_updated"`
}

// BalanceFromModel maps a ledger row into its response shape, substituting
// the live projection for the cached column.
func BalanceFromModel(b *models.Balance, liveProjected int) BalanceResponse {
	view := *b
	view.ProjectedMax = liveProjected
	return BalanceResponse{
		UserID:          view.UserID,
		SeasonID:        view.SeasonID,
		Taken:           view.Taken,
		Mandatory:       view.Mandatory,
		LicenseCredit:   view.LicenseCredit,
		Consumed:        view.DisplayConsumed(),
		ProjectedMax:    view.ProjectedMax,
		ManualMax:       view.ManualMax,
		ManualMaxReason: view.ManualMaxReason,
		EffectiveMax:    view.EffectiveMax(),
		BlockUsed:       view.BlockUsed,
		WeekendMonths:   view.WeekendMonths,
		UpdatedAt:       view.UpdatedAt,
	}
}
