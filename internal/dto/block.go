package dto

import (
	"time"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// RequestBlockPayload asks for a block covering one title's events.
// ValidateOnly returns the verdict without persisting anything.
type RequestBlockPayload struct {
	TituloID     string `json:"titulo_id" validate:"required,uuid"`
	ValidateOnly bool   `json:"validate_only"`
}

// BlockResponse is the API shape of a block with its composite verdict.
type BlockResponse struct {
	ID        string               `json:"id,omitempty"`
	UserID    *string              `json:"user_id,omitempty"`
	TituloID  string               `json:"titulo_id"`
	SeasonID  string               `json:"season_id"`
	Status    models.BlockStatus   `json:"status,omitempty"`
	Reason    *string              `json:"reason,omitempty"`
	CreatedAt time.Time            `json:"created_at,omitempty"`
	Verdict   *models.BlockVerdict `json:"verdict,omitempty"`
}

// SweepResponse reports how many ghost blocks a sweep cancelled.
type SweepResponse struct {
	CancelledBlockIDs []string `json:"cancelled_block_ids"`
}
