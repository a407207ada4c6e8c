package dto

import (
	"time"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// CreateRotationRequest asks for a rotation slot on one event. UserID is
// optional; admins may create on behalf of another member.
type CreateRotationRequest struct {
	UserID  string `json:"user_id" validate:"omitempty,uuid"`
	EventID string `json:"event_id" validate:"required,uuid"`
}

// MandatoryRotationRequest is the admin force-assignment payload.
type MandatoryRotationRequest struct {
	UserID  string  `json:"user_id" validate:"required,uuid"`
	EventID string  `json:"event_id" validate:"required,uuid"`
	Reason  *string `json:"reason" validate:"omitempty,max=500"`
}

// RotationResponse is the API shape of a rotation with its verdict.
type RotationResponse struct {
	ID         string                `json:"id"`
	UserID     string                `json:"user_id"`
	EventID    string                `json:"event_id"`
	SeasonID   string                `json:"season_id"`
	Status     models.RotationStatus `json:"status"`
	Type       models.RotationType   `json:"type"`
	BlockID    *string               `json:"block_id,omitempty"`
	Reason     *string               `json:"reason,omitempty"`
	ApprovedBy *string               `json:"approved_by,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	Verdict    *models.Verdict       `json:"verdict,omitempty"`
}

// CancelRotationResponse reports the cancellation outcome and any promotions
// it triggered.
type CancelRotationResponse struct {
	Status           models.RotationStatus `json:"status"`
	PromotedEventIDs []string              `json:"promoted_event_ids"`
}

// RotationFromModel maps a rotation row into its response shape.
func RotationFromModel(r *models.Rotation, verdict *models.Verdict) RotationResponse {
	return RotationResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		EventID:    r.EventID,
		SeasonID:   r.SeasonID,
		Status:     r.Status,
		Type:       r.Type,
		BlockID:    r.BlockID,
		Reason:     r.Reason,
		ApprovedBy: r.ApprovedBy,
		CreatedAt:  r.CreatedAt,
		Verdict:    verdict,
	}
}
