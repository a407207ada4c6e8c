package dto

import (
	"time"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// CreateLicenseRequest registers an approved leave period for a member.
type CreateLicenseRequest struct {
	UserID    string    `json:"user_id" validate:"required,uuid"`
	SeasonID  string    `json:"season_id" validate:"omitempty,uuid"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// LicenseResponse is the API shape of a license with its computed credit.
type LicenseResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SeasonID  string    `json:"season_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Credit    float64   `json:"credit"`
	CreatedAt time.Time `json:"created_at"`
}

// LicenseFromModel maps a license row into its response shape.
func LicenseFromModel(l *models.License) LicenseResponse {
	return LicenseResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		SeasonID:  l.SeasonID,
		StartDate: l.StartDate,
		EndDate:   l.EndDate,
		Credit:    l.Credit,
		CreatedAt: l.CreatedAt,
	}
}
