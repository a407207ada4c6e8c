package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

const licenseColumns = `id, user_id, season_id, start_date, end_date, credit, created_by, created_at`

// LicenseRepository handles persistence of leave periods.
type LicenseRepository struct {
	db *sqlx.DB
}

// NewLicenseRepository constructs the repository.
func NewLicenseRepository(db *sqlx.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// FindByID returns a license by its ID.
func (r *LicenseRepository) FindByID(ctx context.Context, id string) (*models.License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE id = $1`, licenseColumns)
	var license models.License
	if err := r.db.GetContext(ctx, &license, query, id); err != nil {
		return nil, err
	}
	return &license, nil
}

// Create persists a new license with its computed credit.
func (r *LicenseRepository) Create(ctx context.Context, license *models.License) error {
	if license.ID == "" {
		license.ID = uuid.NewString()
	}
	license.CreatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO licenses (%s)
VALUES (:id, :user_id, :season_id, :start_date, :end_date, :credit, :created_by, :created_at)`, licenseColumns)
	if _, err := r.db.NamedExecContext(ctx, query, license); err != nil {
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

// ExistsOverlapping reports whether the user already has a license
// intersecting [start, end] in the season.
func (r *LicenseRepository) ExistsOverlapping(ctx context.Context, userID, seasonID string, start, end time.Time) (bool, error) {
	const query = `SELECT COUNT(*) FROM licenses
WHERE user_id = $1 AND season_id = $2 AND start_date <= $4 AND end_date >= $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, seasonID, start, end); err != nil {
		return false, fmt.Errorf("check license overlap: %w", err)
	}
	return count > 0, nil
}

// Delete removes a license row.
func (r *LicenseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM licenses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	return nil
}
