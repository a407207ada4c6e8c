package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// SeasonRepository handles persistence of seasons.
type SeasonRepository struct {
	db *sqlx.DB
}

// NewSeasonRepository constructs the repository.
func NewSeasonRepository(db *sqlx.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

// FindByID returns a season by its ID.
func (r *SeasonRepository) FindByID(ctx context.Context, id string) (*models.Season, error) {
	const query = `SELECT id, name, start_date, end_date, active, working_days, created_at FROM seasons WHERE id = $1`
	var season models.Season
	if err := r.db.GetContext(ctx, &season, query, id); err != nil {
		return nil, err
	}
	return &season, nil
}

// FindActive returns the single active season. Resolved once at the handler
// boundary; services receive the season ID explicitly.
func (r *SeasonRepository) FindActive(ctx context.Context) (*models.Season, error) {
	const query = `SELECT id, name, start_date, end_date, active, working_days, created_at
FROM seasons WHERE active = TRUE ORDER BY start_date DESC LIMIT 1`
	var season models.Season
	if err := r.db.GetContext(ctx, &season, query); err != nil {
		return nil, err
	}
	return &season, nil
}
