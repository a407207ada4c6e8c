package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// TituloRepository handles persistence of productions.
type TituloRepository struct {
	db *sqlx.DB
}

// NewTituloRepository constructs the repository.
func NewTituloRepository(db *sqlx.DB) *TituloRepository {
	return &TituloRepository{db: db}
}

// FindByID returns a titulo by its ID.
func (r *TituloRepository) FindByID(ctx context.Context, id string) (*models.Titulo, error) {
	const query = `SELECT id, season_id, name, type, default_quota, start_date, end_date, created_at
FROM titulos WHERE id = $1`
	var titulo models.Titulo
	if err := r.db.GetContext(ctx, &titulo, query, id); err != nil {
		return nil, err
	}
	return &titulo, nil
}

// ListBySeason returns every titulo of a season ordered by start date.
func (r *TituloRepository) ListBySeason(ctx context.Context, seasonID string) ([]models.Titulo, error) {
	const query = `SELECT id, season_id, name, type, default_quota, start_date, end_date, created_at
FROM titulos WHERE season_id = $1 ORDER BY start_date ASC`
	var titulos []models.Titulo
	if err := r.db.SelectContext(ctx, &titulos, query, seasonID); err != nil {
		return nil, fmt.Errorf("list titulos: %w", err)
	}
	return titulos, nil
}
