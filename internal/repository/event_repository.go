package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

const eventDetailColumns = `e.id, e.season_id, e.titulo_id, e.date, e.kind, e.quota_override, e.doble,
e.start_time, e.end_time, e.created_at, t.name AS titulo_name, t.type AS titulo_type,
t.default_quota AS titulo_default_quota`

// EventRepository handles persistence of events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// FindDetailByID returns an event joined with its title info.
func (r *EventRepository) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e LEFT JOIN titulos t ON t.id = e.titulo_id WHERE e.id = $1`, eventDetailColumns)
	var detail models.EventDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListBySeason returns every event of a season with title info.
func (r *EventRepository) ListBySeason(ctx context.Context, seasonID string) ([]models.EventDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e LEFT JOIN titulos t ON t.id = e.titulo_id
WHERE e.season_id = $1 ORDER BY e.date ASC`, eventDetailColumns)
	var events []models.EventDetail
	if err := r.db.SelectContext(ctx, &events, query, seasonID); err != nil {
		return nil, fmt.Errorf("list season events: %w", err)
	}
	return events, nil
}

// ListByTitulo returns every event of a titulo ordered by date.
func (r *EventRepository) ListByTitulo(ctx context.Context, tituloID string) ([]models.EventDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e LEFT JOIN titulos t ON t.id = e.titulo_id
WHERE e.titulo_id = $1 ORDER BY e.date ASC`, eventDetailColumns)
	var events []models.EventDetail
	if err := r.db.SelectContext(ctx, &events, query, tituloID); err != nil {
		return nil, fmt.Errorf("list titulo events: %w", err)
	}
	return events, nil
}

// ListRehearsalsOnDate returns the rehearsal events of a titulo falling on
// the given calendar day.
func (r *EventRepository) ListRehearsalsOnDate(ctx context.Context, tituloID string, day time.Time) ([]models.EventDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e LEFT JOIN titulos t ON t.id = e.titulo_id
WHERE e.titulo_id = $1 AND e.kind = $2 AND e.date::date = $3::date ORDER BY e.date ASC`, eventDetailColumns)
	var events []models.EventDetail
	if err := r.db.SelectContext(ctx, &events, query, tituloID, models.EventEnsayo, day); err != nil {
		return nil, fmt.Errorf("list rehearsals on date: %w", err)
	}
	return events, nil
}

// CountPerformancesByTitulo returns the number of performance events of a titulo.
func (r *EventRepository) CountPerformancesByTitulo(ctx context.Context, tituloID string) (int, error) {
	const query = `SELECT COUNT(*) FROM events WHERE titulo_id = $1 AND kind = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tituloID, models.EventFuncion); err != nil {
		return 0, fmt.Errorf("count performances: %w", err)
	}
	return count, nil
}

// ListInRange returns the season's events within [start, end] with title info.
func (r *EventRepository) ListInRange(ctx context.Context, seasonID string, start, end time.Time) ([]models.EventDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e LEFT JOIN titulos t ON t.id = e.titulo_id
WHERE e.season_id = $1 AND e.date >= $2 AND e.date <= $3 ORDER BY e.date ASC`, eventDetailColumns)
	var events []models.EventDetail
	if err := r.db.SelectContext(ctx, &events, query, seasonID, start, end); err != nil {
		return nil, fmt.Errorf("list events in range: %w", err)
	}
	return events, nil
}
