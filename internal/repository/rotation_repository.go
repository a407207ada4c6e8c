package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// activeStatuses is the set of statuses that consume an event slot.
const activeStatuses = `('PENDING', 'APPROVED', 'CANCELLATION_PENDING')`

const rotationColumns = `id, user_id, event_id, season_id, status, type, block_id, reason, approved_by, assigned_by, created_at, updated_at`

// RotationRepository handles persistence of rotation assignments.
type RotationRepository struct {
	db *sqlx.DB
}

// NewRotationRepository constructs the repository.
func NewRotationRepository(db *sqlx.DB) *RotationRepository {
	return &RotationRepository{db: db}
}

// FindByID returns a rotation by its ID.
func (r *RotationRepository) FindByID(ctx context.Context, id string) (*models.Rotation, error) {
	query := fmt.Sprintf(`SELECT %s FROM rotations WHERE id = $1`, rotationColumns)
	var rotation models.Rotation
	if err := r.db.GetContext(ctx, &rotation, query, id); err != nil {
		return nil, err
	}
	return &rotation, nil
}

// ExistsActive reports whether the user already holds an active or waitlisted
// rotation for the event.
func (r *RotationRepository) ExistsActive(ctx context.Context, userID, eventID string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM rotations WHERE user_id = $1 AND event_id = $2 AND (status IN %s OR status = 'WAITLISTED') LIMIT 1`, activeStatuses)
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, eventID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active rotation: %w", err)
	}
	return true, nil
}

// CountActiveByEvent returns the number of slot-consuming rotations on an event.
func (r *RotationRepository) CountActiveByEvent(ctx context.Context, eventID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM rotations WHERE event_id = $1 AND status IN %s`, activeStatuses)
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count event rotations: %w", err)
	}
	return count, nil
}

// CountActiveByUserSeason returns the user's slot-consuming rotations in a season.
func (r *RotationRepository) CountActiveByUserSeason(ctx context.Context, userID, seasonID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM rotations WHERE user_id = $1 AND season_id = $2 AND status IN %s`, activeStatuses)
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, seasonID); err != nil {
		return 0, fmt.Errorf("count season rotations: %w", err)
	}
	return count, nil
}

// CountActivePerformancesByUserTitulo returns the user's slot-consuming
// rotations across a titulo's performance events.
func (r *RotationRepository) CountActivePerformancesByUserTitulo(ctx context.Context, userID, tituloID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM rotations r
JOIN events e ON e.id = r.event_id
WHERE r.user_id = $1 AND e.titulo_id = $2 AND e.kind = $3 AND r.status IN %s`, activeStatuses)
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, tituloID, models.EventFuncion); err != nil {
		return 0, fmt.Errorf("count titulo performance rotations: %w", err)
	}
	return count, nil
}

// CountActiveByUserEvents returns the user's slot-consuming rotations across
// the given events. Used by the double-rehearsal-day rule.
func (r *RotationRepository) CountActiveByUserEvents(ctx context.Context, userID string, eventIDs []string) (int, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM rotations WHERE user_id = ? AND event_id IN (?) AND status IN %s`, activeStatuses)
	query, args, err := sqlx.In(query, userID, eventIDs)
	if err != nil {
		return 0, fmt.Errorf("expand event ids: %w", err)
	}
	query = r.db.Rebind(query)
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count rotations by events: %w", err)
	}
	return count, nil
}

// ListActiveWeekendDates returns the event dates of the user's slot-consuming
// weekend rotations within [start, end).
func (r *RotationRepository) ListActiveWeekendDates(ctx context.Context, userID, seasonID string, start, end time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(`SELECT e.date FROM rotations r
JOIN events e ON e.id = r.event_id
WHERE r.user_id = $1 AND r.season_id = $2 AND r.status IN %s
AND e.date >= $3 AND e.date < $4
AND EXTRACT(ISODOW FROM e.date) IN (6, 7)
ORDER BY e.date ASC`, activeStatuses)
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, userID, seasonID, start, end); err != nil {
		return nil, fmt.Errorf("list weekend rotation dates: %w", err)
	}
	return dates, nil
}

// Create persists a rotation without a capacity check. Used for non-consuming
// states (PENDING awaiting approval, WAITLISTED) and force paths.
func (r *RotationRepository) Create(ctx context.Context, rotation *models.Rotation) error {
	prepareRotation(rotation)
	query := fmt.Sprintf(`INSERT INTO rotations (%s)
VALUES (:id, :user_id, :event_id, :season_id, :status, :type, :block_id, :reason, :approved_by, :assigned_by, :created_at, :updated_at)`, rotationColumns)
	if _, err := r.db.NamedExecContext(ctx, query, rotation); err != nil {
		return fmt.Errorf("create rotation: %w", err)
	}
	return nil
}

// CreateIfUnderQuota inserts an APPROVED rotation only while the event's
// slot-consuming count stays below quota. The event row is locked for the
// duration of the transaction so two requests for the last slot serialize;
// the loser gets ok=false and no write happens.
func (r *RotationRepository) CreateIfUnderQuota(ctx context.Context, rotation *models.Rotation, quota int) (bool, error) {
	prepareRotation(rotation)

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin rotation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, rotation.EventID); err != nil {
		return false, fmt.Errorf("lock event: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM rotations WHERE event_id = $1 AND status IN %s`, activeStatuses)
	var count int
	if err := tx.GetContext(ctx, &count, countQuery, rotation.EventID); err != nil {
		return false, fmt.Errorf("count rotations in tx: %w", err)
	}
	if count >= quota {
		return false, nil
	}

	insertQuery := fmt.Sprintf(`INSERT INTO rotations (%s)
VALUES (:id, :user_id, :event_id, :season_id, :status, :type, :block_id, :reason, :approved_by, :assigned_by, :created_at, :updated_at)`, rotationColumns)
	if _, err := tx.NamedExecContext(ctx, insertQuery, rotation); err != nil {
		return false, fmt.Errorf("insert rotation in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rotation tx: %w", err)
	}
	return true, nil
}

// FindWaitlistedByUserEvent returns the user's WAITLISTED rotation for the
// event, or sql.ErrNoRows.
func (r *RotationRepository) FindWaitlistedByUserEvent(ctx context.Context, userID, eventID string) (*models.Rotation, error) {
	query := fmt.Sprintf(`SELECT %s FROM rotations WHERE user_id = $1 AND event_id = $2 AND status = 'WAITLISTED' LIMIT 1`, rotationColumns)
	var rotation models.Rotation
	if err := r.db.GetContext(ctx, &rotation, query, userID, eventID); err != nil {
		return nil, err
	}
	return &rotation, nil
}

// PromoteIfUnderQuota flips a WAITLISTED rotation to APPROVED only while the
// event's slot-consuming count stays below quota, under the same event lock
// as CreateIfUnderQuota.
func (r *RotationRepository) PromoteIfUnderQuota(ctx context.Context, rotationID, eventID string, quota int) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin promotion tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID); err != nil {
		return false, fmt.Errorf("lock event: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM rotations WHERE event_id = $1 AND status IN %s`, activeStatuses)
	var count int
	if err := tx.GetContext(ctx, &count, countQuery, eventID); err != nil {
		return false, fmt.Errorf("count rotations in tx: %w", err)
	}
	if count >= quota {
		return false, nil
	}

	const update = `UPDATE rotations SET status = 'APPROVED', updated_at = $2 WHERE id = $1 AND status = 'WAITLISTED'`
	result, err := tx.ExecContext(ctx, update, rotationID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("promote rotation in tx: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit promotion tx: %w", err)
	}
	return true, nil
}

// UpdateStatus transitions a rotation, recording the acting admin when given.
func (r *RotationRepository) UpdateStatus(ctx context.Context, id string, status models.RotationStatus, actorID *string) error {
	const query = `UPDATE rotations SET status = $2, approved_by = COALESCE($3, approved_by), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, actorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update rotation status: %w", err)
	}
	return nil
}

// Delete removes a rotation row. Cancellations are hard deletes.
func (r *RotationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rotations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete rotation: %w", err)
	}
	return nil
}

// ListActiveByBlock returns the block's rotations that still consume slots.
func (r *RotationRepository) ListActiveByBlock(ctx context.Context, blockID string) ([]models.Rotation, error) {
	query := fmt.Sprintf(`SELECT %s FROM rotations WHERE block_id = $1 AND status IN %s ORDER BY created_at ASC`, rotationColumns, activeStatuses)
	var rotations []models.Rotation
	if err := r.db.SelectContext(ctx, &rotations, query, blockID); err != nil {
		return nil, fmt.Errorf("list block rotations: %w", err)
	}
	return rotations, nil
}

// ListActiveEventIDsByUserTitulo returns event IDs of the titulo where the
// user already holds an active or waitlisted rotation.
func (r *RotationRepository) ListActiveEventIDsByUserTitulo(ctx context.Context, userID, tituloID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT r.event_id FROM rotations r
JOIN events e ON e.id = r.event_id
WHERE r.user_id = $1 AND e.titulo_id = $2 AND (r.status IN %s OR r.status = 'WAITLISTED')`, activeStatuses)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, tituloID); err != nil {
		return nil, fmt.Errorf("list held titulo events: %w", err)
	}
	return ids, nil
}

// ListByUserSeason returns all rotations of a user within a season.
func (r *RotationRepository) ListByUserSeason(ctx context.Context, userID, seasonID string) ([]models.Rotation, error) {
	query := fmt.Sprintf(`SELECT %s FROM rotations WHERE user_id = $1 AND season_id = $2 ORDER BY created_at ASC`, rotationColumns)
	var rotations []models.Rotation
	if err := r.db.SelectContext(ctx, &rotations, query, userID, seasonID); err != nil {
		return nil, fmt.Errorf("list user rotations: %w", err)
	}
	return rotations, nil
}

func prepareRotation(rotation *models.Rotation) {
	if rotation.ID == "" {
		rotation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rotation.CreatedAt.IsZero() {
		rotation.CreatedAt = now
	}
	rotation.UpdatedAt = now
}
