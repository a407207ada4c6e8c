package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

const waitlistColumns = `id, user_id, event_id, season_id, created_at`

// WaitlistRepository handles persistence of per-event FIFO waiting lists.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Enqueue appends the user to the event's queue. Insertion order is priority.
func (r *WaitlistRepository) Enqueue(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO waitlist_entries (%s)
VALUES (:id, :user_id, :event_id, :season_id, :created_at)`, waitlistColumns)
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("enqueue waitlist entry: %w", err)
	}
	return nil
}

// Head returns the earliest entry for the event, or sql.ErrNoRows.
func (r *WaitlistRepository) Head(ctx context.Context, eventID string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM waitlist_entries WHERE event_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1`, waitlistColumns)
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, eventID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByEvent returns the event's queue in promotion order.
func (r *WaitlistRepository) ListByEvent(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM waitlist_entries WHERE event_id = $1 ORDER BY created_at ASC, id ASC`, waitlistColumns)
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, eventID); err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	return entries, nil
}

// ExistsForUserEvent reports whether the user already waits on the event.
func (r *WaitlistRepository) ExistsForUserEvent(ctx context.Context, userID, eventID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM waitlist_entries WHERE user_id = $1 AND event_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, eventID); err != nil {
		return false, fmt.Errorf("check waitlist entry: %w", err)
	}
	return count > 0, nil
}

// Delete removes a single entry, typically right after its promotion.
func (r *WaitlistRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	return nil
}

// DeleteByUserEvent removes the user's entry for the event, if any.
func (r *WaitlistRepository) DeleteByUserEvent(ctx context.Context, userID, eventID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE user_id = $1 AND event_id = $2`, userID, eventID); err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	return nil
}

// PurgeSeason drops every entry of a season. No carry-over between seasons.
func (r *WaitlistRepository) PurgeSeason(ctx context.Context, seasonID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE season_id = $1`, seasonID)
	if err != nil {
		return 0, fmt.Errorf("purge season waitlist: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}
