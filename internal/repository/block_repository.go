package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

const blockColumns = `id, user_id, titulo_id, season_id, status, reason, created_at, updated_at`

const activeBlockStatuses = `('SOLICITADO', 'APROBADO', 'EN_CURSO')`

// BlockRepository handles persistence of rotation blocks.
type BlockRepository struct {
	db *sqlx.DB
}

// NewBlockRepository constructs the repository.
func NewBlockRepository(db *sqlx.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// FindByID returns a block by its ID.
func (r *BlockRepository) FindByID(ctx context.Context, id string) (*models.Block, error) {
	query := fmt.Sprintf(`SELECT %s FROM blocks WHERE id = $1`, blockColumns)
	var block models.Block
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		return nil, err
	}
	return &block, nil
}

// Create persists a new block.
func (r *BlockRepository) Create(ctx context.Context, block *models.Block) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	block.CreatedAt = now
	block.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO blocks (%s)
VALUES (:id, :user_id, :titulo_id, :season_id, :status, :reason, :created_at, :updated_at)`, blockColumns)
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

// UpdateStatus transitions a block. When clearUser is true the assignee is
// detached, which is how cancelled ghost blocks are neutralized.
func (r *BlockRepository) UpdateStatus(ctx context.Context, id string, status models.BlockStatus, clearUser bool) error {
	query := `UPDATE blocks SET status = $2, updated_at = $3 WHERE id = $1`
	if clearUser {
		query = `UPDATE blocks SET status = $2, updated_at = $3, user_id = NULL WHERE id = $1`
	}
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update block status: %w", err)
	}
	return nil
}

// CountActiveByTituloExcludingUser returns how many other users hold an
// active block for the titulo.
func (r *BlockRepository) CountActiveByTituloExcludingUser(ctx context.Context, tituloID, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM blocks
WHERE titulo_id = $1 AND status IN %s AND (user_id IS NULL OR user_id <> $2)`, activeBlockStatuses)
	var count int
	if err := r.db.GetContext(ctx, &count, query, tituloID, userID); err != nil {
		return 0, fmt.Errorf("count titulo blocks: %w", err)
	}
	return count, nil
}

// CountActiveByUserSeason returns the user's active blocks within a season.
func (r *BlockRepository) CountActiveByUserSeason(ctx context.Context, userID, seasonID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM blocks
WHERE user_id = $1 AND season_id = $2 AND status IN %s`, activeBlockStatuses)
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, seasonID); err != nil {
		return 0, fmt.Errorf("count user blocks: %w", err)
	}
	return count, nil
}

// ListGhosts returns active blocks that no longer hold any slot-consuming
// rotation. Detected by the idempotent sweep, not at mutation time.
func (r *BlockRepository) ListGhosts(ctx context.Context, seasonID string) ([]models.Block, error) {
	query := fmt.Sprintf(`SELECT %s FROM blocks b
WHERE b.season_id = $1 AND b.status IN %s
AND NOT EXISTS (
	SELECT 1 FROM rotations r WHERE r.block_id = b.id AND r.status IN %s
)`, blockColumnsPrefixed("b"), activeBlockStatuses, activeStatuses)
	var blocks []models.Block
	if err := r.db.SelectContext(ctx, &blocks, query, seasonID); err != nil {
		return nil, fmt.Errorf("list ghost blocks: %w", err)
	}
	return blocks, nil
}

func blockColumnsPrefixed(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.user_id, %[1]s.titulo_id, %[1]s.season_id, %[1]s.status, %[1]s.reason, %[1]s.created_at, %[1]s.updated_at`, alias)
}
