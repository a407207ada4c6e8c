package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

const balanceColumns = `id, user_id, season_id, taken, mandatory, license_credit, projected_max,
manual_max, manual_max_reason, adjusted_by, block_used, weekend_months, updated_at`

// BalanceRepository handles persistence of per (user, season) ledgers.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository constructs the repository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetByUserSeason returns the ledger row for the pair, or sql.ErrNoRows.
func (r *BalanceRepository) GetByUserSeason(ctx context.Context, userID, seasonID string) (*models.Balance, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_season_balances WHERE user_id = $1 AND season_id = $2`, balanceColumns)
	var balance models.Balance
	if err := r.db.GetContext(ctx, &balance, query, userID, seasonID); err != nil {
		return nil, err
	}
	return &balance, nil
}

// Create inserts a zeroed ledger row. A unique constraint on (user, season)
// makes concurrent create-on-read attempts collapse into one row.
func (r *BalanceRepository) Create(ctx context.Context, balance *models.Balance) error {
	if balance.ID == "" {
		balance.ID = uuid.NewString()
	}
	if balance.WeekendMonths == nil {
		balance.WeekendMonths = models.WeekendMonths{}
	}
	balance.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO user_season_balances (%s)
VALUES (:id, :user_id, :season_id, :taken, :mandatory, :license_credit, :projected_max,
:manual_max, :manual_max_reason, :adjusted_by, :block_used, :weekend_months, :updated_at)
ON CONFLICT (user_id, season_id) DO NOTHING`, balanceColumns)
	if _, err := r.db.NamedExecContext(ctx, query, balance); err != nil {
		return fmt.Errorf("create balance: %w", err)
	}
	return nil
}

// AddTaken shifts the voluntary counter by delta (negative on cancellation).
func (r *BalanceRepository) AddTaken(ctx context.Context, userID, seasonID string, delta int) error {
	return r.addCounter(ctx, userID, seasonID, "taken", delta)
}

// AddMandatory shifts the mandatory counter by delta.
func (r *BalanceRepository) AddMandatory(ctx context.Context, userID, seasonID string, delta int) error {
	return r.addCounter(ctx, userID, seasonID, "mandatory", delta)
}

func (r *BalanceRepository) addCounter(ctx context.Context, userID, seasonID, column string, delta int) error {
	query := fmt.Sprintf(`UPDATE user_season_balances
SET %s = GREATEST(%s + $3, 0), updated_at = $4 WHERE user_id = $1 AND season_id = $2`, column, column)
	if _, err := r.db.ExecContext(ctx, query, userID, seasonID, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("update %s counter: %w", column, err)
	}
	return nil
}

// AddLicenseCredit shifts the fractional license credit by delta.
func (r *BalanceRepository) AddLicenseCredit(ctx context.Context, userID, seasonID string, delta float64) error {
	const query = `UPDATE user_season_balances
SET license_credit = GREATEST(license_credit + $3, 0), updated_at = $4 WHERE user_id = $1 AND season_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, seasonID, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("update license credit: %w", err)
	}
	return nil
}

// SetManualOverride stores or clears the admin max adjustment.
func (r *BalanceRepository) SetManualOverride(ctx context.Context, userID, seasonID string, value *int, reason, adjustedBy *string) error {
	const query = `UPDATE user_season_balances
SET manual_max = $3, manual_max_reason = $4, adjusted_by = $5, updated_at = $6
WHERE user_id = $1 AND season_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, seasonID, value, reason, adjustedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("set manual override: %w", err)
	}
	return nil
}

// SetBlockUsed toggles the one-block-per-season flag.
func (r *BalanceRepository) SetBlockUsed(ctx context.Context, userID, seasonID string, used bool) error {
	const query = `UPDATE user_season_balances SET block_used = $3, updated_at = $4 WHERE user_id = $1 AND season_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, seasonID, used, time.Now().UTC()); err != nil {
		return fmt.Errorf("set block used: %w", err)
	}
	return nil
}

// AddWeekendMonth shifts the month's weekend usage counter by delta.
func (r *BalanceRepository) AddWeekendMonth(ctx context.Context, userID, seasonID, monthKey string, delta int) error {
	const query = `UPDATE user_season_balances
SET weekend_months = jsonb_set(
	COALESCE(weekend_months, '{}'::jsonb),
	ARRAY[$3],
	(GREATEST(COALESCE((weekend_months->>$3)::int, 0) + $4, 0))::text::jsonb
), updated_at = $5
WHERE user_id = $1 AND season_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, seasonID, monthKey, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("update weekend month: %w", err)
	}
	return nil
}

// UpdateProjectedMax rewrites the cached projection for one row.
func (r *BalanceRepository) UpdateProjectedMax(ctx context.Context, id string, projectedMax int) error {
	const query = `UPDATE user_season_balances SET projected_max = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, projectedMax, time.Now().UTC()); err != nil {
		return fmt.Errorf("update projected max: %w", err)
	}
	return nil
}

// ListBySeason returns the season's ledgers, optionally only rows whose
// cached projection is still zero.
func (r *BalanceRepository) ListBySeason(ctx context.Context, seasonID string, zeroOnly bool) ([]models.Balance, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_season_balances WHERE season_id = $1`, balanceColumns)
	if zeroOnly {
		query += ` AND projected_max = 0`
	}
	query += ` ORDER BY user_id ASC`
	var balances []models.Balance
	if err := r.db.SelectContext(ctx, &balances, query, seasonID); err != nil {
		return nil, fmt.Errorf("list season balances: %w", err)
	}
	return balances, nil
}

// ListDetailBySeason returns ledgers joined with member names for reporting.
func (r *BalanceRepository) ListDetailBySeason(ctx context.Context, seasonID string) ([]models.BalanceDetail, error) {
	const query = `SELECT b.id, b.user_id, b.season_id, b.taken, b.mandatory, b.license_credit, b.projected_max,
b.manual_max, b.manual_max_reason, b.adjusted_by, b.block_used, b.weekend_months, b.updated_at,
u.full_name AS user_name, u.email AS user_email
FROM user_season_balances b
JOIN users u ON u.id = b.user_id
WHERE b.season_id = $1 ORDER BY u.full_name ASC`
	var details []models.BalanceDetail
	if err := r.db.SelectContext(ctx, &details, query, seasonID); err != nil {
		return nil, fmt.Errorf("list balance details: %w", err)
	}
	return details, nil
}
