package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

func newBalanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestBalanceRepositoryGetByUserSeason(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()

	repo := NewBalanceRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "season_id", "taken", "mandatory", "license_credit", "projected_max",
		"manual_max", "manual_max_reason", "adjusted_by", "block_used", "weekend_months", "updated_at",
	}).AddRow("bal-1", "user-1", "season-1", 3, 1, 0.5, 10, nil, nil, nil, false, []byte(`{"2026-03":1}`), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM user_season_balances").
		WithArgs("user-1", "season-1").
		WillReturnRows(rows)

	balance, err := repo.GetByUserSeason(context.Background(), "user-1", "season-1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance.Taken)
	assert.Equal(t, 1, balance.WeekendMonths["2026-03"])
}

func TestBalanceRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()

	repo := NewBalanceRepository(db)
	mock.ExpectExec("INSERT INTO user_season_balances").
		WillReturnResult(sqlmock.NewResult(0, 0))

	balance := &models.Balance{UserID: "user-1", SeasonID: "season-1"}
	require.NoError(t, repo.Create(context.Background(), balance))
	assert.NotEmpty(t, balance.ID)
	assert.NotNil(t, balance.WeekendMonths)
}

func TestBalanceRepositoryAddWeekendMonth(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()

	repo := NewBalanceRepository(db)
	mock.ExpectExec("UPDATE user_season_balances").
		WithArgs("user-1", "season-1", "2026-03", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AddWeekendMonth(context.Background(), "user-1", "season-1", "2026-03", 1))
	require.NoError(t, mock.ExpectationsWereMet())
}
