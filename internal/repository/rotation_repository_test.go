package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

func newRotationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestRotationRepositoryExistsActiveNoRows(t *testing.T) {
	db, mock, cleanup := newRotationRepoMock(t)
	defer cleanup()

	repo := NewRotationRepository(db)
	mock.ExpectQuery("SELECT 1 FROM rotations").
		WithArgs("user-1", "event-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsActive(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRotationRepositoryCreateIfUnderQuota(t *testing.T) {
	db, mock, cleanup := newRotationRepoMock(t)
	defer cleanup()

	repo := NewRotationRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM events WHERE id = \\$1 FOR UPDATE").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("event-1"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM rotations").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("INSERT INTO rotations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rotation := &models.Rotation{
		UserID:   "user-1",
		EventID:  "event-1",
		SeasonID: "season-1",
		Status:   models.RotationApproved,
		Type:     models.RotationVoluntary,
	}
	ok, err := repo.CreateIfUnderQuota(context.Background(), rotation, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, rotation.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotationRepositoryCreateIfUnderQuotaAtCapacity(t *testing.T) {
	db, mock, cleanup := newRotationRepoMock(t)
	defer cleanup()

	repo := NewRotationRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM events WHERE id = \\$1 FOR UPDATE").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("event-1"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM rotations").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	rotation := &models.Rotation{
		UserID:   "user-1",
		EventID:  "event-1",
		SeasonID: "season-1",
		Status:   models.RotationApproved,
		Type:     models.RotationVoluntary,
	}
	ok, err := repo.CreateIfUnderQuota(context.Background(), rotation, 4)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotationRepositoryPromoteIfUnderQuota(t *testing.T) {
	db, mock, cleanup := newRotationRepoMock(t)
	defer cleanup()

	repo := NewRotationRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM events WHERE id = \\$1 FOR UPDATE").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("event-1"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM rotations").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("UPDATE rotations SET status = 'APPROVED'").
		WithArgs("rot-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.PromoteIfUnderQuota(context.Background(), "rot-1", "event-1", 4)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotationRepositoryPromoteIfUnderQuotaRowGone(t *testing.T) {
	db, mock, cleanup := newRotationRepoMock(t)
	defer cleanup()

	repo := NewRotationRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM events WHERE id = \\$1 FOR UPDATE").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("event-1"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM rotations").
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("UPDATE rotations SET status = 'APPROVED'").
		WithArgs("rot-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.PromoteIfUnderQuota(context.Background(), "rot-1", "event-1", 4)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
