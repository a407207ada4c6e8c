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

func newRuleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestRuleRepositoryList(t *testing.T) {
	db, mock, cleanup := newRuleRepoMock(t)
	defer cleanup()

	repo := NewRuleRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "enabled", "priority", "category", "updated_by", "updated_at"}).
		AddRow("MAX_PROYECTADO", `{"maxEfectivo":50}`, "JSON", true, 3, "capacity", nil, time.Now()).
		AddRow("PLAZO_SOLICITUD", `{"dias":2}`, "JSON", true, 6, "lead_time", nil, time.Now())
	mock.ExpectQuery("SELECT key, value").
		WillReturnRows(rows)

	result, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, models.RuleMaxProyectado, result[0].Key)
}

func TestRuleRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRuleRepoMock(t)
	defer cleanup()

	repo := NewRuleRepository(db)
	mock.ExpectExec("INSERT INTO rule_configs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.RuleConfig{
		Key:      models.RulePlazoSolicitud,
		Value:    `{"dias":3}`,
		Type:     models.RuleValueJSON,
		Enabled:  true,
		Priority: 6,
		Category: "lead_time",
	}
	require.NoError(t, repo.Upsert(context.Background(), rule))
	assert.False(t, rule.UpdatedAt.IsZero())
}
