package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

type seasonEventsStub struct {
	events []models.EventDetail
}

func (s seasonEventsStub) ListBySeason(ctx context.Context, seasonID string) ([]models.EventDetail, error) {
	return s.events, nil
}

type memberCounterStub struct {
	members int
}

func (s memberCounterStub) CountActiveMembers(ctx context.Context) (int, error) {
	return s.members, nil
}

type balanceListStub struct {
	rows    []models.Balance
	updates map[string]int
}

func (s *balanceListStub) ListBySeason(ctx context.Context, seasonID string, zeroOnly bool) ([]models.Balance, error) {
	return s.rows, nil
}

func (s *balanceListStub) UpdateProjectedMax(ctx context.Context, id string, projectedMax int) error {
	if s.updates == nil {
		s.updates = make(map[string]int)
	}
	s.updates[id] = projectedMax
	return nil
}

func seasonCalendar() []models.EventDetail {
	opera := models.TituloOpera
	return []models.EventDetail{
		{Event: models.Event{ID: "e1", Kind: models.EventFuncion}, TituloType: &opera}, // 3
		{Event: models.Event{ID: "e2", Kind: models.EventEnsayo}},                      // 2
		{Event: models.Event{ID: "e3", Kind: models.EventEnsayo, Doble: true}},         // 1
		{Event: models.Event{ID: "e4", Kind: models.EventFuncion}},                     // 1 (untitled)
	}
}

func TestCapacityTotalSumsEffectiveQuotas(t *testing.T) {
	svc := NewCapacityService(
		seasonEventsStub{events: seasonCalendar()},
		memberCounterStub{members: 2},
		&balanceListStub{},
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil,
	)

	total, err := svc.TotalCapacity(context.Background(), "season-1")
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestCapacityQuotaOverrideWins(t *testing.T) {
	override := 9
	events := seasonCalendar()
	events[0].QuotaOverride = &override

	svc := NewCapacityService(
		seasonEventsStub{events: events},
		memberCounterStub{members: 2},
		&balanceListStub{},
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil,
	)

	total, err := svc.TotalCapacity(context.Background(), "season-1")
	require.NoError(t, err)
	assert.Equal(t, 13, total)
}

func TestCapacityTituloDefaultQuotaBeatsRuleBucket(t *testing.T) {
	defaultQuota := 5
	override := 2
	events := seasonCalendar()
	events[0].TituloDefaultQuota = &defaultQuota
	events[3].TituloDefaultQuota = &defaultQuota
	events[3].QuotaOverride = &override

	svc := NewCapacityService(
		seasonEventsStub{events: events},
		memberCounterStub{members: 2},
		&balanceListStub{},
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil,
	)

	// e1 takes the title default (5 over the opera bucket of 3); e4's
	// per-event override still wins over the title default.
	total, err := svc.TotalCapacity(context.Background(), "season-1")
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestCapacityProjectedMaxRoundsAndFloorsAtOne(t *testing.T) {
	svc := NewCapacityService(
		seasonEventsStub{events: seasonCalendar()},
		memberCounterStub{members: 2},
		&balanceListStub{},
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil,
	)

	// 7 slots over 2 members rounds to 4.
	projected, err := svc.ProjectedMax(context.Background(), "season-1")
	require.NoError(t, err)
	assert.Equal(t, 4, projected)

	// Far more members than slots still yields at least one.
	svc = NewCapacityService(
		seasonEventsStub{events: seasonCalendar()},
		memberCounterStub{members: 100},
		&balanceListStub{},
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil,
	)
	projected, err = svc.ProjectedMax(context.Background(), "season-1")
	require.NoError(t, err)
	assert.Equal(t, 1, projected)
}

func TestCapacityProjectedMaxNoMembers(t *testing.T) {
	svc := NewCapacityService(
		seasonEventsStub{events: seasonCalendar()},
		memberCounterStub{members: 0},
		&balanceListStub{},
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil,
	)

	projected, err := svc.ProjectedMax(context.Background(), "season-1")
	require.NoError(t, err)
	assert.Equal(t, 1, projected)
}

func TestCapacityRecalculateSkipsManualAndCurrentRows(t *testing.T) {
	manual := 12
	balances := &balanceListStub{rows: []models.Balance{
		{ID: "bal-1", ProjectedMax: 0},
		{ID: "bal-2", ProjectedMax: 4},    // already current
		{ID: "bal-3", ManualMax: &manual}, // pinned by an admin
	}}
	svc := NewCapacityService(
		seasonEventsStub{events: seasonCalendar()},
		memberCounterStub{members: 2},
		balances,
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil,
	)

	projected, updated, err := svc.RecalculateProjectedMax(context.Background(), "season-1", ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 4, projected)
	assert.Equal(t, 1, updated)
	assert.Equal(t, map[string]int{"bal-1": 4}, balances.updates)

	// A second pass over the repaired rows changes nothing.
	balances.rows[0].ProjectedMax = projected
	balances.updates = nil
	_, updated, err = svc.RecalculateProjectedMax(context.Background(), "season-1", ScopeAll)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Empty(t, balances.updates)
}
