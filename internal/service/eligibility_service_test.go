package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

type userReaderStub struct{}

func (userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Active: true}, nil
}

type eventReaderStub struct {
	event        *models.EventDetail
	rehearsals   []models.EventDetail
	performances int
}

func (s *eventReaderStub) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	return s.event, nil
}

func (s *eventReaderStub) ListRehearsalsOnDate(ctx context.Context, tituloID string, day time.Time) ([]models.EventDetail, error) {
	return s.rehearsals, nil
}

func (s *eventReaderStub) CountPerformancesByTitulo(ctx context.Context, tituloID string) (int, error) {
	return s.performances, nil
}

type rotationReaderStub struct {
	eventCount     int
	seasonCount    int
	tituloCount    int
	rehearsalCount int
	weekendDates   []time.Time
}

func (s *rotationReaderStub) CountActiveByEvent(ctx context.Context, eventID string) (int, error) {
	return s.eventCount, nil
}

func (s *rotationReaderStub) CountActiveByUserSeason(ctx context.Context, userID, seasonID string) (int, error) {
	return s.seasonCount, nil
}

func (s *rotationReaderStub) CountActivePerformancesByUserTitulo(ctx context.Context, userID, tituloID string) (int, error) {
	return s.tituloCount, nil
}

func (s *rotationReaderStub) CountActiveByUserEvents(ctx context.Context, userID string, eventIDs []string) (int, error) {
	return s.rehearsalCount, nil
}

func (s *rotationReaderStub) ListActiveWeekendDates(ctx context.Context, userID, seasonID string, start, end time.Time) ([]time.Time, error) {
	return s.weekendDates, nil
}

type balanceSourceStub struct {
	balance *models.Balance
	max     int
}

func (s *balanceSourceStub) GetOrCreate(ctx context.Context, userID, seasonID string) (*models.Balance, error) {
	return s.balance, nil
}

func (s *balanceSourceStub) EffectiveMax(ctx context.Context, balance *models.Balance) (int, error) {
	return s.max, nil
}

type ruleLoaderStub struct {
	set models.RuleSet
}

func (s ruleLoaderStub) Load(ctx context.Context) (models.RuleSet, error) {
	return s.set, nil
}

// weekdayEvent returns a Wednesday performance far enough out to clear the
// lead-time rule.
func weekdayEvent() *models.EventDetail {
	return &models.EventDetail{Event: models.Event{
		ID:       "event-1",
		SeasonID: "season-1",
		Date:     time.Date(2026, 4, 8, 20, 0, 0, 0, time.UTC),
		Kind:     models.EventFuncion,
	}}
}

func newEligibilityFixture(events *eventReaderStub, rotations *rotationReaderStub, balances *balanceSourceStub) *EligibilityService {
	svc := NewEligibilityService(userReaderStub{}, events, rotations, balances, ruleLoaderStub{set: models.DefaultRuleSet()}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestEvaluateCleanRequestApproves(t *testing.T) {
	svc := newEligibilityFixture(
		&eventReaderStub{event: weekdayEvent()},
		&rotationReaderStub{},
		&balanceSourceStub{balance: &models.Balance{}, max: 10},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	assert.False(t, verdict.RequiresApproval)
	assert.False(t, verdict.Waitlisted)
	assert.Empty(t, verdict.Reasons)
	assert.Equal(t, models.RotationApproved, verdict.TargetStatus())
}

func TestEvaluateSeasonalMaxInclusiveBoundary(t *testing.T) {
	// 49 held + 1 requested = 50 against a max of 50: allowed.
	svc := newEligibilityFixture(
		&eventReaderStub{event: weekdayEvent()},
		&rotationReaderStub{seasonCount: 49},
		&balanceSourceStub{balance: &models.Balance{}, max: 50},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	assert.Empty(t, verdict.Reasons)
}

func TestEvaluateSeasonalMaxExceeded(t *testing.T) {
	svc := newEligibilityFixture(
		&eventReaderStub{event: weekdayEvent()},
		&rotationReaderStub{seasonCount: 50},
		&balanceSourceStub{balance: &models.Balance{}, max: 50},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "(51/50)")
	assert.True(t, verdict.RequiresApproval)
	assert.Equal(t, models.RotationPending, verdict.TargetStatus())
}

func TestEvaluateLicenseCreditCountsTowardMax(t *testing.T) {
	// 49 held + 0.5 credit + 1 requested = 50.5 > 50.
	svc := newEligibilityFixture(
		&eventReaderStub{event: weekdayEvent()},
		&rotationReaderStub{seasonCount: 49},
		&balanceSourceStub{balance: &models.Balance{LicenseCredit: 0.5}, max: 50},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "(50/50)")
}

func TestEvaluateFullEventWaitlists(t *testing.T) {
	// Default quota for an untitled performance is 1 (Otro bucket).
	svc := newEligibilityFixture(
		&eventReaderStub{event: weekdayEvent()},
		&rotationReaderStub{eventCount: 1},
		&balanceSourceStub{balance: &models.Balance{}, max: 10},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	assert.True(t, verdict.Waitlisted)
	assert.Empty(t, verdict.Reasons)
	assert.Equal(t, models.RotationWaitlisted, verdict.TargetStatus())
}

func TestEvaluateQuotaOverrideWins(t *testing.T) {
	override := 5
	event := weekdayEvent()
	event.QuotaOverride = &override

	svc := newEligibilityFixture(
		&eventReaderStub{event: event},
		&rotationReaderStub{eventCount: 4},
		&balanceSourceStub{balance: &models.Balance{}, max: 10},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	assert.False(t, verdict.Waitlisted)
}

func TestEvaluateWeekendCapNewWeekendBlocked(t *testing.T) {
	event := weekdayEvent()
	event.Date = time.Date(2026, 4, 18, 20, 0, 0, 0, time.UTC) // Saturday

	svc := newEligibilityFixture(
		&eventReaderStub{event: event},
		&rotationReaderStub{weekendDates: []time.Time{
			time.Date(2026, 4, 11, 20, 0, 0, 0, time.UTC), // prior Saturday
		}},
		&balanceSourceStub{balance: &models.Balance{}, max: 10},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "weekend limit")
}

func TestEvaluateWeekendCapSameWeekendAllowed(t *testing.T) {
	event := weekdayEvent()
	event.Date = time.Date(2026, 4, 12, 20, 0, 0, 0, time.UTC) // Sunday

	svc := newEligibilityFixture(
		&eventReaderStub{event: event},
		&rotationReaderStub{weekendDates: []time.Time{
			time.Date(2026, 4, 11, 20, 0, 0, 0, time.UTC), // Saturday of the same weekend
		}},
		&balanceSourceStub{balance: &models.Balance{}, max: 10},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	assert.Empty(t, verdict.Reasons)
}

func TestEvaluateDoubleRehearsalDay(t *testing.T) {
	tituloID := "titulo-1"
	event := weekdayEvent()
	event.Kind = models.EventEnsayo
	event.TituloID = &tituloID

	svc := newEligibilityFixture(
		&eventReaderStub{
			event: event,
			rehearsals: []models.EventDetail{
				{Event: models.Event{ID: "event-1"}},
				{Event: models.Event{ID: "event-2"}},
			},
		},
		&rotationReaderStub{rehearsalCount: 1},
		&balanceSourceStub{balance: &models.Balance{}, max: 10},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "double rehearsal day")
}

func TestEvaluateTitlePerformanceCapPercentage(t *testing.T) {
	tituloID := "titulo-1"
	tituloType := models.TituloOpera
	event := weekdayEvent()
	event.TituloID = &tituloID

	svc := newEligibilityFixture(
		&eventReaderStub{event: &models.EventDetail{Event: event.Event, TituloType: &tituloType}, performances: 10},
		&rotationReaderStub{tituloCount: 5},
		&balanceSourceStub{balance: &models.Balance{}, max: 20},
	)

	// 10 performances exceed the umbral of 4, so the cap is ceil(0.5*10)=5.
	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "(6/5)")
}

func TestEvaluateLeadTimeTooShort(t *testing.T) {
	event := weekdayEvent()
	event.Date = time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC) // same day as now

	svc := newEligibilityFixture(
		&eventReaderStub{event: event},
		&rotationReaderStub{},
		&balanceSourceStub{balance: &models.Balance{}, max: 10},
	)

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "lead time")
}

func TestEvaluateDisabledRulesSkip(t *testing.T) {
	set := models.DefaultRuleSet()
	set.MaxProyectado.Enabled = false
	set.CupoDiario.Enabled = false

	svc := NewEligibilityService(
		userReaderStub{},
		&eventReaderStub{event: weekdayEvent()},
		&rotationReaderStub{eventCount: 99, seasonCount: 99},
		&balanceSourceStub{balance: &models.Balance{}, max: 1},
		ruleLoaderStub{set: set},
		nil, nil,
	)
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }

	verdict, err := svc.Evaluate(context.Background(), "user-1", "event-1")
	require.NoError(t, err)
	assert.False(t, verdict.Waitlisted)
	assert.Empty(t, verdict.Reasons)
}
