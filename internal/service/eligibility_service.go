package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type eligibilityUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type eligibilityEventReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error)
	ListRehearsalsOnDate(ctx context.Context, tituloID string, day time.Time) ([]models.EventDetail, error)
	CountPerformancesByTitulo(ctx context.Context, tituloID string) (int, error)
}

type eligibilityRotationReader interface {
	CountActiveByEvent(ctx context.Context, eventID string) (int, error)
	CountActiveByUserSeason(ctx context.Context, userID, seasonID string) (int, error)
	CountActivePerformancesByUserTitulo(ctx context.Context, userID, tituloID string) (int, error)
	CountActiveByUserEvents(ctx context.Context, userID string, eventIDs []string) (int, error)
	ListActiveWeekendDates(ctx context.Context, userID, seasonID string, start, end time.Time) ([]time.Time, error)
}

type eligibilityBalanceSource interface {
	GetOrCreate(ctx context.Context, userID, seasonID string) (*models.Balance, error)
	EffectiveMax(ctx context.Context, balance *models.Balance) (int, error)
}

type eligibilityRuleLoader interface {
	Load(ctx context.Context) (models.RuleSet, error)
}

type eligibilityMetrics interface {
	RuleHit(rule string)
}

// EligibilityService evaluates every configured rule against a prospective
// rotation. Rules are independent and never short-circuit: the verdict
// accumulates all applicable reasons so the requester sees the full picture.
// Only structural problems (missing user or event) surface as errors.
type EligibilityService struct {
	users     eligibilityUserReader
	events    eligibilityEventReader
	rotations eligibilityRotationReader
	balances  eligibilityBalanceSource
	rules     eligibilityRuleLoader
	metrics   eligibilityMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewEligibilityService constructs an EligibilityService.
func NewEligibilityService(users eligibilityUserReader, events eligibilityEventReader, rotations eligibilityRotationReader, balances eligibilityBalanceSource, rules eligibilityRuleLoader, metrics eligibilityMetrics, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		users:     users,
		events:    events,
		rotations: rotations,
		balances:  balances,
		rules:     rules,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate runs the full rule set for one (user, event) pair. The rule
// configuration is read fresh on every call.
func (s *EligibilityService) Evaluate(ctx context.Context, userID, eventID string) (*models.Verdict, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	event, err := s.events.FindDetailByID(ctx, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	set, err := s.rules.Load(ctx)
	if err != nil {
		return nil, err
	}

	verdict := &models.Verdict{Reasons: []string{}}

	if err := s.checkEventQuota(ctx, userID, event, set, verdict); err != nil {
		return nil, err
	}
	if err := s.checkWeekendCap(ctx, userID, event, set, verdict); err != nil {
		return nil, err
	}
	if err := s.checkProjectedMax(ctx, userID, event, set, verdict); err != nil {
		return nil, err
	}
	if err := s.checkDoubleRehearsalDay(ctx, userID, event, set, verdict); err != nil {
		return nil, err
	}
	if err := s.checkTitlePerformanceCap(ctx, userID, event, set, verdict); err != nil {
		return nil, err
	}
	s.checkRequestLeadTime(event, set, verdict)

	verdict.RequiresApproval = len(verdict.Reasons) > 0
	return verdict, nil
}

// checkEventQuota flags the waitlist condition. A full event is never a
// rejection; the request queues instead.
func (s *EligibilityService) checkEventQuota(ctx context.Context, userID string, event *models.EventDetail, set models.RuleSet, verdict *models.Verdict) error {
	if !set.CupoDiario.Enabled {
		return nil
	}
	quota := EffectiveEventQuota(event, set.CupoDiario.Value)
	count, err := s.rotations.CountActiveByEvent(ctx, event.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count event rotations")
	}
	if count >= quota {
		verdict.Waitlisted = true
		s.ruleHit(models.RuleCupoDiario)
	}
	return nil
}

// checkWeekendCap counts distinct calendar weeks with weekend rotations in
// the event's month. Requesting a second event in an already-counted weekend
// never trips the rule.
func (s *EligibilityService) checkWeekendCap(ctx context.Context, userID string, event *models.EventDetail, set models.RuleSet, verdict *models.Verdict) error {
	if !set.FinesSemanaMax.Enabled || !event.IsWeekend() {
		return nil
	}
	monthStart := time.Date(event.Date.Year(), event.Date.Month(), 1, 0, 0, 0, 0, event.Date.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	dates, err := s.rotations.ListActiveWeekendDates(ctx, userID, event.SeasonID, monthStart, monthEnd)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weekend rotations")
	}

	weeks := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		weeks[isoWeekKey(d)] = struct{}{}
	}
	if _, sameWeekend := weeks[isoWeekKey(event.Date)]; sameWeekend {
		return nil
	}
	if len(weeks) >= set.FinesSemanaMax.Value {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("weekend limit for %s reached (%d/%d)", event.Date.Format("2006-01"), len(weeks), set.FinesSemanaMax.Value))
		s.ruleHit(models.RuleFinesSemanaMax)
	}
	return nil
}

// checkProjectedMax compares live seasonal consumption against the effective
// maximum. The projection is recomputed from the current calendar; a stored
// manual override wins. Exceeding the max (not reaching it) trips the rule.
func (s *EligibilityService) checkProjectedMax(ctx context.Context, userID string, event *models.EventDetail, set models.RuleSet, verdict *models.Verdict) error {
	if !set.MaxProyectado.Enabled {
		return nil
	}
	balance, err := s.balances.GetOrCreate(ctx, userID, event.SeasonID)
	if err != nil {
		return err
	}
	maxEfectivo, err := s.balances.EffectiveMax(ctx, balance)
	if err != nil {
		return err
	}
	count, err := s.rotations.CountActiveByUserSeason(ctx, userID, event.SeasonID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count season rotations")
	}
	prospective := float64(count) + balance.LicenseCredit + 1
	if prospective > float64(maxEfectivo) {
		display := int(math.Floor(float64(count)+balance.LicenseCredit)) + 1
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("projected seasonal max exceeded (%d/%d)", display, maxEfectivo))
		s.ruleHit(models.RuleMaxProyectado)
	}
	return nil
}

// checkDoubleRehearsalDay caps rotations across a same-day rehearsal set of
// one title.
func (s *EligibilityService) checkDoubleRehearsalDay(ctx context.Context, userID string, event *models.EventDetail, set models.RuleSet, verdict *models.Verdict) error {
	if !set.EnsayosDobles.Enabled || event.Kind != models.EventEnsayo || event.TituloID == nil {
		return nil
	}
	rehearsals, err := s.events.ListRehearsalsOnDate(ctx, *event.TituloID, event.Date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list same-day rehearsals")
	}
	if len(rehearsals) < 2 {
		return nil
	}
	ids := make([]string, 0, len(rehearsals))
	for _, r := range rehearsals {
		ids = append(ids, r.ID)
	}
	held, err := s.rotations.CountActiveByUserEvents(ctx, userID, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count rehearsal-set rotations")
	}
	if held+1 > set.EnsayosDobles.Value {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("double rehearsal day limit exceeded (%d/%d)", held+1, set.EnsayosDobles.Value))
		s.ruleHit(models.RuleEnsayosDobles)
	}
	return nil
}

// checkTitlePerformanceCap bounds how many performances of one title the user
// may skip: small titles get the fixed cap, larger ones a percentage rounded
// up.
func (s *EligibilityService) checkTitlePerformanceCap(ctx context.Context, userID string, event *models.EventDetail, set models.RuleSet, verdict *models.Verdict) error {
	if !set.FuncionesPorTitulo.Enabled || event.Kind != models.EventFuncion || event.TituloID == nil {
		return nil
	}
	total, err := s.events.CountPerformancesByTitulo(ctx, *event.TituloID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count title performances")
	}
	caps := set.FuncionesPorTitulo.Value
	limit := caps.MaxFijo
	if total > caps.Umbral {
		limit = int(math.Ceil(caps.Porcentaje * float64(total)))
	}
	current, err := s.rotations.CountActivePerformancesByUserTitulo(ctx, userID, *event.TituloID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count title rotations")
	}
	if current+1 > limit {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("per-title performance limit exceeded (%d/%d)", current+1, limit))
		s.ruleHit(models.RuleFuncionesPorTitulo)
	}
	return nil
}

// checkRequestLeadTime flags requests arriving inside the minimum lead window.
func (s *EligibilityService) checkRequestLeadTime(event *models.EventDetail, set models.RuleSet, verdict *models.Verdict) {
	if !set.PlazoSolicitud.Enabled {
		return
	}
	today := truncateToDay(s.now())
	eventDay := truncateToDay(event.Date)
	leadDays := int(eventDay.Sub(today).Hours() / 24)
	if leadDays < set.PlazoSolicitud.Value {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("request inside minimum lead time (%d day(s) required)", set.PlazoSolicitud.Value))
		s.ruleHit(models.RulePlazoSolicitud)
	}
}

func (s *EligibilityService) ruleHit(key models.RuleKey) {
	if s.metrics != nil {
		s.metrics.RuleHit(string(key))
	}
}

func isoWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-%02d", year, week)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
