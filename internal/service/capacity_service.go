package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type capacityEventReader interface {
	ListBySeason(ctx context.Context, seasonID string) ([]models.EventDetail, error)
}

type capacityMemberCounter interface {
	CountActiveMembers(ctx context.Context) (int, error)
}

type capacityBalanceStore interface {
	ListBySeason(ctx context.Context, seasonID string, zeroOnly bool) ([]models.Balance, error)
	UpdateProjectedMax(ctx context.Context, id string, projectedMax int) error
}

type capacityRuleLoader interface {
	Load(ctx context.Context) (models.RuleSet, error)
}

// RecalculateScope selects which ledger rows a projected-max repair touches.
type RecalculateScope string

const (
	ScopeZeroOnly RecalculateScope = "zeroOnly"
	ScopeAll      RecalculateScope = "all"
)

// CapacityService derives season capacity and the per-member projection from
// the event calendar. The projection is always computed from live data; the
// cached balance column exists only for reporting and is repaired explicitly.
type CapacityService struct {
	events   capacityEventReader
	users    capacityMemberCounter
	balances capacityBalanceStore
	rules    capacityRuleLoader
	logger   *zap.Logger
}

// NewCapacityService constructs a CapacityService.
func NewCapacityService(events capacityEventReader, users capacityMemberCounter, balances capacityBalanceStore, rules capacityRuleLoader, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{events: events, users: users, balances: balances, rules: rules, logger: logger}
}

// EffectiveEventQuota resolves an event's slot quota. A per-event override
// always wins, then the title's default quota, then the rule-derived value.
func EffectiveEventQuota(event *models.EventDetail, quotas models.DailyQuotas) int {
	if event.QuotaOverride != nil {
		return *event.QuotaOverride
	}
	if event.TituloDefaultQuota != nil {
		return *event.TituloDefaultQuota
	}
	tituloType := models.TituloOtro
	if event.TituloType != nil {
		tituloType = *event.TituloType
	}
	return quotas.QuotaFor(event.Kind, tituloType, event.Doble)
}

// TotalCapacity sums effective quotas across every event of the season.
func (s *CapacityService) TotalCapacity(ctx context.Context, seasonID string) (int, error) {
	set, err := s.rules.Load(ctx)
	if err != nil {
		return 0, err
	}
	events, err := s.events.ListBySeason(ctx, seasonID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load season events")
	}
	total := 0
	for i := range events {
		total += EffectiveEventQuota(&events[i], set.CupoDiario.Value)
	}
	return total, nil
}

// ProjectedMax returns the per-member seasonal maximum: total capacity spread
// over active members, rounded, never below one.
func (s *CapacityService) ProjectedMax(ctx context.Context, seasonID string) (int, error) {
	total, err := s.TotalCapacity(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	members, err := s.users.CountActiveMembers(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active members")
	}
	if members <= 0 {
		return 1, nil
	}
	projected := int(math.Round(float64(total) / float64(members)))
	if projected < 1 {
		projected = 1
	}
	return projected, nil
}

// RecalculateProjectedMax rewrites the cached projection on the season's
// ledger rows. Rows carrying a manual override are skipped; running it twice
// with unchanged inputs is a no-op on the second pass. Returns the projection
// and the number of rows rewritten.
func (s *CapacityService) RecalculateProjectedMax(ctx context.Context, seasonID string, scope RecalculateScope) (int, int, error) {
	if scope == "" {
		scope = ScopeZeroOnly
	}
	projected, err := s.ProjectedMax(ctx, seasonID)
	if err != nil {
		return 0, 0, err
	}
	rows, err := s.balances.ListBySeason(ctx, seasonID, scope == ScopeZeroOnly)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list season balances")
	}

	updated := 0
	for i := range rows {
		row := &rows[i]
		if row.ManualMax != nil {
			continue
		}
		if row.ProjectedMax == projected {
			continue
		}
		if err := s.balances.UpdateProjectedMax(ctx, row.ID, projected); err != nil {
			return projected, updated, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update projected max")
		}
		updated++
	}
	s.logger.Info("projected max recalculated",
		zap.String("season_id", seasonID),
		zap.String("scope", string(scope)),
		zap.Int("projected_max", projected),
		zap.Int("rows_updated", updated))
	return projected, updated, nil
}
