package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type balanceRepository interface {
	GetByUserSeason(ctx context.Context, userID, seasonID string) (*models.Balance, error)
	Create(ctx context.Context, balance *models.Balance) error
	AddTaken(ctx context.Context, userID, seasonID string, delta int) error
	AddMandatory(ctx context.Context, userID, seasonID string, delta int) error
	AddLicenseCredit(ctx context.Context, userID, seasonID string, delta float64) error
	SetManualOverride(ctx context.Context, userID, seasonID string, value *int, reason, adjustedBy *string) error
	SetBlockUsed(ctx context.Context, userID, seasonID string, used bool) error
	AddWeekendMonth(ctx context.Context, userID, seasonID, monthKey string, delta int) error
	ListDetailBySeason(ctx context.Context, seasonID string) ([]models.BalanceDetail, error)
}

type balanceUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type balanceProjector interface {
	ProjectedMax(ctx context.Context, seasonID string) (int, error)
}

type balanceAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BalanceService maintains the per (user, season) consumption ledger.
type BalanceService struct {
	repo      balanceRepository
	users     balanceUserReader
	capacity  balanceProjector
	audit     balanceAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBalanceService constructs a BalanceService.
func NewBalanceService(repo balanceRepository, users balanceUserReader, capacity balanceProjector, audit balanceAuditLogger, validate *validator.Validate, logger *zap.Logger) *BalanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceService{repo: repo, users: users, capacity: capacity, audit: audit, validator: validate, logger: logger}
}

// GetOrCreate returns the ledger row, creating a zeroed one on first touch.
func (s *BalanceService) GetOrCreate(ctx context.Context, userID, seasonID string) (*models.Balance, error) {
	balance, err := s.repo.GetByUserSeason(ctx, userID, seasonID)
	if err == nil {
		return balance, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	fresh := &models.Balance{UserID: userID, SeasonID: seasonID, WeekendMonths: models.WeekendMonths{}}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create balance")
	}
	// Re-read: a concurrent creator may have won the unique constraint.
	balance, err = s.repo.GetByUserSeason(ctx, userID, seasonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload balance")
	}
	return balance, nil
}

// EffectiveMax resolves the user's seasonal maximum. A manual override wins;
// otherwise the projection is computed live from the current calendar.
func (s *BalanceService) EffectiveMax(ctx context.Context, balance *models.Balance) (int, error) {
	if balance.ManualMax != nil {
		return *balance.ManualMax, nil
	}
	return s.capacity.ProjectedMax(ctx, balance.SeasonID)
}

// Get returns the ledger view with the live projection substituted for the
// cached column.
func (s *BalanceService) Get(ctx context.Context, userID, seasonID string) (*dto.BalanceResponse, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	balance, err := s.GetOrCreate(ctx, userID, seasonID)
	if err != nil {
		return nil, err
	}
	projected, err := s.capacity.ProjectedMax(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	view := dto.BalanceFromModel(balance, projected)
	return &view, nil
}

// SetManualOverride stores (or clears, when max is nil) the admin adjustment.
// Setting a value requires a justification.
func (s *BalanceService) SetManualOverride(ctx context.Context, userID, seasonID string, req dto.OverrideBalanceRequest, actor *models.JWTClaims) (*dto.BalanceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if req.Max != nil && (req.Reason == nil || *req.Reason == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "manual override requires a justification")
	}
	prev, err := s.GetOrCreate(ctx, userID, seasonID)
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	adjustedBy := actorIDPtr(actor)
	if req.Max == nil {
		reason = nil
		adjustedBy = nil
	}
	if err := s.repo.SetManualOverride(ctx, userID, seasonID, req.Max, reason, adjustedBy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set manual override")
	}

	s.emitOverrideAudit(ctx, actor, userID, prev.ManualMax, req.Max)
	return s.Get(ctx, userID, seasonID)
}

// ApplyLicenseCredit adds the fractional credit of a new license.
func (s *BalanceService) ApplyLicenseCredit(ctx context.Context, userID, seasonID string, credit float64) error {
	if _, err := s.GetOrCreate(ctx, userID, seasonID); err != nil {
		return err
	}
	if err := s.repo.AddLicenseCredit(ctx, userID, seasonID, credit); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply license credit")
	}
	return nil
}

// RevertLicenseCredit subtracts a deleted license's stored credit.
func (s *BalanceService) RevertLicenseCredit(ctx context.Context, userID, seasonID string, credit float64) error {
	if err := s.repo.AddLicenseCredit(ctx, userID, seasonID, -credit); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert license credit")
	}
	return nil
}

// RecordApproval bumps the ledger for an approved rotation: the matching
// counter plus the weekend month bucket when the event falls on a weekend.
func (s *BalanceService) RecordApproval(ctx context.Context, rotation *models.Rotation, event *models.Event) error {
	if _, err := s.GetOrCreate(ctx, rotation.UserID, rotation.SeasonID); err != nil {
		return err
	}
	var err error
	if rotation.Type == models.RotationMandatory {
		err = s.repo.AddMandatory(ctx, rotation.UserID, rotation.SeasonID, 1)
	} else {
		err = s.repo.AddTaken(ctx, rotation.UserID, rotation.SeasonID, 1)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}
	if event.IsWeekend() {
		if err := s.repo.AddWeekendMonth(ctx, rotation.UserID, rotation.SeasonID, models.MonthKey(event.Date), 1); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record weekend usage")
		}
	}
	return nil
}

// RecordRelease reverts a previously recorded approval.
func (s *BalanceService) RecordRelease(ctx context.Context, rotation *models.Rotation, event *models.Event) error {
	var err error
	if rotation.Type == models.RotationMandatory {
		err = s.repo.AddMandatory(ctx, rotation.UserID, rotation.SeasonID, -1)
	} else {
		err = s.repo.AddTaken(ctx, rotation.UserID, rotation.SeasonID, -1)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record release")
	}
	if event.IsWeekend() {
		if err := s.repo.AddWeekendMonth(ctx, rotation.UserID, rotation.SeasonID, models.MonthKey(event.Date), -1); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert weekend usage")
		}
	}
	return nil
}

// MarkBlockUsed flags the one-exclusive-block-per-season consumption.
func (s *BalanceService) MarkBlockUsed(ctx context.Context, userID, seasonID string) error {
	if _, err := s.GetOrCreate(ctx, userID, seasonID); err != nil {
		return err
	}
	if err := s.repo.SetBlockUsed(ctx, userID, seasonID, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark block used")
	}
	return nil
}

// ClearBlockUsed releases the flag after a block cancellation.
func (s *BalanceService) ClearBlockUsed(ctx context.Context, userID, seasonID string) error {
	if err := s.repo.SetBlockUsed(ctx, userID, seasonID, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear block used")
	}
	return nil
}

// ListDetailBySeason returns ledgers joined with member info for reporting.
func (s *BalanceService) ListDetailBySeason(ctx context.Context, seasonID string) ([]models.BalanceDetail, error) {
	details, err := s.repo.ListDetailBySeason(ctx, seasonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list season balances")
	}
	return details, nil
}

func (s *BalanceService) emitOverrideAudit(ctx context.Context, actor *models.JWTClaims, userID string, oldMax, newMax *int) {
	if s.audit == nil {
		return
	}
	oldBytes, _ := json.Marshal(map[string]interface{}{"manual_max": oldMax})
	newBytes, _ := json.Marshal(map[string]interface{}{"manual_max": newMax})
	log := &models.AuditLog{
		UserID:     actorIDPtr(actor),
		Action:     models.AuditActionBalanceOverride,
		Resource:   "balance",
		ResourceID: &userID,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "balance-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record balance audit", zap.Error(err))
	}
}
