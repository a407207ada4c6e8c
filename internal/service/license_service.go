package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type licenseRepository interface {
	FindByID(ctx context.Context, id string) (*models.License, error)
	Create(ctx context.Context, license *models.License) error
	ExistsOverlapping(ctx context.Context, userID, seasonID string, start, end time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type licenseUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountActiveMembers(ctx context.Context) (int, error)
}

type licenseEventReader interface {
	ListInRange(ctx context.Context, seasonID string, start, end time.Time) ([]models.EventDetail, error)
}

type licenseBalanceLedger interface {
	ApplyLicenseCredit(ctx context.Context, userID, seasonID string, credit float64) error
	RevertLicenseCredit(ctx context.Context, userID, seasonID string, credit float64) error
}

type licenseRuleLoader interface {
	Load(ctx context.Context) (models.RuleSet, error)
}

type licenseAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LicenseService registers approved leave periods and keeps the fractional
// credit they contribute to the ledger. The credit stored on the license is
// the exact delta applied, so deletion reverts precisely what was added even
// if the calendar changed since.
type LicenseService struct {
	repo      licenseRepository
	users     licenseUserReader
	events    licenseEventReader
	balances  licenseBalanceLedger
	rules     licenseRuleLoader
	audit     licenseAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLicenseService constructs a LicenseService.
func NewLicenseService(repo licenseRepository, users licenseUserReader, events licenseEventReader, balances licenseBalanceLedger, rules licenseRuleLoader, audit licenseAuditLogger, validate *validator.Validate, logger *zap.Logger) *LicenseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LicenseService{repo: repo, users: users, events: events, balances: balances, rules: rules, audit: audit, validator: validate, logger: logger}
}

// Create registers a license and applies its proportional credit: the summed
// quotas of the covered events divided by the active member count.
func (s *LicenseService) Create(ctx context.Context, req dto.CreateLicenseRequest, seasonID string, actor *models.JWTClaims) (*dto.LicenseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid license payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	overlaps, err := s.repo.ExistsOverlapping(ctx, req.UserID, seasonID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check license overlap")
	}
	if overlaps {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an overlapping license already exists")
	}

	credit, err := s.computeCredit(ctx, seasonID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	license := &models.License{
		UserID:    req.UserID,
		SeasonID:  seasonID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Credit:    credit,
		CreatedBy: actorIDPtr(actor),
	}
	if err := s.repo.Create(ctx, license); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create license")
	}
	if err := s.balances.ApplyLicenseCredit(ctx, req.UserID, seasonID, credit); err != nil {
		s.logger.Warn("failed to apply license credit", zap.String("license_id", license.ID), zap.Error(err))
	}
	s.emitAudit(ctx, actor, models.AuditActionLicenseCreate, license.ID)

	resp := dto.LicenseFromModel(license)
	return &resp, nil
}

// Delete removes a license and reverts the credit it stored at creation.
func (s *LicenseService) Delete(ctx context.Context, licenseID string, actor *models.JWTClaims) error {
	license, err := s.repo.FindByID(ctx, licenseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "license not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load license")
	}
	if err := s.repo.Delete(ctx, licenseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete license")
	}
	if err := s.balances.RevertLicenseCredit(ctx, license.UserID, license.SeasonID, license.Credit); err != nil {
		s.logger.Warn("failed to revert license credit", zap.String("license_id", licenseID), zap.Error(err))
	}
	s.emitAudit(ctx, actor, models.AuditActionLicenseDelete, licenseID)
	return nil
}

func (s *LicenseService) computeCredit(ctx context.Context, seasonID string, start, end time.Time) (float64, error) {
	set, err := s.rules.Load(ctx)
	if err != nil {
		return 0, err
	}
	events, err := s.events.ListInRange(ctx, seasonID, start, end)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load covered events")
	}
	total := 0
	for i := range events {
		total += EffectiveEventQuota(&events[i], set.CupoDiario.Value)
	}
	members, err := s.users.CountActiveMembers(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active members")
	}
	if members <= 0 {
		return 0, nil
	}
	return float64(total) / float64(members), nil
}

func (s *LicenseService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, licenseID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     actorIDPtr(actor),
		Action:     action,
		Resource:   "license",
		ResourceID: &licenseID,
		IPAddress:  "system",
		UserAgent:  "license-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record license audit", zap.Error(err))
	}
}
