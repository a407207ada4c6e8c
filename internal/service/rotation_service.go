package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type rotationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Rotation, error)
	ExistsActive(ctx context.Context, userID, eventID string) (bool, error)
	Create(ctx context.Context, rotation *models.Rotation) error
	CreateIfUnderQuota(ctx context.Context, rotation *models.Rotation, quota int) (bool, error)
	PromoteIfUnderQuota(ctx context.Context, rotationID, eventID string, quota int) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.RotationStatus, actorID *string) error
	Delete(ctx context.Context, id string) error
}

type rotationEventReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error)
}

type rotationEvaluator interface {
	Evaluate(ctx context.Context, userID, eventID string) (*models.Verdict, error)
}

type rotationBalanceLedger interface {
	RecordApproval(ctx context.Context, rotation *models.Rotation, event *models.Event) error
	RecordRelease(ctx context.Context, rotation *models.Rotation, event *models.Event) error
}

type rotationWaitlist interface {
	Enqueue(ctx context.Context, userID, eventID, seasonID string) error
	DeleteEntry(ctx context.Context, userID, eventID string) error
	Promote(ctx context.Context, eventID string) ([]string, error)
}

type rotationRuleLoader interface {
	Load(ctx context.Context) (models.RuleSet, error)
}

type rotationNotifier interface {
	RotationApproved(userID, eventID string)
	RotationRejected(userID, eventID string)
}

type rotationAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type rotationMetrics interface {
	RotationCreated(status string)
}

// RotationService orchestrates the rotation lifecycle: request, verdict,
// capacity-checked approval, admin review, cancellation with promotion of
// freed slots, and the admin force-assignment path.
type RotationService struct {
	repo        rotationRepository
	events      rotationEventReader
	eligibility rotationEvaluator
	balances    rotationBalanceLedger
	waitlist    rotationWaitlist
	rules       rotationRuleLoader
	notifier    rotationNotifier
	audit       rotationAuditLogger
	metrics     rotationMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewRotationService constructs a RotationService.
func NewRotationService(repo rotationRepository, events rotationEventReader, eligibility rotationEvaluator, balances rotationBalanceLedger, waitlist rotationWaitlist, rules rotationRuleLoader, notifier rotationNotifier, audit rotationAuditLogger, metrics rotationMetrics, validate *validator.Validate, logger *zap.Logger) *RotationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RotationService{
		repo:        repo,
		events:      events,
		eligibility: eligibility,
		balances:    balances,
		waitlist:    waitlist,
		rules:       rules,
		notifier:    notifier,
		audit:       audit,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Create requests a rotation slot. The verdict decides the created state:
// reasons park it PENDING for admin review, a full event queues it
// WAITLISTED, otherwise it lands APPROVED through the capacity-checked
// insert. Losing the capacity race demotes the request to the waiting list
// instead of failing it.
func (s *RotationService) Create(ctx context.Context, req dto.CreateRotationRequest, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rotation payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	userID := req.UserID
	if userID == "" {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may request on behalf of another member")
	}

	event, err := s.events.FindDetailByID(ctx, req.EventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	exists, err := s.repo.ExistsActive(ctx, userID, req.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing rotation")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active rotation for this event already exists")
	}

	verdict, err := s.eligibility.Evaluate(ctx, userID, req.EventID)
	if err != nil {
		return nil, err
	}

	rotation := &models.Rotation{
		UserID:   userID,
		EventID:  req.EventID,
		SeasonID: event.SeasonID,
		Status:   verdict.TargetStatus(),
		Type:     models.RotationVoluntary,
	}
	if len(verdict.Reasons) > 0 {
		reason := strings.Join(verdict.Reasons, "; ")
		rotation.Reason = &reason
	}

	switch rotation.Status {
	case models.RotationApproved:
		set, err := s.rules.Load(ctx)
		if err != nil {
			return nil, err
		}
		quota := EffectiveEventQuota(event, set.CupoDiario.Value)
		ok, err := s.repo.CreateIfUnderQuota(ctx, rotation, quota)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rotation")
		}
		if !ok {
			// Lost the last slot between evaluation and insert.
			rotation.Status = models.RotationWaitlisted
			verdict.Waitlisted = true
			if err := s.repo.Create(ctx, rotation); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rotation")
			}
			if err := s.waitlist.Enqueue(ctx, userID, req.EventID, event.SeasonID); err != nil {
				return nil, err
			}
		} else {
			if err := s.balances.RecordApproval(ctx, rotation, &event.Event); err != nil {
				s.logger.Warn("failed to record approval on balance", zap.String("rotation_id", rotation.ID), zap.Error(err))
			}
			if s.notifier != nil {
				s.notifier.RotationApproved(userID, req.EventID)
			}
		}
	case models.RotationWaitlisted:
		if err := s.repo.Create(ctx, rotation); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rotation")
		}
		if err := s.waitlist.Enqueue(ctx, userID, req.EventID, event.SeasonID); err != nil {
			return nil, err
		}
	default:
		if err := s.repo.Create(ctx, rotation); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rotation")
		}
	}

	if s.metrics != nil {
		s.metrics.RotationCreated(string(rotation.Status))
	}
	s.emitAudit(ctx, actor, models.AuditActionRotationCreate, rotation.ID)

	resp := dto.RotationFromModel(rotation, verdict)
	return &resp, nil
}

// Approve moves a PENDING (or waitlisted, or cancellation-pending) rotation
// to APPROVED. Approving a waitlisted rotation re-checks event capacity.
func (s *RotationService) Approve(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	rotation, event, err := s.loadRotation(ctx, rotationID)
	if err != nil {
		return nil, err
	}
	if !rotation.Status.CanTransition(models.RotationApproved) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "rotation cannot be approved from its current state")
	}

	if rotation.Status == models.RotationWaitlisted {
		set, err := s.rules.Load(ctx)
		if err != nil {
			return nil, err
		}
		quota := EffectiveEventQuota(event, set.CupoDiario.Value)
		ok, err := s.repo.PromoteIfUnderQuota(ctx, rotation.ID, rotation.EventID, quota)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve rotation")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "event is at capacity")
		}
		if err := s.waitlist.DeleteEntry(ctx, rotation.UserID, rotation.EventID); err != nil {
			s.logger.Warn("failed to drop waitlist entry after approval", zap.String("rotation_id", rotation.ID), zap.Error(err))
		}
	} else if err := s.repo.UpdateStatus(ctx, rotation.ID, models.RotationApproved, actorIDPtr(actor)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve rotation")
	}

	previous := rotation.Status
	rotation.Status = models.RotationApproved
	// CANCELLATION_PENDING -> APPROVED only denies the cancellation; the
	// ledger already counted the rotation.
	if previous != models.RotationCancellationPending {
		if err := s.balances.RecordApproval(ctx, rotation, &event.Event); err != nil {
			s.logger.Warn("failed to record approval on balance", zap.String("rotation_id", rotation.ID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.RotationApproved(rotation.UserID, rotation.EventID)
	}
	s.emitAudit(ctx, actor, models.AuditActionRotationApprove, rotation.ID)

	resp := dto.RotationFromModel(rotation, nil)
	return &resp, nil
}

// Reject refuses a PENDING rotation and promotes the slot it was holding.
func (s *RotationService) Reject(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	rotation, _, err := s.loadRotation(ctx, rotationID)
	if err != nil {
		return nil, err
	}
	if !rotation.Status.CanTransition(models.RotationRejected) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "rotation cannot be rejected from its current state")
	}
	if err := s.repo.UpdateStatus(ctx, rotation.ID, models.RotationRejected, actorIDPtr(actor)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject rotation")
	}
	rotation.Status = models.RotationRejected

	if _, err := s.waitlist.Promote(ctx, rotation.EventID); err != nil {
		s.logger.Warn("failed to promote after rejection", zap.String("event_id", rotation.EventID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.RotationRejected(rotation.UserID, rotation.EventID)
	}
	s.emitAudit(ctx, actor, models.AuditActionRotationReject, rotation.ID)

	resp := dto.RotationFromModel(rotation, nil)
	return &resp, nil
}

// Cancel releases a rotation. Non-admin cancellations inside the one-day
// window park the rotation CANCELLATION_PENDING for admin review; otherwise
// the row is removed, the ledger reverted and the freed slot promoted.
func (s *RotationService) Cancel(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.CancelRotationResponse, error) {
	rotation, event, err := s.loadRotation(ctx, rotationID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if rotation.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or an admin may cancel a rotation")
	}
	if rotation.Status == models.RotationCancelled || rotation.Status == models.RotationRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "rotation is already settled")
	}

	if !actor.IsAdmin() && rotation.Status == models.RotationApproved && s.withinCancellationWindow(event.Date) {
		if err := s.repo.UpdateStatus(ctx, rotation.ID, models.RotationCancellationPending, nil); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag cancellation")
		}
		s.emitAudit(ctx, actor, models.AuditActionRotationCancel, rotation.ID)
		return &dto.CancelRotationResponse{Status: models.RotationCancellationPending, PromotedEventIDs: []string{}}, nil
	}

	wasCounted := rotation.Status == models.RotationApproved || rotation.Status == models.RotationCancellationPending
	freesSlot := rotation.Status.IsActive()

	if rotation.Status == models.RotationWaitlisted {
		if err := s.waitlist.DeleteEntry(ctx, rotation.UserID, rotation.EventID); err != nil {
			s.logger.Warn("failed to drop waitlist entry on cancel", zap.String("rotation_id", rotation.ID), zap.Error(err))
		}
	}
	if err := s.repo.Delete(ctx, rotation.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel rotation")
	}
	if wasCounted {
		if err := s.balances.RecordRelease(ctx, rotation, &event.Event); err != nil {
			s.logger.Warn("failed to revert balance on cancel", zap.String("rotation_id", rotation.ID), zap.Error(err))
		}
	}

	promotedEventIDs := []string{}
	if freesSlot {
		promoted, err := s.waitlist.Promote(ctx, rotation.EventID)
		if err != nil {
			s.logger.Warn("failed to promote after cancellation", zap.String("event_id", rotation.EventID), zap.Error(err))
		} else if len(promoted) > 0 {
			promotedEventIDs = append(promotedEventIDs, rotation.EventID)
		}
	}
	s.emitAudit(ctx, actor, models.AuditActionRotationCancel, rotation.ID)

	return &dto.CancelRotationResponse{Status: models.RotationCancelled, PromotedEventIDs: promotedEventIDs}, nil
}

// AssignMandatory force-creates an APPROVED mandatory rotation. The admin
// path skips eligibility entirely and may exceed the seasonal maximum.
func (s *RotationService) AssignMandatory(ctx context.Context, req dto.MandatoryRotationRequest, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	event, err := s.events.FindDetailByID(ctx, req.EventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	exists, err := s.repo.ExistsActive(ctx, req.UserID, req.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing rotation")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active rotation for this event already exists")
	}

	rotation := &models.Rotation{
		UserID:     req.UserID,
		EventID:    req.EventID,
		SeasonID:   event.SeasonID,
		Status:     models.RotationApproved,
		Type:       models.RotationMandatory,
		Reason:     req.Reason,
		AssignedBy: actorIDPtr(actor),
	}
	if err := s.repo.Create(ctx, rotation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign rotation")
	}
	if err := s.balances.RecordApproval(ctx, rotation, &event.Event); err != nil {
		s.logger.Warn("failed to record mandatory assignment on balance", zap.String("rotation_id", rotation.ID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RotationCreated(string(rotation.Status))
	}
	if s.notifier != nil {
		s.notifier.RotationApproved(req.UserID, req.EventID)
	}
	s.emitAudit(ctx, actor, models.AuditActionMandatoryAssign, rotation.ID)

	resp := dto.RotationFromModel(rotation, nil)
	return &resp, nil
}

func (s *RotationService) loadRotation(ctx context.Context, id string) (*models.Rotation, *models.EventDetail, error) {
	rotation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "rotation not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotation")
	}
	event, err := s.events.FindDetailByID(ctx, rotation.EventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return rotation, event, nil
}

// withinCancellationWindow reports whether the event starts today or
// tomorrow relative to the clock.
func (s *RotationService) withinCancellationWindow(eventDate time.Time) bool {
	today := truncateToDay(s.now())
	eventDay := truncateToDay(eventDate)
	diff := int(eventDay.Sub(today).Hours() / 24)
	return diff <= 1
}

func (s *RotationService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, rotationID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     actorIDPtr(actor),
		Action:     action,
		Resource:   "rotation",
		ResourceID: &rotationID,
		IPAddress:  "system",
		UserAgent:  "rotation-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record rotation audit", zap.Error(err))
	}
}
