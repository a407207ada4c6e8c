package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type waitlistRepository interface {
	Enqueue(ctx context.Context, entry *models.WaitlistEntry) error
	Head(ctx context.Context, eventID string) (*models.WaitlistEntry, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.WaitlistEntry, error)
	ExistsForUserEvent(ctx context.Context, userID, eventID string) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserEvent(ctx context.Context, userID, eventID string) error
	PurgeSeason(ctx context.Context, seasonID string) (int, error)
}

type waitlistRotationStore interface {
	CountActiveByEvent(ctx context.Context, eventID string) (int, error)
	FindWaitlistedByUserEvent(ctx context.Context, userID, eventID string) (*models.Rotation, error)
	PromoteIfUnderQuota(ctx context.Context, rotationID, eventID string, quota int) (bool, error)
}

type waitlistEventReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error)
}

type waitlistBalanceLedger interface {
	RecordApproval(ctx context.Context, rotation *models.Rotation, event *models.Event) error
}

type waitlistRuleLoader interface {
	Load(ctx context.Context) (models.RuleSet, error)
}

type waitlistMutex interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

type waitlistNotifier interface {
	WaitlistPromoted(userID, eventID string)
}

type waitlistAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type waitlistMetrics interface {
	PromotionRecorded()
}

// WaitlistService maintains per-event FIFO queues and promotes entries into
// freed slots. Promotion for one event is serialized by a distributed mutex
// so a single freed slot can never promote two members.
type WaitlistService struct {
	repo      waitlistRepository
	rotations waitlistRotationStore
	events    waitlistEventReader
	balances  waitlistBalanceLedger
	rules     waitlistRuleLoader
	mutex     waitlistMutex
	notifier  waitlistNotifier
	audit     waitlistAuditLogger
	metrics   waitlistMetrics
	logger    *zap.Logger
}

// NewWaitlistService constructs a WaitlistService.
func NewWaitlistService(repo waitlistRepository, rotations waitlistRotationStore, events waitlistEventReader, balances waitlistBalanceLedger, rules waitlistRuleLoader, mutex waitlistMutex, notifier waitlistNotifier, audit waitlistAuditLogger, metrics waitlistMetrics, logger *zap.Logger) *WaitlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{
		repo:      repo,
		rotations: rotations,
		events:    events,
		balances:  balances,
		rules:     rules,
		mutex:     mutex,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
	}
}

// Enqueue appends the user to the event's queue unless already present.
func (s *WaitlistService) Enqueue(ctx context.Context, userID, eventID, seasonID string) error {
	exists, err := s.repo.ExistsForUserEvent(ctx, userID, eventID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check waitlist")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "user already on the waiting list for this event")
	}
	entry := &models.WaitlistEntry{UserID: userID, EventID: eventID, SeasonID: seasonID}
	if err := s.repo.Enqueue(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue waitlist entry")
	}
	return nil
}

// DeleteEntry drops the user's queue position for the event, if any.
func (s *WaitlistService) DeleteEntry(ctx context.Context, userID, eventID string) error {
	if err := s.repo.DeleteByUserEvent(ctx, userID, eventID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete waitlist entry")
	}
	return nil
}

// Promote fills freed capacity on the event from the head of its queue.
// It loops while slots remain and the queue is non-empty; an empty queue is a
// no-op. Returns the user IDs promoted.
func (s *WaitlistService) Promote(ctx context.Context, eventID string) ([]string, error) {
	release, err := s.mutex.Acquire(ctx, "waitlist:promote:"+eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire promotion lock")
	}
	defer release()

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
	quota := EffectiveEventQuota(event, set.CupoDiario.Value)

	promoted := []string{}
	for {
		count, err := s.rotations.CountActiveByEvent(ctx, eventID)
		if err != nil {
			return promoted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count event rotations")
		}
		if count >= quota {
			break
		}
		head, err := s.repo.Head(ctx, eventID)
		if err != nil {
			if err == sql.ErrNoRows {
				break
			}
			return promoted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read waitlist head")
		}

		rotation, err := s.rotations.FindWaitlistedByUserEvent(ctx, head.UserID, eventID)
		if err != nil {
			if err == sql.ErrNoRows {
				// Orphaned entry: the waitlisted rotation is gone. Drop it
				// and keep draining.
				if err := s.repo.Delete(ctx, head.ID); err != nil {
					return promoted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop orphaned entry")
				}
				continue
			}
			return promoted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlisted rotation")
		}

		ok, err := s.rotations.PromoteIfUnderQuota(ctx, rotation.ID, eventID, quota)
		if err != nil {
			return promoted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote rotation")
		}
		if !ok {
			break
		}
		if err := s.repo.Delete(ctx, head.ID); err != nil {
			return promoted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dequeue entry")
		}

		rotation.Status = models.RotationApproved
		if err := s.balances.RecordApproval(ctx, rotation, &event.Event); err != nil {
			// The promotion stands; the ledger repair is a follow-up concern.
			s.logger.Warn("failed to record promotion on balance",
				zap.String("user_id", head.UserID), zap.Error(err))
		}

		promoted = append(promoted, head.UserID)
		if s.metrics != nil {
			s.metrics.PromotionRecorded()
		}
		if s.notifier != nil {
			s.notifier.WaitlistPromoted(head.UserID, eventID)
		}
		s.emitPromoteAudit(ctx, head.UserID, eventID)
	}
	return promoted, nil
}

// ListByEvent returns the queue in promotion order.
func (s *WaitlistService) ListByEvent(ctx context.Context, eventID string) (*dto.WaitlistResponse, error) {
	if _, err := s.events.FindDetailByID(ctx, eventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	entries, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	resp := dto.WaitlistFromModels(eventID, entries)
	return &resp, nil
}

// PurgeSeason drops every queue entry of a season. Waiting positions never
// carry over to the next season.
func (s *WaitlistService) PurgeSeason(ctx context.Context, seasonID string, actor *models.JWTClaims) (int, error) {
	removed, err := s.repo.PurgeSeason(ctx, seasonID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge season waitlist")
	}
	s.emitPurgeAudit(ctx, actor, seasonID, removed)
	return removed, nil
}

func (s *WaitlistService) emitPromoteAudit(ctx context.Context, userID, eventID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionWaitlistPromote,
		Resource:   "waitlist",
		ResourceID: &eventID,
		IPAddress:  "system",
		UserAgent:  "waitlist-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record promotion audit", zap.Error(err))
	}
}

func (s *WaitlistService) emitPurgeAudit(ctx context.Context, actor *models.JWTClaims, seasonID string, removed int) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     actorIDPtr(actor),
		Action:     models.AuditActionWaitlistPurge,
		Resource:   "season",
		ResourceID: &seasonID,
		IPAddress:  "system",
		UserAgent:  "waitlist-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record purge audit", zap.Error(err), zap.Int("removed", removed))
	}
}
