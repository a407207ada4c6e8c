package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type blockRepository interface {
	FindByID(ctx context.Context, id string) (*models.Block, error)
	Create(ctx context.Context, block *models.Block) error
	UpdateStatus(ctx context.Context, id string, status models.BlockStatus, clearUser bool) error
	CountActiveByTituloExcludingUser(ctx context.Context, tituloID, userID string) (int, error)
	CountActiveByUserSeason(ctx context.Context, userID, seasonID string) (int, error)
	ListGhosts(ctx context.Context, seasonID string) ([]models.Block, error)
}

type blockTituloReader interface {
	FindByID(ctx context.Context, id string) (*models.Titulo, error)
}

type blockEventReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error)
	ListByTitulo(ctx context.Context, tituloID string) ([]models.EventDetail, error)
}

type blockRotationStore interface {
	Create(ctx context.Context, rotation *models.Rotation) error
	UpdateStatus(ctx context.Context, id string, status models.RotationStatus, actorID *string) error
	Delete(ctx context.Context, id string) error
	CountActiveByEvent(ctx context.Context, eventID string) (int, error)
	CountActiveByUserSeason(ctx context.Context, userID, seasonID string) (int, error)
	ListActiveByBlock(ctx context.Context, blockID string) ([]models.Rotation, error)
	ListActiveEventIDsByUserTitulo(ctx context.Context, userID, tituloID string) ([]string, error)
}

type blockBalanceSource interface {
	GetOrCreate(ctx context.Context, userID, seasonID string) (*models.Balance, error)
	EffectiveMax(ctx context.Context, balance *models.Balance) (int, error)
	RecordApproval(ctx context.Context, rotation *models.Rotation, event *models.Event) error
	RecordRelease(ctx context.Context, rotation *models.Rotation, event *models.Event) error
	MarkBlockUsed(ctx context.Context, userID, seasonID string) error
	ClearBlockUsed(ctx context.Context, userID, seasonID string) error
}

type blockRuleLoader interface {
	Load(ctx context.Context) (models.RuleSet, error)
}

type blockWaitlist interface {
	Promote(ctx context.Context, eventID string) ([]string, error)
}

type blockNotifier interface {
	BlockCancelled(userID, blockID string)
}

type blockAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type blockMetrics interface {
	BlockRequested()
}

// BlockService handles whole-title rotation blocks: requesting every
// still-uncovered event of a title at once, admin approval, cancellation as
// a unit and the ghost-block sweep.
type BlockService struct {
	repo      blockRepository
	titulos   blockTituloReader
	events    blockEventReader
	rotations blockRotationStore
	balances  blockBalanceSource
	rules     blockRuleLoader
	waitlist  blockWaitlist
	notifier  blockNotifier
	audit     blockAuditLogger
	metrics   blockMetrics
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBlockService constructs a BlockService.
func NewBlockService(repo blockRepository, titulos blockTituloReader, events blockEventReader, rotations blockRotationStore, balances blockBalanceSource, rules blockRuleLoader, waitlist blockWaitlist, notifier blockNotifier, audit blockAuditLogger, metrics blockMetrics, validate *validator.Validate, logger *zap.Logger) *BlockService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockService{
		repo:      repo,
		titulos:   titulos,
		events:    events,
		rotations: rotations,
		balances:  balances,
		rules:     rules,
		waitlist:  waitlist,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Request evaluates and (unless validateOnly) creates a block over the
// title's events the user does not already hold. Every verdict flag is
// advisory: the block is still created SOLICITADO with PENDING rotations and
// the accumulated reasons as its justification. Only an empty title or a
// fully covered one stops the request.
func (s *BlockService) Request(ctx context.Context, req dto.RequestBlockPayload, actor *models.JWTClaims) (*dto.BlockResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	userID := actor.UserID

	titulo, err := s.titulos.FindByID(ctx, req.TituloID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "titulo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load titulo")
	}
	events, err := s.events.ListByTitulo(ctx, req.TituloID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load titulo events")
	}
	if len(events) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "titulo has no events")
	}

	held, err := s.rotations.ListActiveEventIDsByUserTitulo(ctx, userID, req.TituloID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load held events")
	}
	heldSet := make(map[string]struct{}, len(held))
	for _, id := range held {
		heldSet[id] = struct{}{}
	}
	toRequest := make([]models.EventDetail, 0, len(events))
	for _, ev := range events {
		if _, ok := heldSet[ev.ID]; !ok {
			toRequest = append(toRequest, ev)
		}
	}
	if len(toRequest) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "all events of this titulo are already covered")
	}

	verdict, err := s.evaluate(ctx, userID, titulo, toRequest)
	if err != nil {
		return nil, err
	}

	if req.ValidateOnly {
		return &dto.BlockResponse{TituloID: req.TituloID, SeasonID: titulo.SeasonID, Verdict: verdict}, nil
	}

	block := &models.Block{
		UserID:   &userID,
		TituloID: req.TituloID,
		SeasonID: titulo.SeasonID,
		Status:   models.BlockSolicitado,
	}
	if len(verdict.Reasons) > 0 {
		reason := strings.Join(verdict.Reasons, "; ")
		block.Reason = &reason
	}
	if err := s.repo.Create(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create block")
	}

	for _, ev := range toRequest {
		rotation := &models.Rotation{
			UserID:   userID,
			EventID:  ev.ID,
			SeasonID: titulo.SeasonID,
			Status:   models.RotationPending,
			Type:     models.RotationVoluntary,
			BlockID:  &block.ID,
			Reason:   block.Reason,
		}
		if err := s.rotations.Create(ctx, rotation); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create block rotation")
		}
	}

	if s.metrics != nil {
		s.metrics.BlockRequested()
	}
	s.emitAudit(ctx, actor, models.AuditActionBlockRequest, block.ID)

	return &dto.BlockResponse{
		ID:        block.ID,
		UserID:    block.UserID,
		TituloID:  block.TituloID,
		SeasonID:  block.SeasonID,
		Status:    block.Status,
		Reason:    block.Reason,
		CreatedAt: block.CreatedAt,
		Verdict:   verdict,
	}, nil
}

// evaluate builds the advisory verdict for a prospective block.
func (s *BlockService) evaluate(ctx context.Context, userID string, titulo *models.Titulo, toRequest []models.EventDetail) (*models.BlockVerdict, error) {
	seasonID := titulo.SeasonID
	set, err := s.rules.Load(ctx)
	if err != nil {
		return nil, err
	}
	verdict := &models.BlockVerdict{Reasons: []string{}, EventsToRequest: make([]string, 0, len(toRequest))}
	for _, ev := range toRequest {
		verdict.EventsToRequest = append(verdict.EventsToRequest, ev.ID)
	}

	balance, err := s.balances.GetOrCreate(ctx, userID, seasonID)
	if err != nil {
		return nil, err
	}
	if balance.BlockUsed {
		verdict.Reasons = append(verdict.Reasons, "exclusive block already used this season")
	}

	others, err := s.repo.CountActiveByTituloExcludingUser(ctx, titulo.ID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count titulo blocks")
	}
	tituloQuota := set.CupoDiario.Value.QuotaFor(models.EventFuncion, titulo.Type, false)
	if titulo.DefaultQuota != nil {
		tituloQuota = *titulo.DefaultQuota
	}
	if others >= tituloQuota {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("titulo block quota reached by other members (%d/%d)", others, tituloQuota))
	}

	maxEfectivo, err := s.balances.EffectiveMax(ctx, balance)
	if err != nil {
		return nil, err
	}
	count, err := s.rotations.CountActiveByUserSeason(ctx, userID, seasonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count season rotations")
	}
	prospective := float64(count+len(toRequest)) + balance.LicenseCredit
	if prospective > float64(maxEfectivo) {
		display := int(math.Floor(prospective))
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("projected seasonal max would be exceeded (%d/%d)", display, maxEfectivo))
	}

	for _, ev := range toRequest {
		quota := EffectiveEventQuota(&ev, set.CupoDiario.Value)
		occupied, err := s.rotations.CountActiveByEvent(ctx, ev.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count event rotations")
		}
		if occupied >= quota {
			verdict.UnavailableEventIDs = append(verdict.UnavailableEventIDs, ev.ID)
		}
	}
	if len(verdict.UnavailableEventIDs) > 0 {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("%d event(s) of the titulo are at capacity", len(verdict.UnavailableEventIDs)))
	}

	verdict.RequiresApproval = true // blocks always need admin review
	return verdict, nil
}

// Approve moves the block and its pending rotations to approved state and
// consumes the member's exclusive block for the season.
func (s *BlockService) Approve(ctx context.Context, blockID string, actor *models.JWTClaims) (*dto.BlockResponse, error) {
	block, err := s.loadBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if !block.Status.CanTransition(models.BlockAprobado) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "block cannot be approved from its current state")
	}

	rotations, err := s.rotations.ListActiveByBlock(ctx, blockID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load block rotations")
	}
	for i := range rotations {
		rotation := &rotations[i]
		if rotation.Status != models.RotationPending {
			continue
		}
		if err := s.rotations.UpdateStatus(ctx, rotation.ID, models.RotationApproved, actorIDPtr(actor)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve block rotation")
		}
		rotation.Status = models.RotationApproved
		s.recordApproval(ctx, rotation)
	}

	if err := s.repo.UpdateStatus(ctx, blockID, models.BlockAprobado, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve block")
	}
	block.Status = models.BlockAprobado
	if block.UserID != nil {
		if err := s.balances.MarkBlockUsed(ctx, *block.UserID, block.SeasonID); err != nil {
			s.logger.Warn("failed to mark block used", zap.String("block_id", blockID), zap.Error(err))
		}
	}
	s.emitAudit(ctx, actor, models.AuditActionBlockApprove, blockID)

	return blockResponse(block), nil
}

// Cancel releases the whole block. Rotations whose event starts today or
// tomorrow are parked CANCELLATION_PENDING unless an admin cancels; freed
// events each run a promotion pass. The block only reaches CANCELADO once no
// rotation remains active.
func (s *BlockService) Cancel(ctx context.Context, blockID string, actor *models.JWTClaims) (*dto.BlockResponse, []string, error) {
	block, err := s.loadBlock(ctx, blockID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() && (block.UserID == nil || *block.UserID != actor.UserID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or an admin may cancel a block")
	}
	if !block.Status.IsActive() {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidTransition, "block is already settled")
	}

	rotations, err := s.rotations.ListActiveByBlock(ctx, blockID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load block rotations")
	}

	promotedEventIDs := []string{}
	parked := 0
	for i := range rotations {
		rotation := &rotations[i]
		event, err := s.eventOf(ctx, rotation.EventID)
		if err != nil {
			return nil, nil, err
		}
		if !actor.IsAdmin() && rotation.Status == models.RotationApproved && s.withinWindow(event.Date) {
			if err := s.rotations.UpdateStatus(ctx, rotation.ID, models.RotationCancellationPending, nil); err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag block cancellation")
			}
			parked++
			continue
		}

		wasCounted := rotation.Status == models.RotationApproved || rotation.Status == models.RotationCancellationPending
		if err := s.rotations.Delete(ctx, rotation.ID); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel block rotation")
		}
		if wasCounted {
			if err := s.balances.RecordRelease(ctx, rotation, event); err != nil {
				s.logger.Warn("failed to revert balance on block cancel", zap.String("rotation_id", rotation.ID), zap.Error(err))
			}
		}
		promoted, err := s.waitlist.Promote(ctx, rotation.EventID)
		if err != nil {
			s.logger.Warn("failed to promote after block cancel", zap.String("event_id", rotation.EventID), zap.Error(err))
		} else if len(promoted) > 0 {
			promotedEventIDs = append(promotedEventIDs, rotation.EventID)
		}
	}

	if parked == 0 {
		if err := s.repo.UpdateStatus(ctx, blockID, models.BlockCancelado, false); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel block")
		}
		block.Status = models.BlockCancelado
		if block.UserID != nil {
			if err := s.balances.ClearBlockUsed(ctx, *block.UserID, block.SeasonID); err != nil {
				s.logger.Warn("failed to clear block used", zap.String("block_id", blockID), zap.Error(err))
			}
			if s.notifier != nil {
				s.notifier.BlockCancelled(*block.UserID, blockID)
			}
		}
	}
	s.emitAudit(ctx, actor, models.AuditActionBlockCancel, blockID)

	return blockResponse(block), promotedEventIDs, nil
}

// SweepGhosts cancels active blocks that no longer hold any slot-consuming
// rotation. Safe to run repeatedly; a second pass over unchanged data finds
// nothing.
func (s *BlockService) SweepGhosts(ctx context.Context, seasonID string, actor *models.JWTClaims) (*dto.SweepResponse, error) {
	ghosts, err := s.repo.ListGhosts(ctx, seasonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ghost blocks")
	}

	cancelled := make([]string, 0, len(ghosts))
	for i := range ghosts {
		ghost := &ghosts[i]
		if err := s.repo.UpdateStatus(ctx, ghost.ID, models.BlockCancelado, true); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel ghost block")
		}
		if ghost.UserID != nil {
			remaining, err := s.repo.CountActiveByUserSeason(ctx, *ghost.UserID, ghost.SeasonID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count remaining blocks")
			}
			// The ghost itself is already cancelled, so any count means
			// another live block still consumes the flag.
			if remaining == 0 {
				if err := s.balances.ClearBlockUsed(ctx, *ghost.UserID, ghost.SeasonID); err != nil {
					s.logger.Warn("failed to clear block used on sweep", zap.String("block_id", ghost.ID), zap.Error(err))
				}
			}
		}
		cancelled = append(cancelled, ghost.ID)
	}
	if len(cancelled) > 0 {
		s.emitAudit(ctx, actor, models.AuditActionBlockSweep, seasonID)
	}
	return &dto.SweepResponse{CancelledBlockIDs: cancelled}, nil
}

func (s *BlockService) loadBlock(ctx context.Context, id string) (*models.Block, error) {
	block, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "block not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load block")
	}
	return block, nil
}

func (s *BlockService) eventOf(ctx context.Context, eventID string) (*models.Event, error) {
	detail, err := s.events.FindDetailByID(ctx, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return &detail.Event, nil
}

func (s *BlockService) recordApproval(ctx context.Context, rotation *models.Rotation) {
	event, err := s.eventOf(ctx, rotation.EventID)
	if err != nil || event == nil {
		s.logger.Warn("failed to load event for block approval", zap.String("rotation_id", rotation.ID))
		return
	}
	if err := s.balances.RecordApproval(ctx, rotation, event); err != nil {
		s.logger.Warn("failed to record block approval on balance", zap.String("rotation_id", rotation.ID), zap.Error(err))
	}
}

func (s *BlockService) withinWindow(eventDate time.Time) bool {
	today := truncateToDay(s.now())
	eventDay := truncateToDay(eventDate)
	diff := int(eventDay.Sub(today).Hours() / 24)
	return diff <= 1
}

func (s *BlockService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     actorIDPtr(actor),
		Action:     action,
		Resource:   "block",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "block-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record block audit", zap.Error(err))
	}
}

func blockResponse(block *models.Block) *dto.BlockResponse {
	return &dto.BlockResponse{
		ID:        block.ID,
		UserID:    block.UserID,
		TituloID:  block.TituloID,
		SeasonID:  block.SeasonID,
		Status:    block.Status,
		Reason:    block.Reason,
		CreatedAt: block.CreatedAt,
	}
}
