package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type rotationRepoStub struct {
	rotation    *models.Rotation
	exists      bool
	underQuota  bool
	promoteOK   bool
	created     []*models.Rotation
	deleted     []string
	transitions []models.RotationStatus
}

func (s *rotationRepoStub) FindByID(ctx context.Context, id string) (*models.Rotation, error) {
	if s.rotation == nil {
		return nil, sql.ErrNoRows
	}
	rot := *s.rotation
	return &rot, nil
}

func (s *rotationRepoStub) ExistsActive(ctx context.Context, userID, eventID string) (bool, error) {
	return s.exists, nil
}

func (s *rotationRepoStub) Create(ctx context.Context, rotation *models.Rotation) error {
	rotation.ID = "rot-created"
	s.created = append(s.created, rotation)
	return nil
}

func (s *rotationRepoStub) CreateIfUnderQuota(ctx context.Context, rotation *models.Rotation, quota int) (bool, error) {
	if !s.underQuota {
		return false, nil
	}
	rotation.ID = "rot-created"
	s.created = append(s.created, rotation)
	return true, nil
}

func (s *rotationRepoStub) PromoteIfUnderQuota(ctx context.Context, rotationID, eventID string, quota int) (bool, error) {
	return s.promoteOK, nil
}

func (s *rotationRepoStub) UpdateStatus(ctx context.Context, id string, status models.RotationStatus, actorID *string) error {
	s.transitions = append(s.transitions, status)
	return nil
}

func (s *rotationRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type singleEventReaderStub struct {
	event *models.EventDetail
}

func (s singleEventReaderStub) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	if s.event == nil {
		return nil, sql.ErrNoRows
	}
	return s.event, nil
}

type evaluatorStub struct {
	verdict *models.Verdict
}

func (s evaluatorStub) Evaluate(ctx context.Context, userID, eventID string) (*models.Verdict, error) {
	return s.verdict, nil
}

type ledgerStub struct {
	approvals int
	releases  int
}

func (s *ledgerStub) RecordApproval(ctx context.Context, rotation *models.Rotation, event *models.Event) error {
	s.approvals++
	return nil
}

func (s *ledgerStub) RecordRelease(ctx context.Context, rotation *models.Rotation, event *models.Event) error {
	s.releases++
	return nil
}

type waitlistStub struct {
	enqueued []string
	dropped  []string
	promoted []string
	promotes int
}

func (s *waitlistStub) Enqueue(ctx context.Context, userID, eventID, seasonID string) error {
	s.enqueued = append(s.enqueued, eventID)
	return nil
}

func (s *waitlistStub) DeleteEntry(ctx context.Context, userID, eventID string) error {
	s.dropped = append(s.dropped, eventID)
	return nil
}

func (s *waitlistStub) Promote(ctx context.Context, eventID string) ([]string, error) {
	s.promotes++
	return s.promoted, nil
}

func futureEvent() *models.EventDetail {
	return &models.EventDetail{Event: models.Event{
		ID:       "event-1",
		SeasonID: "season-1",
		Date:     time.Date(2026, 5, 20, 20, 0, 0, 0, time.UTC),
		Kind:     models.EventFuncion,
	}}
}

func newRotationFixture(repo *rotationRepoStub, verdict *models.Verdict, ledger *ledgerStub, waitlist *waitlistStub) *RotationService {
	svc := NewRotationService(
		repo,
		singleEventReaderStub{event: futureEvent()},
		evaluatorStub{verdict: verdict},
		ledger,
		waitlist,
		ruleLoaderStub{set: models.DefaultRuleSet()},
		nil, nil, nil, nil, nil,
	)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func memberClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleMusico}
}

func TestRotationCreateApproved(t *testing.T) {
	repo := &rotationRepoStub{underQuota: true}
	ledger := &ledgerStub{}
	svc := newRotationFixture(repo, &models.Verdict{Reasons: []string{}}, ledger, &waitlistStub{})

	res, err := svc.Create(context.Background(), dto.CreateRotationRequest{EventID: "3b241101-e2bb-4255-8caf-4136c566a962"}, memberClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RotationApproved, res.Status)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, 1, ledger.approvals)
}

func TestRotationCreateLostRaceDemotesToWaitlist(t *testing.T) {
	repo := &rotationRepoStub{underQuota: false}
	waitlist := &waitlistStub{}
	svc := newRotationFixture(repo, &models.Verdict{Reasons: []string{}}, &ledgerStub{}, waitlist)

	res, err := svc.Create(context.Background(), dto.CreateRotationRequest{EventID: "3b241101-e2bb-4255-8caf-4136c566a962"}, memberClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RotationWaitlisted, res.Status)
	assert.True(t, res.Verdict.Waitlisted)
	assert.Len(t, waitlist.enqueued, 1)
}

func TestRotationCreateWithReasonsParksPending(t *testing.T) {
	repo := &rotationRepoStub{}
	svc := newRotationFixture(repo, &models.Verdict{Reasons: []string{"projected seasonal max exceeded (51/50)"}}, &ledgerStub{}, &waitlistStub{})

	res, err := svc.Create(context.Background(), dto.CreateRotationRequest{EventID: "3b241101-e2bb-4255-8caf-4136c566a962"}, memberClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RotationPending, res.Status)
	require.NotNil(t, res.Reason)
	assert.Contains(t, *res.Reason, "51/50")
}

func TestRotationCreateOnBehalfRequiresAdmin(t *testing.T) {
	svc := newRotationFixture(&rotationRepoStub{}, &models.Verdict{}, &ledgerStub{}, &waitlistStub{})

	_, err := svc.Create(context.Background(), dto.CreateRotationRequest{
		UserID:  "e58ed763-928c-4155-bee9-fdbaaadc15f3",
		EventID: "3b241101-e2bb-4255-8caf-4136c566a962",
	}, memberClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRotationCreateDuplicateConflicts(t *testing.T) {
	svc := newRotationFixture(&rotationRepoStub{exists: true}, &models.Verdict{}, &ledgerStub{}, &waitlistStub{})

	_, err := svc.Create(context.Background(), dto.CreateRotationRequest{EventID: "3b241101-e2bb-4255-8caf-4136c566a962"}, memberClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRotationApproveWaitlistedAtCapacity(t *testing.T) {
	repo := &rotationRepoStub{
		rotation:  &models.Rotation{ID: "rot-1", UserID: "user-1", EventID: "event-1", Status: models.RotationWaitlisted},
		promoteOK: false,
	}
	svc := newRotationFixture(repo, nil, &ledgerStub{}, &waitlistStub{})

	_, err := svc.Approve(context.Background(), "rot-1", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRotationApproveCancellationPendingSkipsLedger(t *testing.T) {
	repo := &rotationRepoStub{
		rotation: &models.Rotation{ID: "rot-1", UserID: "user-1", EventID: "event-1", Status: models.RotationCancellationPending},
	}
	ledger := &ledgerStub{}
	svc := newRotationFixture(repo, nil, ledger, &waitlistStub{})

	res, err := svc.Approve(context.Background(), "rot-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RotationApproved, res.Status)
	assert.Zero(t, ledger.approvals)
}

func TestRotationCancelReleasesAndPromotes(t *testing.T) {
	repo := &rotationRepoStub{
		rotation: &models.Rotation{ID: "rot-1", UserID: "user-1", EventID: "event-1", SeasonID: "season-1", Status: models.RotationApproved},
	}
	ledger := &ledgerStub{}
	waitlist := &waitlistStub{promoted: []string{"user-2"}}
	svc := newRotationFixture(repo, nil, ledger, waitlist)

	res, err := svc.Cancel(context.Background(), "rot-1", memberClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RotationCancelled, res.Status)
	assert.Equal(t, []string{"event-1"}, res.PromotedEventIDs)
	assert.Equal(t, 1, ledger.releases)
	assert.Equal(t, []string{"rot-1"}, repo.deleted)
}

func TestRotationCancelInsideWindowParksPending(t *testing.T) {
	repo := &rotationRepoStub{
		rotation: &models.Rotation{ID: "rot-1", UserID: "user-1", EventID: "event-1", Status: models.RotationApproved},
	}
	waitlist := &waitlistStub{}
	svc := newRotationFixture(repo, nil, &ledgerStub{}, waitlist)
	svc.now = func() time.Time { return time.Date(2026, 5, 19, 22, 0, 0, 0, time.UTC) } // day before the event

	res, err := svc.Cancel(context.Background(), "rot-1", memberClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RotationCancellationPending, res.Status)
	assert.Empty(t, repo.deleted)
	assert.Zero(t, waitlist.promotes)
}

func TestRotationCancelInsideWindowAdminDeletesAnyway(t *testing.T) {
	repo := &rotationRepoStub{
		rotation: &models.Rotation{ID: "rot-1", UserID: "user-1", EventID: "event-1", Status: models.RotationApproved},
	}
	ledger := &ledgerStub{}
	svc := newRotationFixture(repo, nil, ledger, &waitlistStub{})
	svc.now = func() time.Time { return time.Date(2026, 5, 19, 22, 0, 0, 0, time.UTC) }

	res, err := svc.Cancel(context.Background(), "rot-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RotationCancelled, res.Status)
	assert.Equal(t, 1, ledger.releases)
}

func TestRotationCancelWaitlistedDropsEntry(t *testing.T) {
	repo := &rotationRepoStub{
		rotation: &models.Rotation{ID: "rot-1", UserID: "user-1", EventID: "event-1", Status: models.RotationWaitlisted},
	}
	ledger := &ledgerStub{}
	waitlist := &waitlistStub{}
	svc := newRotationFixture(repo, nil, ledger, waitlist)

	res, err := svc.Cancel(context.Background(), "rot-1", memberClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RotationCancelled, res.Status)
	assert.Equal(t, []string{"event-1"}, waitlist.dropped)
	assert.Zero(t, ledger.releases)
	assert.Zero(t, waitlist.promotes)
}

func TestRotationCancelByStrangerForbidden(t *testing.T) {
	repo := &rotationRepoStub{
		rotation: &models.Rotation{ID: "rot-1", UserID: "user-1", EventID: "event-1", Status: models.RotationApproved},
	}
	svc := newRotationFixture(repo, nil, &ledgerStub{}, &waitlistStub{})

	_, err := svc.Cancel(context.Background(), "rot-1", memberClaims("user-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRotationAssignMandatoryBypassesEligibility(t *testing.T) {
	repo := &rotationRepoStub{}
	ledger := &ledgerStub{}
	svc := newRotationFixture(repo, nil, ledger, &waitlistStub{})

	res, err := svc.AssignMandatory(context.Background(), dto.MandatoryRotationRequest{
		UserID:  "e58ed763-928c-4155-bee9-fdbaaadc15f3",
		EventID: "3b241101-e2bb-4255-8caf-4136c566a962",
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RotationApproved, res.Status)
	assert.Equal(t, models.RotationMandatory, res.Type)
	assert.Equal(t, 1, ledger.approvals)
	require.Len(t, repo.created, 1)
	require.NotNil(t, repo.created[0].AssignedBy)
	assert.Equal(t, "admin-1", *repo.created[0].AssignedBy)
}
