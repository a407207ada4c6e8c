package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type waitlistRepoStub struct {
	entries []models.WaitlistEntry
	exists  bool
	purged  int
}

func (s *waitlistRepoStub) Enqueue(ctx context.Context, entry *models.WaitlistEntry) error {
	entry.ID = "wl-created"
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *waitlistRepoStub) Head(ctx context.Context, eventID string) (*models.WaitlistEntry, error) {
	if len(s.entries) == 0 {
		return nil, sql.ErrNoRows
	}
	head := s.entries[0]
	return &head, nil
}

func (s *waitlistRepoStub) ListByEvent(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	return s.entries, nil
}

func (s *waitlistRepoStub) ExistsForUserEvent(ctx context.Context, userID, eventID string) (bool, error) {
	return s.exists, nil
}

func (s *waitlistRepoStub) Delete(ctx context.Context, id string) error {
	for i, entry := range s.entries {
		if entry.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *waitlistRepoStub) DeleteByUserEvent(ctx context.Context, userID, eventID string) error {
	for i, entry := range s.entries {
		if entry.UserID == userID && entry.EventID == eventID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *waitlistRepoStub) PurgeSeason(ctx context.Context, seasonID string) (int, error) {
	s.purged = len(s.entries)
	s.entries = nil
	return s.purged, nil
}

type promotionStoreStub struct {
	count      int
	rotations  map[string]*models.Rotation
	promotions []string
}

func (s *promotionStoreStub) CountActiveByEvent(ctx context.Context, eventID string) (int, error) {
	return s.count, nil
}

func (s *promotionStoreStub) FindWaitlistedByUserEvent(ctx context.Context, userID, eventID string) (*models.Rotation, error) {
	rotation, ok := s.rotations[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rotation, nil
}

func (s *promotionStoreStub) PromoteIfUnderQuota(ctx context.Context, rotationID, eventID string, quota int) (bool, error) {
	if s.count >= quota {
		return false, nil
	}
	s.count++
	s.promotions = append(s.promotions, rotationID)
	return true, nil
}

type mutexStub struct {
	acquired int
}

func (s *mutexStub) Acquire(ctx context.Context, name string) (func(), error) {
	s.acquired++
	return func() {}, nil
}

func eventWithQuota(quota int) *models.EventDetail {
	event := futureEvent()
	event.QuotaOverride = &quota
	return event
}

func newWaitlistFixture(repo *waitlistRepoStub, store *promotionStoreStub, event *models.EventDetail, ledger *ledgerStub) (*WaitlistService, *mutexStub) {
	mutex := &mutexStub{}
	svc := NewWaitlistService(
		repo,
		store,
		singleEventReaderStub{event: event},
		ledger,
		ruleLoaderStub{set: models.DefaultRuleSet()},
		mutex,
		nil, nil, nil, nil,
	)
	return svc, mutex
}

func TestWaitlistEnqueueDuplicateConflicts(t *testing.T) {
	svc, _ := newWaitlistFixture(&waitlistRepoStub{exists: true}, &promotionStoreStub{}, eventWithQuota(2), &ledgerStub{})

	err := svc.Enqueue(context.Background(), "user-1", "event-1", "season-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestWaitlistPromoteFillsOneFreedSlot(t *testing.T) {
	repo := &waitlistRepoStub{entries: []models.WaitlistEntry{
		{ID: "wl-1", UserID: "user-1", EventID: "event-1"},
		{ID: "wl-2", UserID: "user-2", EventID: "event-1"},
	}}
	store := &promotionStoreStub{
		count: 1,
		rotations: map[string]*models.Rotation{
			"user-1": {ID: "rot-1", UserID: "user-1", EventID: "event-1", Status: models.RotationWaitlisted},
			"user-2": {ID: "rot-2", UserID: "user-2", EventID: "event-1", Status: models.RotationWaitlisted},
		},
	}
	ledger := &ledgerStub{}
	svc, mutex := newWaitlistFixture(repo, store, eventWithQuota(2), ledger)

	promoted, err := svc.Promote(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, promoted)
	assert.Equal(t, 1, mutex.acquired)
	assert.Equal(t, 1, ledger.approvals)
	// user-2 keeps the head position for the next freed slot.
	require.Len(t, repo.entries, 1)
	assert.Equal(t, "user-2", repo.entries[0].UserID)
}

func TestWaitlistPromoteEmptyQueueNoOp(t *testing.T) {
	repo := &waitlistRepoStub{}
	store := &promotionStoreStub{count: 0}
	svc, _ := newWaitlistFixture(repo, store, eventWithQuota(2), &ledgerStub{})

	promoted, err := svc.Promote(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Empty(t, promoted)
	assert.Empty(t, store.promotions)
}

func TestWaitlistPromoteAtCapacityNoOp(t *testing.T) {
	repo := &waitlistRepoStub{entries: []models.WaitlistEntry{
		{ID: "wl-1", UserID: "user-1", EventID: "event-1"},
	}}
	store := &promotionStoreStub{count: 2}
	svc, _ := newWaitlistFixture(repo, store, eventWithQuota(2), &ledgerStub{})

	promoted, err := svc.Promote(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Empty(t, promoted)
	require.Len(t, repo.entries, 1)
}

func TestWaitlistPromoteDropsOrphanedEntries(t *testing.T) {
	repo := &waitlistRepoStub{entries: []models.WaitlistEntry{
		{ID: "wl-1", UserID: "user-gone", EventID: "event-1"},
		{ID: "wl-2", UserID: "user-2", EventID: "event-1"},
	}}
	store := &promotionStoreStub{
		count: 0,
		rotations: map[string]*models.Rotation{
			"user-2": {ID: "rot-2", UserID: "user-2", EventID: "event-1", Status: models.RotationWaitlisted},
		},
	}
	svc, _ := newWaitlistFixture(repo, store, eventWithQuota(1), &ledgerStub{})

	promoted, err := svc.Promote(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-2"}, promoted)
	assert.Empty(t, repo.entries)
}

func TestWaitlistPurgeSeason(t *testing.T) {
	repo := &waitlistRepoStub{entries: []models.WaitlistEntry{
		{ID: "wl-1", UserID: "user-1", EventID: "event-1", SeasonID: "season-1"},
		{ID: "wl-2", UserID: "user-2", EventID: "event-2", SeasonID: "season-1"},
	}}
	svc, _ := newWaitlistFixture(repo, &promotionStoreStub{}, eventWithQuota(2), &ledgerStub{})

	removed, err := svc.PurgeSeason(context.Background(), "season-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Empty(t, repo.entries)
}

func TestWaitlistListByEventPositions(t *testing.T) {
	repo := &waitlistRepoStub{entries: []models.WaitlistEntry{
		{ID: "wl-1", UserID: "user-1", EventID: "event-1"},
		{ID: "wl-2", UserID: "user-2", EventID: "event-1"},
	}}
	svc, _ := newWaitlistFixture(repo, &promotionStoreStub{}, eventWithQuota(2), &ledgerStub{})

	res, err := svc.ListByEvent(context.Background(), "event-1")
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 1, res.Entries[0].Position)
	assert.Equal(t, 2, res.Entries[1].Position)
}
