package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/middleware"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

type rotationServiceMock struct {
	created *dto.RotationResponse
	err     error
}

func (m *rotationServiceMock) Create(ctx context.Context, req dto.CreateRotationRequest, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.created, nil
}

func (m *rotationServiceMock) Approve(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	return m.created, m.err
}

func (m *rotationServiceMock) Reject(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	return m.created, m.err
}

func (m *rotationServiceMock) Cancel(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.CancelRotationResponse, error) {
	return &dto.CancelRotationResponse{}, m.err
}

func (m *rotationServiceMock) AssignMandatory(ctx context.Context, req dto.MandatoryRotationRequest, actor *models.JWTClaims) (*dto.RotationResponse, error) {
	return m.created, m.err
}

type eligibilityServiceMock struct {
	verdict     *models.Verdict
	evaluated   []string
	lastUserID  string
	lastEventID string
}

func (m *eligibilityServiceMock) Evaluate(ctx context.Context, userID, eventID string) (*models.Verdict, error) {
	m.evaluated = append(m.evaluated, userID)
	m.lastUserID = userID
	m.lastEventID = eventID
	return m.verdict, nil
}

func TestRotationHandlerEligibilityMissingEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRotationHandler(&rotationServiceMock{}, &eligibilityServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/rotations/eligibility", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMusico})

	handler.Eligibility(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRotationHandlerEligibilityDefaultsToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eligibility := &eligibilityServiceMock{verdict: &models.Verdict{}}
	handler := NewRotationHandler(&rotationServiceMock{}, eligibility)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/rotations/eligibility?eventId=event-1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMusico})

	handler.Eligibility(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", eligibility.lastUserID)
	assert.Equal(t, "event-1", eligibility.lastEventID)
}

func TestRotationHandlerEligibilityForeignUserForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eligibility := &eligibilityServiceMock{verdict: &models.Verdict{}}
	handler := NewRotationHandler(&rotationServiceMock{}, eligibility)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/rotations/eligibility?eventId=event-1&userId=user-2", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMusico})

	handler.Eligibility(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, eligibility.evaluated)
}

func TestRotationHandlerEligibilityAdminQueriesAnyUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eligibility := &eligibilityServiceMock{verdict: &models.Verdict{}}
	handler := NewRotationHandler(&rotationServiceMock{}, eligibility)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/rotations/eligibility?eventId=event-1&userId=user-2", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Eligibility(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-2", eligibility.lastUserID)
}

func TestRotationHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRotationHandler(&rotationServiceMock{}, &eligibilityServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/rotations", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMusico})

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRotationHandlerCreateCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRotationHandler(&rotationServiceMock{created: &dto.RotationResponse{ID: "rot-1", Status: models.RotationApproved}}, &eligibilityServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreateRotationRequest{EventID: "3b241101-e2bb-4255-8caf-4136c566a962"})
	req, _ := http.NewRequest(http.MethodPost, "/rotations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMusico})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "rot-1")
}
