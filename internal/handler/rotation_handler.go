package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/response"
)

type rotationService interface {
	Create(ctx context.Context, req dto.CreateRotationRequest, actor *models.JWTClaims) (*dto.RotationResponse, error)
	Approve(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.RotationResponse, error)
	Reject(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.RotationResponse, error)
	Cancel(ctx context.Context, rotationID string, actor *models.JWTClaims) (*dto.CancelRotationResponse, error)
	AssignMandatory(ctx context.Context, req dto.MandatoryRotationRequest, actor *models.JWTClaims) (*dto.RotationResponse, error)
}

type eligibilityService interface {
	Evaluate(ctx context.Context, userID, eventID string) (*models.Verdict, error)
}

// RotationHandler exposes rotation request endpoints.
type RotationHandler struct {
	service     rotationService
	eligibility eligibilityService
}

// NewRotationHandler builds a new handler.
func NewRotationHandler(service rotationService, eligibility eligibilityService) *RotationHandler {
	return &RotationHandler{service: service, eligibility: eligibility}
}

// Eligibility godoc
// @Summary Evaluate rotation eligibility
// @Description Run all enabled rules for a user/event pair without persisting anything
// @Tags Rotations
// @Produce json
// @Param userId query string false "User ID (defaults to caller)"
// @Param eventId query string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /rotations/eligibility [get]
func (h *RotationHandler) Eligibility(c *gin.Context) {
	eventID := c.Query("eventId")
	if eventID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "eventId required"))
		return
	}

	claims := claimsFromContext(c)
	userID := c.Query("userId")
	if userID == "" && claims != nil {
		userID = claims.UserID
	}
	if claims != nil && !claims.IsAdmin() && userID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	verdict, err := h.eligibility.Evaluate(c.Request.Context(), userID, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verdict, nil)
}

// Create godoc
// @Summary Request a rotation
// @Description Create a rotation request; admins may create on behalf of another member
// @Tags Rotations
// @Accept json
// @Produce json
// @Param payload body dto.CreateRotationRequest true "Rotation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rotations [post]
func (h *RotationHandler) Create(c *gin.Context) {
	var req dto.CreateRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rotation payload"))
		return
	}

	res, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Approve godoc
// @Summary Approve a rotation
// @Tags Rotations
// @Produce json
// @Param id path string true "Rotation ID"
// @Success 200 {object} response.Envelope
// @Router /rotations/{id}/approve [post]
func (h *RotationHandler) Approve(c *gin.Context) {
	res, err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Reject godoc
// @Summary Reject a rotation
// @Tags Rotations
// @Produce json
// @Param id path string true "Rotation ID"
// @Success 200 {object} response.Envelope
// @Router /rotations/{id}/reject [post]
func (h *RotationHandler) Reject(c *gin.Context) {
	res, err := h.service.Reject(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Cancel godoc
// @Summary Cancel a rotation
// @Description Cancel a rotation; freed capacity drains the event waitlist
// @Tags Rotations
// @Produce json
// @Param id path string true "Rotation ID"
// @Success 200 {object} response.Envelope
// @Router /rotations/{id} [delete]
func (h *RotationHandler) Cancel(c *gin.Context) {
	res, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// AssignMandatory godoc
// @Summary Assign a mandatory rotation
// @Description Force-assign a rotation that bypasses eligibility rules
// @Tags Rotations
// @Accept json
// @Produce json
// @Param payload body dto.MandatoryRotationRequest true "Mandatory rotation payload"
// @Success 201 {object} response.Envelope
// @Router /rotations/mandatory [post]
func (h *RotationHandler) AssignMandatory(c *gin.Context) {
	var req dto.MandatoryRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid mandatory rotation payload"))
		return
	}

	res, err := h.service.AssignMandatory(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
