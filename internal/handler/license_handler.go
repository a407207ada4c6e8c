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

type licenseService interface {
	Create(ctx context.Context, req dto.CreateLicenseRequest, seasonID string, actor *models.JWTClaims) (*dto.LicenseResponse, error)
	Delete(ctx context.Context, licenseID string, actor *models.JWTClaims) error
}

// LicenseHandler exposes license endpoints.
type LicenseHandler struct {
	service licenseService
	seasons activeSeasonFinder
}

// NewLicenseHandler builds a new handler.
func NewLicenseHandler(service licenseService, seasons activeSeasonFinder) *LicenseHandler {
	return &LicenseHandler{service: service, seasons: seasons}
}

// Create godoc
// @Summary Register a license
// @Description Register a leave period; the proportional credit is applied to the member's ledger
// @Tags Licenses
// @Accept json
// @Produce json
// @Param payload body dto.CreateLicenseRequest true "License payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /licenses [post]
func (h *LicenseHandler) Create(c *gin.Context) {
	var req dto.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid license payload"))
		return
	}

	seasonID, err := resolveSeasonID(c.Request.Context(), h.seasons, req.SeasonID)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Create(c.Request.Context(), req, seasonID, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Delete godoc
// @Summary Delete a license
// @Description Remove a license and revert its credit from the member's ledger
// @Tags Licenses
// @Produce json
// @Param id path string true "License ID"
// @Success 204 {object} response.Envelope
// @Router /licenses/{id} [delete]
func (h *LicenseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
