package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	"github.com/orquesta-sinfonica/rotativos-api/internal/service"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/response"
)

type balanceService interface {
	Get(ctx context.Context, userID, seasonID string) (*dto.BalanceResponse, error)
	SetManualOverride(ctx context.Context, userID, seasonID string, req dto.OverrideBalanceRequest, actor *models.JWTClaims) (*dto.BalanceResponse, error)
}

type capacityService interface {
	RecalculateProjectedMax(ctx context.Context, seasonID string, scope service.RecalculateScope) (int, int, error)
}

// BalanceHandler exposes seasonal ledger endpoints.
type BalanceHandler struct {
	service  balanceService
	capacity capacityService
	seasons  activeSeasonFinder
}

// NewBalanceHandler builds a new handler.
func NewBalanceHandler(service balanceService, capacity capacityService, seasons activeSeasonFinder) *BalanceHandler {
	return &BalanceHandler{service: service, capacity: capacity, seasons: seasons}
}

// Get godoc
// @Summary Get a member's seasonal balance
// @Tags Balances
// @Produce json
// @Param userId path string true "User ID"
// @Param seasonId query string false "Season ID (defaults to active season)"
// @Success 200 {object} response.Envelope
// @Router /balances/{userId} [get]
func (h *BalanceHandler) Get(c *gin.Context) {
	seasonID, err := resolveSeasonID(c.Request.Context(), h.seasons, c.Query("seasonId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Get(c.Request.Context(), c.Param("userId"), seasonID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Override godoc
// @Summary Override a member's seasonal maximum
// @Description Set or clear the manual maximum; setting one requires a reason
// @Tags Balances
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param payload body dto.OverrideBalanceRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /balances/{userId}/override [put]
func (h *BalanceHandler) Override(c *gin.Context) {
	var req dto.OverrideBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}

	seasonID, err := resolveSeasonID(c.Request.Context(), h.seasons, req.SeasonID)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.SetManualOverride(c.Request.Context(), c.Param("userId"), seasonID, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Recalculate godoc
// @Summary Recalculate projected maximums
// @Description Repair cached projected maximums across a season's ledgers
// @Tags Balances
// @Accept json
// @Produce json
// @Param payload body dto.RecalculateRequest true "Recalculate payload"
// @Success 200 {object} response.Envelope
// @Router /balances/recalculate [post]
func (h *BalanceHandler) Recalculate(c *gin.Context) {
	var req dto.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recalculate payload"))
		return
	}

	seasonID, err := resolveSeasonID(c.Request.Context(), h.seasons, req.SeasonID)
	if err != nil {
		response.Error(c, err)
		return
	}

	scope := service.RecalculateScope(req.Scope)
	if scope == "" {
		scope = service.ScopeZeroOnly
	}

	projected, updated, err := h.capacity.RecalculateProjectedMax(c.Request.Context(), seasonID, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RecalculateResponse{
		SeasonID:     seasonID,
		ProjectedMax: projected,
		RowsUpdated:  updated,
	}, nil)
}
