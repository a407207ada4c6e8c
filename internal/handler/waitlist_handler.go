package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/response"
)

type waitlistService interface {
	ListByEvent(ctx context.Context, eventID string) (*dto.WaitlistResponse, error)
	PurgeSeason(ctx context.Context, seasonID string, actor *models.JWTClaims) (int, error)
}

// WaitlistHandler exposes waitlist inspection endpoints.
type WaitlistHandler struct {
	service waitlistService
}

// NewWaitlistHandler builds a new handler.
func NewWaitlistHandler(service waitlistService) *WaitlistHandler {
	return &WaitlistHandler{service: service}
}

// ListByEvent godoc
// @Summary List an event's waitlist
// @Tags Waitlist
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/waitlist [get]
func (h *WaitlistHandler) ListByEvent(c *gin.Context) {
	res, err := h.service.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Purge godoc
// @Summary Purge a season's waitlists
// @Description Remove every waitlist entry for a closing season
// @Tags Waitlist
// @Produce json
// @Param id path string true "Season ID"
// @Success 200 {object} response.Envelope
// @Router /seasons/{id}/waitlist/purge [post]
func (h *WaitlistHandler) Purge(c *gin.Context) {
	seasonID := c.Param("id")
	removed, err := h.service.PurgeSeason(c.Request.Context(), seasonID, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.PurgeResponse{SeasonID: seasonID, Removed: removed}, nil)
}
