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

type blockService interface {
	Request(ctx context.Context, req dto.RequestBlockPayload, actor *models.JWTClaims) (*dto.BlockResponse, error)
	Approve(ctx context.Context, blockID string, actor *models.JWTClaims) (*dto.BlockResponse, error)
	Cancel(ctx context.Context, blockID string, actor *models.JWTClaims) (*dto.BlockResponse, []string, error)
	SweepGhosts(ctx context.Context, seasonID string, actor *models.JWTClaims) (*dto.SweepResponse, error)
}

// BlockHandler exposes block request endpoints.
type BlockHandler struct {
	service blockService
	seasons activeSeasonFinder
}

// NewBlockHandler builds a new handler.
func NewBlockHandler(service blockService, seasons activeSeasonFinder) *BlockHandler {
	return &BlockHandler{service: service, seasons: seasons}
}

// Request godoc
// @Summary Request a block
// @Description Request every remaining event of a title in one operation
// @Tags Blocks
// @Accept json
// @Produce json
// @Param payload body dto.RequestBlockPayload true "Block payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /blocks [post]
func (h *BlockHandler) Request(c *gin.Context) {
	var req dto.RequestBlockPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid block payload"))
		return
	}

	res, err := h.service.Request(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.ValidateOnly {
		response.JSON(c, http.StatusOK, res, nil)
		return
	}
	response.Created(c, res)
}

// Approve godoc
// @Summary Approve a block
// @Description Approve a block and every rotation it carries
// @Tags Blocks
// @Produce json
// @Param id path string true "Block ID"
// @Success 200 {object} response.Envelope
// @Router /blocks/{id}/approve [post]
func (h *BlockHandler) Approve(c *gin.Context) {
	res, err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Cancel godoc
// @Summary Cancel a block
// @Description Cancel a block and release its rotations, draining waitlists
// @Tags Blocks
// @Produce json
// @Param id path string true "Block ID"
// @Success 200 {object} response.Envelope
// @Router /blocks/{id} [delete]
func (h *BlockHandler) Cancel(c *gin.Context) {
	res, promoted, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"block": res, "promoted_event_ids": promoted}, nil)
}

// Sweep godoc
// @Summary Sweep ghost blocks
// @Description Cancel blocks whose owner no longer holds active rotations on the title
// @Tags Blocks
// @Accept json
// @Produce json
// @Param seasonId query string false "Season ID (defaults to active season)"
// @Success 200 {object} response.Envelope
// @Router /blocks/sweep [post]
func (h *BlockHandler) Sweep(c *gin.Context) {
	seasonID, err := resolveSeasonID(c.Request.Context(), h.seasons, c.Query("seasonId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.SweepGhosts(c.Request.Context(), seasonID, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
