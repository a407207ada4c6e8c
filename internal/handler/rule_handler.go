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

type ruleService interface {
	List(ctx context.Context) ([]dto.RuleItem, error)
	Get(ctx context.Context, key models.RuleKey) (*dto.RuleItem, error)
	Update(ctx context.Context, key models.RuleKey, req dto.UpdateRuleRequest, actor *models.JWTClaims) (*dto.RuleItem, error)
}

// RuleHandler exposes rule configuration endpoints.
type RuleHandler struct {
	service ruleService
}

// NewRuleHandler builds a new handler.
func NewRuleHandler(service ruleService) *RuleHandler {
	return &RuleHandler{service: service}
}

// List godoc
// @Summary List rules
// @Tags Rules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get rule by key
// @Tags Rules
// @Produce json
// @Param key path string true "Rule key"
// @Success 200 {object} response.Envelope
// @Router /rules/{key} [get]
func (h *RuleHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), models.RuleKey(c.Param("key")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Update godoc
// @Summary Update rule
// @Description Change a rule's value or toggle it; the value is validated against the key's schema
// @Tags Rules
// @Accept json
// @Produce json
// @Param key path string true "Rule key"
// @Param payload body dto.UpdateRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Router /rules/{key} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	var req dto.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}

	item, err := h.service.Update(c.Request.Context(), models.RuleKey(c.Param("key")), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
