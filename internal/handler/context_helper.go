package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/orquesta-sinfonica/rotativos-api/internal/middleware"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

type activeSeasonFinder interface {
	FindActive(ctx context.Context) (*models.Season, error)
}

// resolveSeasonID falls back to the active season when the caller did not
// name one explicitly.
func resolveSeasonID(ctx context.Context, seasons activeSeasonFinder, seasonID string) (string, error) {
	if seasonID != "" {
		return seasonID, nil
	}
	season, err := seasons.FindActive(ctx)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "no active season configured")
	}
	return season.ID, nil
}
