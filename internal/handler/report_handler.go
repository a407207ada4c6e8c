package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/response"
)

type exportService interface {
	GenerateBalanceReport(ctx context.Context, seasonID, format string) (*dto.ReportResponse, error)
	OpenSigned(token string) (*os.File, error)
}

// ReportHandler exposes balance export endpoints.
type ReportHandler struct {
	service exportService
	seasons activeSeasonFinder
}

// NewReportHandler builds a new handler.
func NewReportHandler(service exportService, seasons activeSeasonFinder) *ReportHandler {
	return &ReportHandler{service: service, seasons: seasons}
}

// Balances godoc
// @Summary Generate a season balance report
// @Description Render the season's ledgers to CSV or PDF and return a signed download URL
// @Tags Reports
// @Produce json
// @Param seasonId query string false "Season ID (defaults to active season)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /reports/balances [get]
func (h *ReportHandler) Balances(c *gin.Context) {
	seasonID, err := resolveSeasonID(c.Request.Context(), h.seasons, c.Query("seasonId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	res, err := h.service.GenerateBalanceReport(c.Request.Context(), seasonID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Download a generated report
// @Description Stream a previously generated report file through its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	file, err := h.service.OpenSigned(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report file"))
		return
	}

	name := filepath.Base(file.Name())
	contentType := "text/csv"
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		contentType = "application/pdf"
	}

	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
	})
}
