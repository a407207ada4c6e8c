package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/export"
)

type exportBalanceSource interface {
	ListDetailBySeason(ctx context.Context, seasonID string) ([]models.BalanceDetail, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type exportSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string) (reportID, relPath string, expiresAt time.Time, err error)
}

var balanceReportHeaders = []string{
	"Member", "Email", "Taken", "Mandatory", "License credit", "Consumed", "Projected max", "Manual max", "Block used",
}

// ExportService renders the seasonal balance report to CSV or PDF, stores it
// and hands out HMAC-signed download URLs.
type ExportService struct {
	balances exportBalanceSource
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	storage  exportStorage
	signer   exportSigner
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(balances exportBalanceSource, storage exportStorage, signer exportSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		balances: balances,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		storage:  storage,
		signer:   signer,
		logger:   logger,
	}
}

// GenerateBalanceReport renders and stores the season's ledger report,
// returning a signed download URL.
func (s *ExportService) GenerateBalanceReport(ctx context.Context, seasonID, format string) (*dto.ReportResponse, error) {
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	details, err := s.balances.ListDetailBySeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: balanceReportHeaders, Rows: make([]map[string]string, 0, len(details))}
	var takenSum, mandatorySum, consumedSum int
	var creditSum float64
	for i := range details {
		d := &details[i]
		manualMax := ""
		if d.ManualMax != nil {
			manualMax = strconv.Itoa(*d.ManualMax)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Member":         d.UserName,
			"Email":          d.UserEmail,
			"Taken":          strconv.Itoa(d.Taken),
			"Mandatory":      strconv.Itoa(d.Mandatory),
			"License credit": strconv.FormatFloat(d.LicenseCredit, 'f', 2, 64),
			"Consumed":       strconv.Itoa(d.DisplayConsumed()),
			"Projected max":  strconv.Itoa(d.ProjectedMax),
			"Manual max":     manualMax,
			"Block used":     strconv.FormatBool(d.BlockUsed),
		})
		takenSum += d.Taken
		mandatorySum += d.Mandatory
		consumedSum += d.DisplayConsumed()
		creditSum += d.LicenseCredit
	}
	dataset.Totals = map[string]string{
		"Member":         fmt.Sprintf("Totals (%d members)", len(details)),
		"Taken":          strconv.Itoa(takenSum),
		"Mandatory":      strconv.Itoa(mandatorySum),
		"License credit": strconv.FormatFloat(creditSum, 'f', 2, 64),
		"Consumed":       strconv.Itoa(consumedSum),
	}

	var payload []byte
	switch format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Season balances %s", seasonID))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	fileName := fmt.Sprintf("balances/%s/%s.%s", seasonID, reportID, format)
	if _, err := s.storage.Save(fileName, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report url")
	}

	s.logger.Info("balance report generated",
		zap.String("season_id", seasonID),
		zap.String("format", format),
		zap.String("report_id", reportID))

	return &dto.ReportResponse{
		SeasonID:  seasonID,
		Format:    format,
		FileName:  fileName,
		URL:       "/api/v1/reports/download?token=" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// OpenSigned validates a download token and opens the referenced file.
func (s *ExportService) OpenSigned(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file not found")
	}
	return file, nil
}
