package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/usra-dev/usra-api/internal/models"
	"github.com/usra-dev/usra-api/pkg/export"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

// ExportFormat selects the rendered output.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	MaxRows int
}

// ExportResult carries the rendered document and its transport metadata.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type requestFeed interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRow, int, error)
}

// ExportService renders the request feed into downloadable CSV or PDF
// documents for administrative reporting.
type ExportService struct {
	requests requestFeed
	csv      csvRenderer
	pdf      pdfRenderer
	cfg      ExportConfig
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(requests requestFeed, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{requests: requests, csv: csv, pdf: pdf, cfg: cfg, logger: logger}
}

var requestFeedHeaders = []string{"ID", "Student", "Kind", "Status", "Urgency", "Reason", "Reviewed By", "Created At"}

// ExportRequests renders the filtered request feed in the chosen format.
func (s *ExportService) ExportRequests(ctx context.Context, filter models.RequestFilter, format ExportFormat) (*ExportResult, error) {
	filter.Page = 1
	filter.PageSize = s.cfg.MaxRows

	rows, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if total > s.cfg.MaxRows {
		s.logger.Warn("request export truncated",
			zap.Int("total", total),
			zap.Int("max_rows", s.cfg.MaxRows))
	}

	dataset := export.Dataset{Headers: requestFeedHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		reviewedBy := ""
		if row.ReviewedBy != nil {
			reviewedBy = *row.ReviewedBy
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":          row.ID,
			"Student":     strings.TrimSpace(row.StudentFirstName + " " + row.StudentLastName),
			"Kind":        string(row.Kind),
			"Status":      string(row.Status),
			"Urgency":     fmt.Sprintf("%d", row.Urgency),
			"Reason":      row.Reason,
			"Reviewed By": reviewedBy,
			"Created At":  row.CreatedAt.Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("requests-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Enrollment requests")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("requests-%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
