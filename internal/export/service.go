package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/repository"
)

const (
	ReviewSheet     = "Review Queue"
	WorkOrdersSheet = "Work Orders"
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	orders  repository.WorkOrderRepository
	reviews repository.ReviewRepository
	logger  *slog.Logger
}

func NewService(orders repository.WorkOrderRepository, reviews repository.ReviewRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: orders, reviews: reviews, logger: logger}
}

// ExportReviewQueueXLSX returns a workbook of queued documents created at or after
// since (all of them when since is nil). Reason, raw score and label are separate
// columns.
func (s *Service) ExportReviewQueueXLSX(ctx context.Context, since *time.Time) ([]byte, error) {
	start := time.Now()
	items, err := s.reviews.List(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("query review items: %w", err)
	}

	f, err := newWorkbook(ReviewSheet, []string{
		"Queued At",
		"Reason",
		"Issuer",
		"Identifier",
		"Confidence (raw)",
		"Confidence Label",
		"Source",
		"Sender",
		"File Name",
		"Document Hash",
		"Detail",
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for i, it := range items {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ReviewSheet, cell, v)
		}
		write(1, it.CreatedAt.UTC().Format(time.RFC3339))
		write(2, string(it.Reason))
		write(3, it.Issuer)
		write(4, it.Identifier)
		// blank, not 0, when OCR never ran
		if it.ConfidenceRaw != nil {
			write(5, *it.ConfidenceRaw)
		}
		write(6, string(it.ConfidenceLabel))
		write(7, string(it.Source))
		write(8, it.Sender)
		write(9, it.Filename)
		write(10, it.DocHash)
		write(11, truncate(it.Detail, 140))
	}

	_ = f.SetColWidth(ReviewSheet, "A", "A", 22) // queued at
	_ = f.SetColWidth(ReviewSheet, "B", "B", 26) // reason
	_ = f.SetColWidth(ReviewSheet, "C", "D", 16)
	_ = f.SetColWidth(ReviewSheet, "E", "F", 16) // confidence
	_ = f.SetColWidth(ReviewSheet, "H", "I", 28)
	_ = f.SetColWidth(ReviewSheet, "J", "J", 66) // sha256
	_ = f.SetColWidth(ReviewSheet, "K", "K", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.review.xlsx.ok", "rows", len(items), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// ExportWorkOrdersXLSX returns a workbook of work orders, filtered by status when
// status is non-empty.
func (s *Service) ExportWorkOrdersXLSX(ctx context.Context, status constants.WorkOrderStatus) ([]byte, error) {
	start := time.Now()
	orders, err := s.orders.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("query work orders: %w", err)
	}

	f, err := newWorkbook(WorkOrdersSheet, []string{
		"Work Order Key",
		"Issuer",
		"Identifier",
		"Status",
		"Customer",
		"Site Address",
		"Description",
		"Signed Document",
		"Updated At",
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for i, wo := range orders {
		row := i + 2
		values := []any{
			wo.Key, wo.Issuer, wo.Identifier, string(wo.Status), wo.CustomerName,
			wo.SiteAddress, truncate(wo.Description, 140), wo.ArtifactPath,
			wo.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(WorkOrdersSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(WorkOrdersSheet, "A", "A", 28)
	_ = f.SetColWidth(WorkOrdersSheet, "E", "G", 32)
	_ = f.SetColWidth(WorkOrdersSheet, "H", "H", 60) // path
	_ = f.SetColWidth(WorkOrdersSheet, "I", "I", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.work_orders.xlsx.ok", "rows", len(orders), "status", status, "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func newWorkbook(sheet string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet so the export opens on its data
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}
	return f, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
