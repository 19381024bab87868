package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/repository"
)

func newService(t *testing.T) (*Service, repository.WorkOrderRepository, repository.ReviewRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	orders := repository.NewWorkOrderRepository(db, nil)
	reviews := repository.NewReviewRepository(db, nil)
	return NewService(orders, reviews, nil), orders, reviews
}

func TestExportReviewQueueXLSX(t *testing.T) {
	svc, _, reviews := newService(t)
	ctx := context.Background()
	raw := 0.42
	if _, err := reviews.Enqueue(ctx, &entity.ReviewItem{
		DocHash: "h1", Issuer: "acme", Identifier: "1234567", Reason: constants.ReasonLowConfidenceExtraction,
		ConfidenceRaw: &raw, ConfidenceLabel: constants.ConfidenceLow, Source: constants.SourceEmail,
	}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := reviews.Enqueue(ctx, &entity.ReviewItem{DocHash: "h2", Reason: constants.ReasonRenderingFailed}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	b, err := svc.ExportReviewQueueXLSX(ctx, nil)
	if err != nil {
		t.Fatalf("ExportReviewQueueXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ReviewSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][1] != "Reason" || rows[0][4] != "Confidence (raw)" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "LowConfidenceExtraction" || rows[1][4] != "0.42" || rows[1][5] != "low" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][1] != "RenderingFailed" || (len(rows[2]) > 4 && rows[2][4] != "") {
		t.Errorf("row 2 = %v, want blank confidence", rows[2])
	}

	future := time.Now().Add(time.Hour)
	b, err = svc.ExportReviewQueueXLSX(ctx, &future)
	if err != nil {
		t.Fatalf("ExportReviewQueueXLSX(since) error = %v", err)
	}
	f2, _ := excelize.OpenReader(bytes.NewReader(b))
	defer f2.Close()
	if rows, _ := f2.GetRows(ReviewSheet); len(rows) != 1 {
		t.Errorf("filtered rows = %d, want header only", len(rows))
	}
}

func TestExportWorkOrdersXLSX(t *testing.T) {
	svc, orders, _ := newService(t)
	ctx := context.Background()
	for _, wo := range []*entity.WorkOrder{
		{Key: "acme:1", Issuer: "acme", Identifier: "1", Status: constants.WorkOrderOpen, CustomerName: "Jane"},
		{Key: "acme:2", Issuer: "acme", Identifier: "2", Status: constants.WorkOrderMatched, ArtifactPath: "/a/2.pdf"},
	} {
		if err := orders.Upsert(ctx, wo); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	b, err := svc.ExportWorkOrdersXLSX(ctx, constants.WorkOrderMatched)
	if err != nil {
		t.Fatalf("ExportWorkOrdersXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(WorkOrdersSheet)
	if len(rows) != 2 || rows[1][0] != "acme:2" || rows[1][7] != "/a/2.pdf" {
		t.Errorf("rows = %v", rows)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate() = %q", got)
	}
}
