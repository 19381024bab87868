// Package records persists decision outcomes: matched documents update their work
// order, everything else lands in the review queue.
package records

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/artifacts"
	"github.com/joseph-ayodele/workorder-intake/internal/decision"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/repository"
	"github.com/joseph-ayodele/workorder-intake/internal/workorder"
)

// Meta describes the document an outcome was decided for.
type Meta struct {
	Issuer   string
	DocHash  string
	Filename string
	Sender   string
	Source   constants.Source
	PDF      []byte
	// Fields carries optional work-order details (customer, site, description)
	// merged into the record on a match.
	Fields *entity.WorkOrder
}

// Result is what the writer persisted.
type Result struct {
	Status       constants.DecisionStatus
	Reason       constants.Reason
	Key          workorder.Key
	WorkOrder    *entity.WorkOrder
	Review       *entity.ReviewItem
	ArtifactPath string
}

type Writer struct {
	orders    repository.WorkOrderRepository
	reviews   repository.ReviewRepository
	artifacts artifacts.Store
	now       func() time.Time
	logger    *slog.Logger
}

func NewWriter(orders repository.WorkOrderRepository, reviews repository.ReviewRepository, store artifacts.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{orders: orders, reviews: reviews, artifacts: store, now: time.Now, logger: logger}
}

// Write persists exactly one record for out. AUTO_CONFIRMED stores the artifact and
// upserts the work order; anything else, including a failed upsert, becomes a
// review item. An error means not even the review item could be written.
func (w *Writer) Write(ctx context.Context, out decision.Outcome, meta Meta) (Result, error) {
	if !out.AllowsArtifact() {
		return w.queue(ctx, out.Reason, out, meta, out.Detail)
	}

	res, err := w.confirm(ctx, out, meta)
	if err != nil {
		w.logger.Error("records.write.failed", "work_order_key", out.MatchedRecordKey, "doc_hash", meta.DocHash, "error", err)
		return w.queue(ctx, constants.ReasonPersistenceFailed, out, meta, err.Error())
	}

	// an earlier attempt for this document may still sit in the queue
	if meta.DocHash != "" {
		if err := w.reviews.Remove(ctx, meta.DocHash); err != nil {
			w.logger.Warn("records.review.cleanup_failed", "doc_hash", meta.DocHash, "error", err)
		}
	}
	return res, nil
}

func (w *Writer) confirm(ctx context.Context, out decision.Outcome, meta Meta) (Result, error) {
	key := out.MatchedRecordKey
	if key == "" {
		key = workorder.NewKey(meta.Issuer, out.Identifier)
	}

	existing, err := Resolve(ctx, w.orders, key)
	if err != nil {
		return Result{}, fmt.Errorf("resolve work order: %w", err)
	}
	var kept string
	if existing != nil {
		key = workorder.Key(existing.Key)
		kept = existing.ArtifactPath
	}

	var path string
	if len(meta.PDF) > 0 && w.artifacts != nil {
		issuer, identifier := key.Split()
		p, err := w.artifacts.Put(ctx, issuer, identifier, meta.PDF)
		if err != nil {
			return Result{}, fmt.Errorf("store artifact: %w", err)
		}
		path = p
	}

	patch := &entity.WorkOrder{
		Key:          string(key),
		Status:       constants.WorkOrderMatched,
		ArtifactPath: path,
		Source:       meta.Source,
	}
	if meta.Fields != nil {
		patch.CustomerName = meta.Fields.CustomerName
		patch.SiteAddress = meta.Fields.SiteAddress
		patch.Description = meta.Fields.Description
	}

	wo, written, err := w.Upsert(ctx, patch)
	if err != nil {
		// the same bytes may already back the stored record
		if path != "" && path != kept {
			if rmErr := w.artifacts.Remove(ctx, path); rmErr != nil {
				w.logger.Error("records.artifact.rollback_failed", "path", path, "error", rmErr)
			}
		}
		return Result{}, err
	}
	if !written {
		return Result{}, fmt.Errorf("work order %s was not persisted", key)
	}
	return Result{
		Status:       constants.StatusAutoConfirmed,
		Reason:       constants.ReasonMatched,
		Key:          workorder.Key(wo.Key),
		WorkOrder:    wo,
		ArtifactPath: path,
	}, nil
}

// Upsert applies patch to the logical work order it names. The existing row is found
// by key, then by identifier alone, and its key is kept. A new row is inserted only
// when patch has substance or a terminal status. It reports whether a row was written.
func (w *Writer) Upsert(ctx context.Context, patch *entity.WorkOrder) (*entity.WorkOrder, bool, error) {
	key := workorder.Key(patch.Key)
	if key == "" {
		key = workorder.NewKey(patch.Issuer, patch.Identifier)
	}
	if key == "" {
		return nil, false, fmt.Errorf("work order has no key")
	}

	existing, err := Resolve(ctx, w.orders, key)
	if err != nil {
		return nil, false, fmt.Errorf("resolve work order: %w", err)
	}

	var rec *entity.WorkOrder
	if existing != nil {
		if existing.Key != string(key) {
			w.logger.Info("records.key.adopted", "requested", key, "existing", existing.Key)
		}
		rec = existing
		rec.MergeFrom(patch)
	} else {
		if !patch.HasSubstance() && !patch.Status.IsTerminal() {
			w.logger.Info("records.insert.skipped", "work_order_key", key, "reason", "no substantive fields")
			return nil, false, nil
		}
		issuer, identifier := key.Split()
		rec = &entity.WorkOrder{Key: string(key), Issuer: issuer, Identifier: identifier, Status: constants.WorkOrderOpen}
		rec.MergeFrom(patch)
	}
	rec.UpdatedAt = w.now()

	if err := w.orders.Upsert(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("upsert work order: %w", err)
	}
	w.logger.Info("records.work_order.written", "work_order_key", rec.Key, "status", rec.Status, "artifact", rec.ArtifactPath != "")
	return rec, true, nil
}

func (w *Writer) queue(ctx context.Context, reason constants.Reason, out decision.Outcome, meta Meta, detail string) (Result, error) {
	item := &entity.ReviewItem{
		DocHash:         meta.DocHash,
		Issuer:          meta.Issuer,
		Identifier:      out.Identifier,
		Reason:          reason,
		ConfidenceLabel: out.ConfidenceLabel,
		Source:          meta.Source,
		Filename:        meta.Filename,
		Sender:          meta.Sender,
		Detail:          detail,
	}
	if out.ConfidenceLabel != "" {
		raw := out.ConfidenceRaw
		item.ConfidenceRaw = &raw
	}
	stored, err := w.reviews.Enqueue(ctx, item)
	if err != nil {
		return Result{}, fmt.Errorf("enqueue review item: %w", err)
	}
	return Result{
		Status: constants.StatusNeedsAttention,
		Reason: reason,
		Key:    workorder.NewKey(meta.Issuer, out.Identifier),
		Review: stored,
	}, nil
}
