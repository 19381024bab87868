package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/workorder-intake/internal/decision"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/ingest"
	"github.com/joseph-ayodele/workorder-intake/internal/issuer"
	"github.com/joseph-ayodele/workorder-intake/internal/ocr"
	"github.com/joseph-ayodele/workorder-intake/internal/region"
	"github.com/joseph-ayodele/workorder-intake/internal/render"
)

type stage string

const (
	stageRender stage = "render"
	stageOCR    stage = "ocr"
)

type stageError struct {
	stage stage
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// extract renders the profile's template page, crops the identifier region and
// reads it. Stages run strictly in order.
func (p *Processor) extract(ctx context.Context, doc ingest.Document, profile *entity.IssuerProfile, res *Result) (decision.Extraction, error) {
	if p.deps.Engine == nil || p.deps.Rasterizer == nil || p.deps.Recognizer == nil {
		return decision.Extraction{}, &stageError{stageRender, errors.New("render or ocr capability not configured")}
	}

	pdf, err := p.deps.Engine.Open(ctx, doc.Bytes)
	if err != nil {
		return decision.Extraction{}, &stageError{stageRender, fmt.Errorf("%w: open: %v", render.ErrRenderFailed, err)}
	}
	defer func() {
		if err := pdf.Close(); err != nil {
			p.logger.Warn("processor.document.close_failed", "error", err)
		}
	}()

	pageIdx, err := profile.Region.PageIndex(pdf.PageCount())
	if err != nil {
		return decision.Extraction{}, &stageError{stageRender, err}
	}
	page, err := p.deps.Rasterizer.RenderPage(ctx, pdf, pageIdx)
	if err != nil {
		return decision.Extraction{}, &stageError{stageRender, err}
	}
	res.Warnings = append(res.Warnings, page.Warnings...)

	rectPt, err := region.Map(profile.Region, page.Box)
	if err != nil {
		return decision.Extraction{}, &stageError{stageRender, err}
	}
	crop, err := render.CropForOCR(page, rectPt, p.cfg.CropDPI)
	if err != nil {
		return decision.Extraction{}, &stageError{stageRender, err}
	}
	res.CropPx = crop.SourcePx

	rec, err := p.deps.Recognizer.Recognize(ctx, crop.PNG)
	if err != nil {
		return decision.Extraction{}, &stageError{stageOCR, err}
	}
	res.Recognition = &rec

	pattern, err := issuer.IdentifierPattern(profile)
	if err != nil {
		pattern = ocr.DefaultIdentifierPattern
	}
	ex := decision.Extraction{
		IdentifierText:  ocr.ExtractIdentifier(rec.Text, pattern),
		ConfidenceRaw:   rec.ConfidenceRaw,
		ConfidenceLabel: p.cfg.Labeler.Label(rec.ConfidenceRaw),
	}
	p.logger.Debug("processor.extract.ok",
		"issuer", profile.IssuerKey,
		"page", pageIdx,
		"crop_px", crop.SourcePx,
		"text", rec.Text,
		"identifier", ex.IdentifierText,
		"confidence", ex.ConfidenceRaw,
		"label", ex.ConfidenceLabel,
		"reconciled", page.Reconciled,
	)
	return ex, nil
}
