package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
)

// Options controls scale selection and reconciliation.
type Options struct {
	MaxWidthPx   int
	DefaultScale float64
	TolerancePx  int
}

// Rasterizer runs resolve, transform, render and reconcile for one page.
type Rasterizer struct {
	opts       Options
	resolver   *geometry.Resolver
	reconciler *geometry.Reconciler
	logger     *slog.Logger
}

func NewRasterizer(opts Options, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{
		opts:       opts,
		resolver:   geometry.NewResolver(nil, logger),
		reconciler: geometry.NewReconciler(opts.TolerancePx, logger),
		logger:     logger,
	}
}

// RenderPage rasterizes the zero-based page index of doc.
func (r *Rasterizer) RenderPage(ctx context.Context, doc Document, index int) (*RenderedPage, error) {
	start := time.Now()
	if n := doc.PageCount(); index < 0 || index >= n {
		return nil, &geometry.Error{Kind: geometry.ErrPageOutOfRange, Msg: fmt.Sprintf("page index %d of %d", index, n)}
	}
	page, err := doc.Page(index)
	if err != nil {
		return nil, fmt.Errorf("%w: load page %d: %v", ErrRenderFailed, index, err)
	}

	resolved, err := r.resolver.Resolve(page)
	if err != nil {
		return nil, err
	}

	t, err := geometry.BuildTransform(resolved.Box, geometry.TransformOptions{
		MaxWidthPx:   r.opts.MaxWidthPx,
		DefaultScale: r.opts.DefaultScale,
		CanCompose:   doc.ComposesTransforms(),
	})
	if err != nil {
		return nil, err
	}
	var warnings []string
	if t.ScaleOnly {
		r.logger.Warn("render.transform.scale_only", "page", index, "box", resolved.Box, "source", resolved.Source)
		warnings = append(warnings, t.Warning)
	}

	img, err := doc.Render(ctx, index, t)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrRenderFailed, index, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: page %d", ErrEmptyRaster, index)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	rec, err := r.reconciler.Reconcile(page, resolved, t.Scale, w, h)
	if err != nil {
		return nil, err
	}
	if rec.Replaced {
		warnings = append(warnings, fmt.Sprintf("raster %dx%d did not match %s box (expected %dx%d); using renderer bounds",
			w, h, resolved.Source, rec.ExpectedW, rec.ExpectedH))
	}

	r.logger.Debug("render.page.ok",
		"page", index,
		"source", rec.Source,
		"scale", t.Scale,
		"width_px", w,
		"height_px", h,
		"reconciled", rec.Replaced,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &RenderedPage{
		Index:      index,
		Image:      img,
		Box:        rec.Box,
		BoxSource:  rec.Source,
		Scale:      t.Scale,
		WidthPx:    w,
		HeightPx:   h,
		Reconciled: rec.Replaced,
		Warnings:   warnings,
	}, nil
}
