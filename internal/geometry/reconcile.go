package geometry

import "log/slog"

// DefaultTolerancePx is the pixel slack allowed between expected and actual raster size.
const DefaultTolerancePx = 8

// Reconciliation is the geometry every consumer of a rendered page must use.
type Reconciliation struct {
	Box       PageBox
	Source    BoxSource
	WidthPx   int
	HeightPx  int
	ExpectedW int
	ExpectedH int
	Replaced  bool // the renderer's effective bounds replaced the resolved box
}

// Reconciler checks rendered pixel dimensions against the resolved geometry.
type Reconciler struct {
	tolerance int
	logger    *slog.Logger
}

// NewReconciler builds a reconciler; tolerancePx <= 0 uses DefaultTolerancePx.
func NewReconciler(tolerancePx int, logger *slog.Logger) *Reconciler {
	if tolerancePx <= 0 {
		tolerancePx = DefaultTolerancePx
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{tolerance: tolerancePx, logger: logger}
}

// Reconcile keeps resolved when the raster matches it within tolerance; otherwise it
// reports the page's generic bounds, bypassing the crop/media preference, together
// with the actual pixel size.
func (r *Reconciler) Reconcile(page PageHandle, resolved ResolvedBox, scale float64, actualW, actualH int) (Reconciliation, error) {
	expW, expH := ExpectedPixels(resolved.Box, scale)
	out := Reconciliation{
		Box:       resolved.Box,
		Source:    resolved.Source,
		WidthPx:   actualW,
		HeightPx:  actualH,
		ExpectedW: expW,
		ExpectedH: expH,
	}
	if abs(actualW-expW) <= r.tolerance && abs(actualH-expH) <= r.tolerance {
		return out, nil
	}

	bounds, ok := BoundsBox(page)
	if ok {
		bounds = bounds.Normalize()
	}
	if !ok || !bounds.IsValid() {
		return Reconciliation{}, errorf(ErrNoValidPageBox,
			"raster %dx%d disagrees with %s box (expected %dx%d) and page bounds are unusable",
			actualW, actualH, resolved.Source, expW, expH)
	}

	r.logger.Warn("render mismatch; substituting renderer bounds",
		"source", resolved.Source,
		"expected_w", expW, "expected_h", expH,
		"actual_w", actualW, "actual_h", actualH,
		"bounds", bounds,
	)
	out.Box = bounds
	out.Source = SourceBounds
	out.Replaced = true
	return out, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
