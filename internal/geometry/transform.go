package geometry

import "math"

const (
	DefaultMaxWidthPx   = 1400
	DefaultQualityScale = 2.0
)

// TransformOptions controls render scale selection.
type TransformOptions struct {
	MaxWidthPx   int     // cap on rendered width; <=0 uses DefaultMaxWidthPx
	DefaultScale float64 // quality scale; <=0 uses DefaultQualityScale
	CanCompose   bool    // backend can apply translate-then-scale as one transform
}

// Transform maps point space of the source box onto pixel space.
type Transform struct {
	Scale      float64
	Translated bool    // a translate(-x0,-y0) is part of Matrix
	Tx, Ty     float64 // translation applied before scaling
	Matrix     Matrix
	// ScaleOnly is set when the box has a non-zero origin but the backend could
	// not compose transforms; the rendered pixels may then be offset or cropped.
	ScaleOnly bool
	Warning   string
}

// BuildTransform computes the render scale and the point-to-pixel transform for box.
func BuildTransform(box PageBox, opts TransformOptions) (Transform, error) {
	if !box.IsValid() {
		return Transform{}, errorf(ErrTransformFailed, "invalid page box %+v", box)
	}
	maxW := opts.MaxWidthPx
	if maxW <= 0 {
		maxW = DefaultMaxWidthPx
	}
	s0 := opts.DefaultScale
	if s0 <= 0 {
		s0 = DefaultQualityScale
	}

	scale := math.Min(s0, float64(maxW)/box.WidthPt())
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Transform{}, errorf(ErrTransformFailed, "computed scale %v for width %v", scale, box.WidthPt())
	}

	t := Transform{Scale: scale, Matrix: Scale(scale, scale)}
	if box.HasOrigin() {
		return t, nil
	}
	if !opts.CanCompose {
		t.ScaleOnly = true
		t.Warning = "backend cannot compose transforms; rendering scale-only for non-zero box origin"
		return t, nil
	}

	// translate first so the box origin lands on pixel (0,0) before scaling
	t.Translated = true
	t.Tx, t.Ty = -box.X0, -box.Y0
	t.Matrix = Translate(t.Tx, t.Ty).Then(Scale(scale, scale))
	return t, nil
}

// ExpectedPixels returns the pixel size a box should rasterize to at scale.
func ExpectedPixels(box PageBox, scale float64) (int, int) {
	return int(math.Round(box.WidthPt() * scale)), int(math.Round(box.HeightPt() * scale))
}
