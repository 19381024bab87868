package region

import (
	"fmt"
	"image"
	"math"

	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
)

// Capture turns a pixel selection on a rendered page into a TemplateRegion.
//
// widthPx/heightPx are the dimensions of the reconciled render, so the percentages
// are relative to the same crop-preferred box the mapper later applies them to.
func Capture(page int, sel image.Rectangle, widthPx, heightPx int) (TemplateRegion, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return TemplateRegion{}, &geometry.Error{Kind: geometry.ErrNoValidPageBox, Msg: "rendered page has no pixels"}
	}
	sel = sel.Canon().Intersect(image.Rect(0, 0, widthPx, heightPx))
	if sel.Empty() {
		return TemplateRegion{}, &geometry.Error{Kind: geometry.ErrDegenerateRegion, Msg: "selection lies outside the page"}
	}
	r := TemplateRegion{
		Page:       page,
		XPct:       round6(float64(sel.Min.X) / float64(widthPx)),
		YPct:       round6(float64(sel.Min.Y) / float64(heightPx)),
		WPct:       round6(float64(sel.Dx()) / float64(widthPx)),
		HPct:       round6(float64(sel.Dy()) / float64(heightPx)),
		Convention: ConventionCropPreferred,
	}
	if err := r.Validate(); err != nil {
		return TemplateRegion{}, fmt.Errorf("capture region: %w", err)
	}
	return r, nil
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

func pageMsg(page, count int) string {
	return fmt.Sprintf("page %d of %d", page, count)
}
