package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
	"github.com/joseph-ayodele/workorder-intake/internal/region"
)

// Crop is an OCR-ready image cut from a rendered page.
type Crop struct {
	PNG      []byte
	SourcePx image.Rectangle // rectangle on the rendered page
	WidthPx  int
	HeightPx int
}

// CropForOCR cuts rectPt out of the rendered page and resamples it to dpi.
func CropForOCR(page *RenderedPage, rectPt geometry.PageBox, dpi int) (*Crop, error) {
	if page == nil || page.Image == nil {
		return nil, ErrEmptyRaster
	}
	renderDPI := 72 * page.Scale
	src, err := region.ToPixels(rectPt, page.Box, renderDPI)
	if err != nil {
		return nil, err
	}
	b := page.Image.Bounds()
	src = src.Add(b.Min).Intersect(b)
	if src.Empty() {
		return nil, &geometry.Error{Kind: geometry.ErrDegenerateRegion, Msg: "crop falls outside rendered image"}
	}

	factor := 1.0
	if dpi > 0 {
		factor = float64(dpi) / renderDPI
	}
	w := max(1, int(math.Round(float64(src.Dx())*factor)))
	h := max(1, int(math.Round(float64(src.Dy())*factor)))

	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), page.Image, src.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), page.Image, src, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return &Crop{PNG: buf.Bytes(), SourcePx: src, WidthPx: w, HeightPx: h}, nil
}
