// Package region maps page-relative template regions onto rendered pages.
package region

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/joseph-ayodele/workorder-intake/internal/common"
	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
)

// ConventionCropPreferred marks percentages measured against the crop-box-preferred
// page box (crop, else media, else bounds).
const ConventionCropPreferred = "crop-preferred"

// DefaultCropDPI is the pixel density OCR crops are produced at.
const DefaultCropDPI = 300

// TemplateRegion is a page-relative rectangle holding a work-order identifier.
type TemplateRegion struct {
	Page       int     `json:"page"`
	XPct       float64 `json:"x_pct"`
	YPct       float64 `json:"y_pct"`
	WPct       float64 `json:"w_pct"`
	HPct       float64 `json:"h_pct"`
	Convention string  `json:"convention,omitempty"`
}

// Validate checks page >= 1, the offsets in [0,1] and the extents in (0,1].
func (r TemplateRegion) Validate() error {
	v := common.NewValidator()
	v.Field("page", r.Page, common.MinInt(1))
	v.Field("x_pct", r.XPct, common.UnitInterval)
	v.Field("y_pct", r.YPct, common.UnitInterval)
	v.Field("w_pct", r.WPct, common.Fraction)
	v.Field("h_pct", r.HPct, common.Fraction)
	return v.Error()
}

// PageIndex returns the zero-based page index, checked against pageCount.
func (r TemplateRegion) PageIndex(pageCount int) (int, error) {
	if r.Page < 1 || r.Page > pageCount {
		return 0, &geometry.Error{Kind: geometry.ErrPageOutOfRange, Msg: pageMsg(r.Page, pageCount)}
	}
	return r.Page - 1, nil
}

// Decode parses a JSON region, rejecting unknown fields, and validates it.
func Decode(raw []byte) (TemplateRegion, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var r TemplateRegion
	if err := dec.Decode(&r); err != nil {
		return TemplateRegion{}, fmt.Errorf("decode region: %w", err)
	}
	if err := r.Validate(); err != nil {
		return TemplateRegion{}, err
	}
	return r, nil
}

func (r TemplateRegion) convention() string {
	if r.Convention == "" {
		return ConventionCropPreferred
	}
	return r.Convention
}

// Map converts the region to an absolute point-space rectangle inside box, clamped
// to the box edges.
func Map(r TemplateRegion, box geometry.PageBox) (geometry.PageBox, error) {
	if c := r.convention(); c != ConventionCropPreferred {
		return geometry.PageBox{}, &geometry.Error{Kind: geometry.ErrBoxConventionMismatch, Msg: "region captured with " + c}
	}
	if err := r.Validate(); err != nil {
		return geometry.PageBox{}, &geometry.Error{Kind: geometry.ErrDegenerateRegion, Msg: err.Error()}
	}
	if !box.IsValid() {
		return geometry.PageBox{}, &geometry.Error{Kind: geometry.ErrNoValidPageBox, Msg: "cannot map region onto invalid box"}
	}

	w, h := box.WidthPt(), box.HeightPt()
	x := box.X0 + r.XPct*w
	y := box.Y0 + r.YPct*h
	out := geometry.PageBox{
		X0: math.Max(x, box.X0),
		Y0: math.Max(y, box.Y0),
		X1: math.Min(x+r.WPct*w, box.X1),
		Y1: math.Min(y+r.HPct*h, box.Y1),
	}
	if !out.IsValid() {
		return geometry.PageBox{}, &geometry.Error{Kind: geometry.ErrDegenerateRegion, Msg: "region collapses after clamping to page"}
	}
	return out, nil
}

// ToPixels converts a point rectangle inside box to pixels at dpi. Pixel (0,0) is the
// box origin; the result is clamped to the box's pixel extent at that density.
func ToPixels(rect, box geometry.PageBox, dpi float64) (image.Rectangle, error) {
	if dpi <= 0 {
		return image.Rectangle{}, &geometry.Error{Kind: geometry.ErrDegenerateRegion, Msg: "non-positive dpi"}
	}
	pxPerPt := dpi / 72
	maxW, maxH := geometry.ExpectedPixels(box, pxPerPt)
	px := func(v, origin float64, limit int) int {
		n := int(math.Round((v - origin) * pxPerPt))
		if n < 0 {
			return 0
		}
		if n > limit {
			return limit
		}
		return n
	}
	out := image.Rect(
		px(rect.X0, box.X0, maxW), px(rect.Y0, box.Y0, maxH),
		px(rect.X1, box.X0, maxW), px(rect.Y1, box.Y0, maxH),
	)
	if out.Empty() {
		return image.Rectangle{}, &geometry.Error{Kind: geometry.ErrDegenerateRegion, Msg: "pixel crop is empty"}
	}
	return out, nil
}

// MapToCrop maps a region straight to its pixel crop at dpi.
func MapToCrop(r TemplateRegion, box geometry.PageBox, dpi float64) (geometry.PageBox, image.Rectangle, error) {
	pt, err := Map(r, box)
	if err != nil {
		return geometry.PageBox{}, image.Rectangle{}, err
	}
	px, err := ToPixels(pt, box, dpi)
	if err != nil {
		return geometry.PageBox{}, image.Rectangle{}, err
	}
	return pt, px, nil
}
