// Package render rasterizes PDF pages through a caller-owned engine and reconciles
// the resulting pixels with page geometry.
package render

import (
	"context"
	"errors"
	"image"

	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
)

var (
	ErrEmptyRaster  = errors.New("rasterization returned no data")
	ErrRenderFailed = errors.New("rasterization failed")
)

// Engine opens PDF documents. Hosts construct one at startup and pass it down.
type Engine interface {
	Open(ctx context.Context, pdf []byte) (Document, error)
}

// Document is one opened PDF.
type Document interface {
	PageCount() int
	Page(index int) (geometry.PageHandle, error)
	// Render rasterizes the page at index with t applied.
	Render(ctx context.Context, index int, t geometry.Transform) (image.Image, error)
	// ComposesTransforms reports whether Render honours a translate-then-scale
	// transform rather than scale alone.
	ComposesTransforms() bool
	Close() error
}

// RenderedPage is a rasterized page together with the geometry consumers must use
// to map coordinates onto it.
type RenderedPage struct {
	Index      int
	Image      image.Image
	Box        geometry.PageBox
	BoxSource  geometry.BoxSource
	Scale      float64
	WidthPx    int
	HeightPx   int
	Reconciled bool // Box was replaced by the renderer's effective bounds
	Warnings   []string
}
