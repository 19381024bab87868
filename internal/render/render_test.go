package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
)

type fakePage struct {
	crop, media, bounds any
}

func (p fakePage) Box(kind geometry.BoxKind) any {
	if kind == geometry.BoxCrop {
		return p.crop
	}
	return p.media
}

func (p fakePage) Bounds() any { return p.bounds }

type fakeDoc struct {
	pages     []fakePage
	compose   bool
	img       image.Image
	renderErr error
	lastT     geometry.Transform
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) Page(i int) (geometry.PageHandle, error) { return d.pages[i], nil }

func (d *fakeDoc) Render(_ context.Context, _ int, t geometry.Transform) (image.Image, error) {
	d.lastT = t
	return d.img, d.renderErr
}

func (d *fakeDoc) ComposesTransforms() bool { return d.compose }

func (d *fakeDoc) Close() error { return nil }

func blank(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func newTestRasterizer() *Rasterizer {
	return NewRasterizer(Options{MaxWidthPx: 1400, DefaultScale: 2.0, TolerancePx: 8}, nil)
}

func TestRenderPageLetter(t *testing.T) {
	doc := &fakeDoc{
		pages:   []fakePage{{media: []float64{0, 0, 612, 792}, bounds: []float64{0, 0, 612, 792}}},
		compose: true,
		img:     blank(1224, 1584),
	}
	got, err := newTestRasterizer().RenderPage(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	if got.Scale != 2.0 || got.WidthPx != 1224 || got.HeightPx != 1584 {
		t.Errorf("RenderPage() = scale %v %dx%d, want 2.0 1224x1584", got.Scale, got.WidthPx, got.HeightPx)
	}
	if got.Reconciled || got.BoxSource != geometry.SourceMediaBox {
		t.Errorf("Reconciled = %v source = %v, want media box kept", got.Reconciled, got.BoxSource)
	}
	if len(got.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", got.Warnings)
	}
}

func TestRenderPageNonZeroOrigin(t *testing.T) {
	page := fakePage{crop: []float64{-36, -36, 576, 756}, media: []float64{-36, -36, 576, 756}}

	t.Run("composing backend gets translation", func(t *testing.T) {
		doc := &fakeDoc{pages: []fakePage{page}, compose: true, img: blank(1224, 1584)}
		got, err := newTestRasterizer().RenderPage(context.Background(), doc, 0)
		if err != nil {
			t.Fatalf("RenderPage() error = %v", err)
		}
		if !doc.lastT.Translated || doc.lastT.Tx != 36 || doc.lastT.Ty != 36 {
			t.Errorf("transform = %+v, want translate(36,36)", doc.lastT)
		}
		if len(got.Warnings) != 0 {
			t.Errorf("Warnings = %v, want none", got.Warnings)
		}
	})

	t.Run("scale-only backend is flagged", func(t *testing.T) {
		doc := &fakeDoc{pages: []fakePage{page}, compose: false, img: blank(1224, 1584)}
		got, err := newTestRasterizer().RenderPage(context.Background(), doc, 0)
		if err != nil {
			t.Fatalf("RenderPage() error = %v", err)
		}
		if !doc.lastT.ScaleOnly {
			t.Errorf("transform = %+v, want scale-only", doc.lastT)
		}
		if len(got.Warnings) != 1 {
			t.Errorf("Warnings = %v, want scale-only warning", got.Warnings)
		}
	})
}

func TestRenderPageReconcilesIgnoredCropBox(t *testing.T) {
	doc := &fakeDoc{
		pages: []fakePage{{
			crop:   []float64{36, 36, 576, 756},
			media:  []float64{0, 0, 612, 792},
			bounds: []float64{0, 0, 612, 792},
		}},
		compose: true,
		img:     blank(1224, 1584), // backend drew the whole media box
	}
	got, err := newTestRasterizer().RenderPage(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	if !got.Reconciled || got.BoxSource != geometry.SourceBounds {
		t.Fatalf("RenderPage() = %+v, want reconciled to bounds", got)
	}
	if got.Box != (geometry.PageBox{X0: 0, Y0: 0, X1: 612, Y1: 792}) {
		t.Errorf("Box = %+v, want media bounds", got.Box)
	}
	if len(got.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one mismatch warning", got.Warnings)
	}
}

func TestRenderPageFailures(t *testing.T) {
	letter := fakePage{media: []float64{0, 0, 612, 792}}
	tests := []struct {
		name  string
		doc   *fakeDoc
		index int
		want  error
	}{
		{"page out of range", &fakeDoc{pages: []fakePage{letter}, img: blank(1, 1)}, 1, geometry.ErrPageOutOfRange},
		{"no valid box", &fakeDoc{pages: []fakePage{{}}, img: blank(1, 1)}, 0, geometry.ErrNoValidPageBox},
		{"renderer error", &fakeDoc{pages: []fakePage{letter}, renderErr: errors.New("boom")}, 0, ErrRenderFailed},
		{"nil image", &fakeDoc{pages: []fakePage{letter}}, 0, ErrEmptyRaster},
		{"empty image", &fakeDoc{pages: []fakePage{letter}, img: image.NewGray(image.Rect(0, 0, 0, 0))}, 0, ErrEmptyRaster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRasterizer().RenderPage(context.Background(), tt.doc, tt.index)
			if !errors.Is(err, tt.want) {
				t.Errorf("RenderPage() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCropForOCR(t *testing.T) {
	img := blank(1224, 1584)
	// dark block at the top-left of the region of interest
	for y := 198; y < 220; y++ {
		for x := 612; x < 650; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	page := &RenderedPage{
		Image:    img,
		Box:      geometry.PageBox{X0: 0, Y0: 0, X1: 612, Y1: 792},
		Scale:    2.0,
		WidthPx:  1224,
		HeightPx: 1584,
	}
	rect := geometry.PageBox{X0: 306, Y0: 99, X1: 459, Y1: 148.5}

	t.Run("same density copies pixels", func(t *testing.T) {
		crop, err := CropForOCR(page, rect, 144)
		if err != nil {
			t.Fatalf("CropForOCR() error = %v", err)
		}
		if crop.SourcePx != image.Rect(612, 198, 918, 297) {
			t.Errorf("SourcePx = %v", crop.SourcePx)
		}
		decoded, err := png.Decode(bytes.NewReader(crop.PNG))
		if err != nil {
			t.Fatalf("decode crop: %v", err)
		}
		if decoded.Bounds().Dx() != 306 || decoded.Bounds().Dy() != 99 {
			t.Errorf("crop size = %v, want 306x99", decoded.Bounds())
		}
		if g := color.GrayModel.Convert(decoded.At(5, 5)).(color.Gray); g.Y != 0 {
			t.Errorf("pixel (5,5) = %d, want dark", g.Y)
		}
		if g := color.GrayModel.Convert(decoded.At(200, 80)).(color.Gray); g.Y != 0xff {
			t.Errorf("pixel (200,80) = %d, want white", g.Y)
		}
	})

	t.Run("higher density upsamples", func(t *testing.T) {
		crop, err := CropForOCR(page, rect, 288)
		if err != nil {
			t.Fatalf("CropForOCR() error = %v", err)
		}
		if crop.WidthPx != 612 || crop.HeightPx != 198 {
			t.Errorf("crop size = %dx%d, want 612x198", crop.WidthPx, crop.HeightPx)
		}
	})

	t.Run("outside image", func(t *testing.T) {
		_, err := CropForOCR(page, geometry.PageBox{X0: 700, Y0: 0, X1: 800, Y1: 10}, 144)
		if !errors.Is(err, geometry.ErrDegenerateRegion) {
			t.Errorf("CropForOCR() error = %v, want ErrDegenerateRegion", err)
		}
	})
}
