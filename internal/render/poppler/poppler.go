// Package poppler implements the render capability with poppler-utils
// (pdfinfo for page boxes, pdftoppm for rasterization).
package poppler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/workorder-intake/internal/command"
	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
	"github.com/joseph-ayodele/workorder-intake/internal/render"
)

type Config struct {
	Pdfinfo  string // binary name or absolute path; if empty -> "pdfinfo"
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	TempDir  string // parent for per-document scratch dirs; "" uses os.TempDir()
}

// Engine opens documents by shelling out to poppler.
type Engine struct {
	cfg    Config
	runner command.Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, runner command.Runner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = command.NewExecRunner(logger)
	}
	if cfg.Pdfinfo == "" {
		cfg.Pdfinfo = "pdfinfo"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	return &Engine{cfg: cfg, runner: runner, logger: logger}
}

// Open writes pdf to a scratch directory and reads its page boxes.
func (e *Engine) Open(ctx context.Context, pdf []byte) (render.Document, error) {
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty document", render.ErrRenderFailed)
	}
	dir, err := os.MkdirTemp(e.cfg.TempDir, "wo-pdf-*")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	doc := &Document{engine: e, dir: dir, path: path}

	out, errb, err := e.runner.Run(ctx, e.cfg.Pdfinfo, path)
	if err != nil {
		_ = doc.Close()
		return nil, fmt.Errorf("pdfinfo: %w: %s", err, command.Truncate(string(errb), 512))
	}
	n, err := parsePageCount(out)
	if err != nil || n <= 0 {
		_ = doc.Close()
		return nil, fmt.Errorf("%w: document reports no pages", render.ErrRenderFailed)
	}

	// pdfinfo -f 1 -l N -box <file>
	out, errb, err = e.runner.Run(ctx, e.cfg.Pdfinfo, "-f", "1", "-l", strconv.Itoa(n), "-box", path)
	if err != nil {
		_ = doc.Close()
		return nil, fmt.Errorf("pdfinfo -box: %w: %s", err, command.Truncate(string(errb), 512))
	}
	doc.pages = parseBoxes(out, n)
	e.logger.Debug("poppler.open", "pages", n, "bytes", len(pdf))
	return doc, nil
}

// Document is an opened PDF backed by a scratch file.
type Document struct {
	engine *Engine
	dir    string
	path   string
	pages  []pageInfo
}

func (d *Document) PageCount() int { return len(d.pages) }

func (d *Document) Page(index int) (geometry.PageHandle, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, &geometry.Error{Kind: geometry.ErrPageOutOfRange, Msg: fmt.Sprintf("page index %d of %d", index, len(d.pages))}
	}
	return Page(d.pages[index]), nil
}

// ComposesTransforms is true: pdftoppm -cropbox draws the box origin at pixel (0,0)
// and scales by the requested resolution.
func (d *Document) ComposesTransforms() bool { return true }

// Render rasterizes one page to PNG via pdftoppm and decodes it.
func (d *Document) Render(ctx context.Context, index int, t geometry.Transform) (image.Image, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, &geometry.Error{Kind: geometry.ErrPageOutOfRange, Msg: fmt.Sprintf("page index %d of %d", index, len(d.pages))}
	}
	if t.Scale <= 0 || math.IsNaN(t.Scale) {
		return nil, &geometry.Error{Kind: geometry.ErrTransformFailed, Msg: "non-positive scale"}
	}
	p := strconv.Itoa(index + 1)
	prefix := filepath.Join(d.dir, "page-"+p)
	dpi := strconv.FormatFloat(72*t.Scale, 'f', 4, 64)

	// pdftoppm -f p -l p -r <dpi> -cropbox -png -singlefile <in.pdf> <prefix>
	_, errb, err := d.engine.runner.Run(ctx, d.engine.cfg.Pdftoppm,
		"-f", p, "-l", p, "-r", dpi, "-cropbox", "-png", "-singlefile", d.path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, command.Truncate(string(errb), 512))
	}
	raw, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm produced no image: %v", render.ErrEmptyRaster, err)
	}
	defer os.Remove(prefix + ".png")

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode page %s: %w", p, err)
	}
	return img, nil
}

// Close removes the scratch directory.
func (d *Document) Close() error {
	if d.dir == "" {
		return nil
	}
	err := os.RemoveAll(d.dir)
	d.dir = ""
	return err
}

// Page exposes pdfinfo's boxes for one page.
type Page pageInfo

func (p Page) Box(kind geometry.BoxKind) any {
	switch kind {
	case geometry.BoxCrop:
		if p.Crop == nil {
			return nil
		}
		return p.Crop
	case geometry.BoxMedia:
		if p.Media == nil {
			return nil
		}
		return p.Media
	}
	return nil
}

// Bounds is the area pdftoppm actually draws: the crop box clipped to the media
// box, with width and height swapped for quarter-turn rotations.
func (p Page) Bounds() any {
	media, ok := geometry.ParseBox(p.Box(geometry.BoxMedia))
	if !ok {
		return nil
	}
	media = media.Normalize()
	eff := media
	if crop, ok := geometry.ParseBox(p.Box(geometry.BoxCrop)); ok {
		crop = crop.Normalize()
		eff = geometry.PageBox{
			X0: math.Max(crop.X0, media.X0),
			Y0: math.Max(crop.Y0, media.Y0),
			X1: math.Min(crop.X1, media.X1),
			Y1: math.Min(crop.Y1, media.Y1),
		}
	}
	if p.Rotate == 90 || p.Rotate == 270 {
		eff = geometry.PageBox{X0: eff.X0, Y0: eff.Y0, X1: eff.X0 + eff.HeightPt(), Y1: eff.Y0 + eff.WidthPt()}
	}
	return eff
}
