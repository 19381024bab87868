package geometry

import (
	"log/slog"
	"math"
)

// BoxKind names a page box as stored in the PDF.
type BoxKind string

const (
	BoxCrop  BoxKind = "crop"
	BoxMedia BoxKind = "media"
)

// BoxSource records which strategy produced a PageBox.
type BoxSource string

const (
	SourceCropBox  BoxSource = "cropbox"
	SourceMediaBox BoxSource = "mediabox"
	SourceBounds   BoxSource = "bounds"
)

// PageHandle is the capability a PDF adapter exposes for one opened page.
//
// Box and Bounds may return nil, a 4-element []float64 or [4]float64, a PageBox,
// or a map with x0/y0/x1/y1 keys; anything else is treated as absent.
type PageHandle interface {
	Box(kind BoxKind) any
	Bounds() any
}

// Strategy is one named way of reading a page box.
type Strategy struct {
	Source BoxSource
	Read   func(PageHandle) (PageBox, bool)
}

// DefaultStrategies is the crop-box-preferred resolution order.
var DefaultStrategies = []Strategy{
	{Source: SourceCropBox, Read: func(p PageHandle) (PageBox, bool) { return ParseBox(p.Box(BoxCrop)) }},
	{Source: SourceMediaBox, Read: func(p PageHandle) (PageBox, bool) { return ParseBox(p.Box(BoxMedia)) }},
	{Source: SourceBounds, Read: BoundsBox},
}

// BoundsBox reads the page's generic bounds accessor.
func BoundsBox(p PageHandle) (PageBox, bool) {
	return ParseBox(p.Bounds())
}

// ResolvedBox is a page box plus the strategy that produced it.
type ResolvedBox struct {
	Box    PageBox
	Source BoxSource
}

// Resolver picks the authoritative page box for a page.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewResolver builds a resolver. A nil strategy list uses DefaultStrategies.
func NewResolver(strategies []Strategy, logger *slog.Logger) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// Resolve walks the strategies in order and returns the first valid box.
func (r *Resolver) Resolve(page PageHandle) (ResolvedBox, error) {
	if page == nil {
		return ResolvedBox{}, errorf(ErrNoValidPageBox, "nil page handle")
	}
	for _, s := range r.strategies {
		box, ok := s.Read(page)
		if !ok {
			r.logger.Debug("page box strategy yielded nothing", "source", s.Source)
			continue
		}
		box = box.Normalize()
		if !box.IsValid() {
			r.logger.Debug("page box strategy yielded degenerate box", "source", s.Source, "box", box)
			continue
		}
		return ResolvedBox{Box: box, Source: s.Source}, nil
	}
	return ResolvedBox{}, errorf(ErrNoValidPageBox, "tried %d strategies", len(r.strategies))
}

// ResolvePageBox resolves with the default crop-box-preferred strategies.
func ResolvePageBox(page PageHandle) (ResolvedBox, error) {
	return NewResolver(nil, nil).Resolve(page)
}

// ParseBox converts the supported box shapes into a PageBox. It does not
// check validity beyond the values being numbers.
func ParseBox(v any) (PageBox, bool) {
	switch b := v.(type) {
	case nil:
		return PageBox{}, false
	case PageBox:
		return b, true
	case *PageBox:
		if b == nil {
			return PageBox{}, false
		}
		return *b, true
	case [4]float64:
		return PageBox{X0: b[0], Y0: b[1], X1: b[2], Y1: b[3]}, true
	case []float64:
		if len(b) != 4 {
			return PageBox{}, false
		}
		return PageBox{X0: b[0], Y0: b[1], X1: b[2], Y1: b[3]}, true
	case []any:
		if len(b) != 4 {
			return PageBox{}, false
		}
		var out [4]float64
		for i, e := range b {
			f, ok := toFloat(e)
			if !ok {
				return PageBox{}, false
			}
			out[i] = f
		}
		return PageBox{X0: out[0], Y0: out[1], X1: out[2], Y1: out[3]}, true
	case map[string]float64:
		return fromNamed(func(k string) (float64, bool) { f, ok := b[k]; return f, ok })
	case map[string]any:
		return fromNamed(func(k string) (float64, bool) { return toFloat(b[k]) })
	default:
		return PageBox{}, false
	}
}

func fromNamed(get func(string) (float64, bool)) (PageBox, bool) {
	x0, ok0 := get("x0")
	y0, ok1 := get("y0")
	x1, ok2 := get("x1")
	y1, ok3 := get("y1")
	if !(ok0 && ok1 && ok2 && ok3) {
		return PageBox{}, false
	}
	return PageBox{X0: x0, Y0: y0, X1: x1, Y1: y1}, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
