package ocr

import (
	"math"

	"github.com/joseph-ayodele/workorder-intake/constants"
)

const (
	DefaultHighThreshold   = 0.85
	DefaultMediumThreshold = 0.60
)

// Labeler buckets raw OCR confidence into high/medium/low.
type Labeler struct {
	High   float64
	Medium float64
}

// NewLabeler returns a labeler, falling back to the defaults for unusable thresholds.
func NewLabeler(high, medium float64) Labeler {
	if high <= 0 || high > 1 {
		high = DefaultHighThreshold
	}
	if medium <= 0 || medium > high {
		medium = math.Min(DefaultMediumThreshold, high)
	}
	return Labeler{High: high, Medium: medium}
}

// Label returns high when raw >= High, medium when raw >= Medium, else low.
// NaN is low.
func (l Labeler) Label(raw float64) constants.ConfidenceLabel {
	switch {
	case math.IsNaN(raw):
		return constants.ConfidenceLow
	case raw >= l.High:
		return constants.ConfidenceHigh
	case raw >= l.Medium:
		return constants.ConfidenceMedium
	default:
		return constants.ConfidenceLow
	}
}
