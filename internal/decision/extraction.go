package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/workorder-intake/constants"
)

// ErrMalformedExtraction marks OCR results the engine cannot reason about.
var ErrMalformedExtraction = errors.New("malformed extraction")

// Extraction is one OCR result handed to the engine.
type Extraction struct {
	IdentifierText  string                    `json:"identifier_text"`
	ConfidenceLabel constants.ConfidenceLabel `json:"confidence_label"`
	ConfidenceRaw   float64                   `json:"confidence_raw"`
}

// Canonical checks the label is known and the raw score lies in [0,1], and returns
// x with its label in canonical spelling.
func (x Extraction) Canonical() (Extraction, error) {
	label, ok := constants.ParseConfidenceLabel(string(x.ConfidenceLabel))
	if !ok {
		return x, fmt.Errorf("%w: unknown confidence label %q", ErrMalformedExtraction, x.ConfidenceLabel)
	}
	if math.IsNaN(x.ConfidenceRaw) || x.ConfidenceRaw < 0 || x.ConfidenceRaw > 1 {
		return x, fmt.Errorf("%w: confidence_raw %v outside [0,1]", ErrMalformedExtraction, x.ConfidenceRaw)
	}
	x.ConfidenceLabel = label
	return x, nil
}

const extractionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["confidence_label", "confidence_raw"],
  "properties": {
    "identifier_text": {"type": ["string", "null"]},
    "confidence_label": {"type": "string", "minLength": 1},
    "confidence_raw": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var extractionValidator = jsonschema.MustCompileString("extraction.json", extractionSchema)

// ParseExtraction decodes an OCR result supplied by an external engine. Label
// spellings are canonicalized ("HIGH", "med").
func ParseExtraction(raw []byte) (Extraction, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	if err := extractionValidator.Validate(doc); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	var wire struct {
		IdentifierText  *string `json:"identifier_text"`
		ConfidenceLabel string  `json:"confidence_label"`
		ConfidenceRaw   float64 `json:"confidence_raw"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	label, ok := constants.ParseConfidenceLabel(wire.ConfidenceLabel)
	if !ok {
		return Extraction{}, fmt.Errorf("%w: unknown confidence label %q", ErrMalformedExtraction, wire.ConfidenceLabel)
	}
	x := Extraction{ConfidenceLabel: label, ConfidenceRaw: wire.ConfidenceRaw}
	if wire.IdentifierText != nil {
		x.IdentifierText = *wire.IdentifierText
	}
	return x, nil
}
