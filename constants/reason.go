package constants

import "strings"

// Reason explains why a document ended in its decision state.
type Reason string

const (
	ReasonMatched                 Reason = "Matched"
	ReasonNoIdentifierExtracted   Reason = "NoIdentifierExtracted"
	ReasonLowConfidenceExtraction Reason = "LowConfidenceExtraction"
	ReasonOriginalNotFound        Reason = "OriginalNotFound"
	ReasonRenderingFailed         Reason = "RenderingFailed"
	ReasonMalformedExtraction     Reason = "MalformedExtraction"
	ReasonNoIssuerProfile         Reason = "NoIssuerProfile"
	ReasonPersistenceFailed       Reason = "PersistenceFailed"
)

// ConfidenceLabel is the coarse bucket derived from a raw OCR confidence.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

var allLabels = []ConfidenceLabel{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}

// LabelsAsStringSlice returns the label values in precedence order.
func LabelsAsStringSlice() []string {
	out := make([]string, len(allLabels))
	for i, l := range allLabels {
		out[i] = string(l)
	}
	return out
}

// ParseConfidenceLabel maps loose input ("HIGH", " med ") to a canonical label.
func ParseConfidenceLabel(input string) (ConfidenceLabel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]ConfidenceLabel{
		"hi":  ConfidenceHigh,
		"med": ConfidenceMedium,
		"mid": ConfidenceMedium,
		"lo":  ConfidenceLow,
	}
	if l, ok := synonyms[normalized]; ok {
		return l, true
	}
	for _, l := range allLabels {
		if normalized == string(l) {
			return l, true
		}
	}
	return "", false
}
