// Package decision turns an OCR extraction into a terminal decision state.
package decision

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/workorder"
)

// Outcome is the single result of deciding one document.
type Outcome struct {
	Status           constants.DecisionStatus
	Reason           constants.Reason
	Identifier       string // normalized; "" when none was extracted
	MatchedRecordKey workorder.Key
	ConfidenceRaw    float64
	ConfidenceLabel  constants.ConfidenceLabel
	Overridden       bool
	Detail           string
}

// AllowsArtifact reports whether the outcome may store the document binary.
func (o Outcome) AllowsArtifact() bool {
	return o.Status == constants.StatusAutoConfirmed
}

// Input is what the engine decides on.
type Input struct {
	Issuer     string
	Extraction Extraction
	// Override is a human-supplied identifier. When set it replaces the extracted
	// text and skips the confidence gate, but the lookup still has to succeed.
	Override string
}

// Lookup reports the key of the existing work order for key, or "" when none exists.
type Lookup interface {
	Lookup(ctx context.Context, key workorder.Key) (workorder.Key, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, key workorder.Key) (workorder.Key, error)

func (f LookupFunc) Lookup(ctx context.Context, key workorder.Key) (workorder.Key, error) {
	return f(ctx, key)
}

// Engine evaluates the decision rules.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Decide returns exactly one of AUTO_CONFIRMED or NEEDS_ATTENTION. It never fails:
// malformed input and lookup errors end in NEEDS_ATTENTION.
func (e *Engine) Decide(ctx context.Context, in Input, lookup Lookup) Outcome {
	out := e.decide(ctx, in, lookup)
	e.logger.Info("intake.decision",
		"issuer", in.Issuer,
		"identifier", out.Identifier,
		"status", out.Status,
		"reason", out.Reason,
		"confidence", out.ConfidenceRaw,
		"label", out.ConfidenceLabel,
		"override", out.Overridden,
		"work_order_key", out.MatchedRecordKey,
	)
	return out
}

func (e *Engine) decide(ctx context.Context, in Input, lookup Lookup) Outcome {
	ex := in.Extraction
	out := Outcome{
		Status:          constants.StatusNeedsAttention,
		ConfidenceRaw:   ex.ConfidenceRaw,
		ConfidenceLabel: ex.ConfidenceLabel,
	}

	var identifier string
	if in.Override != "" {
		out.Overridden = true
		identifier = workorder.NormalizeIdentifier(in.Override)
	} else {
		canon, err := ex.Canonical()
		if err != nil {
			out.Reason = constants.ReasonMalformedExtraction
			out.Detail = err.Error()
			return out
		}
		ex = canon
		out.ConfidenceLabel = ex.ConfidenceLabel
		identifier = workorder.NormalizeIdentifier(ex.IdentifierText)
	}
	out.Identifier = identifier

	// rule 1: nothing to look up
	if identifier == "" {
		out.Reason = constants.ReasonNoIdentifierExtracted
		return out
	}

	// rule 2: low confidence never auto-confirms, matched or not
	if !out.Overridden && ex.ConfidenceLabel == constants.ConfidenceLow {
		out.Reason = constants.ReasonLowConfidenceExtraction
		return out
	}

	// rule 3: existence lookup
	key := workorder.NewKey(in.Issuer, identifier)
	if key == "" || lookup == nil {
		out.Reason = constants.ReasonOriginalNotFound
		out.Detail = "no issuer to build a work order key"
		return out
	}
	matched, err := lookup.Lookup(ctx, key)
	if err != nil {
		e.logger.Warn("decision.lookup.failed", "work_order_key", key, "error", err)
		out.Reason = constants.ReasonOriginalNotFound
		out.Detail = "lookup failed: " + err.Error()
		return out
	}
	if matched == "" {
		out.Reason = constants.ReasonOriginalNotFound
		return out
	}

	out.Status = constants.StatusAutoConfirmed
	out.Reason = constants.ReasonMatched
	out.MatchedRecordKey = matched
	return out
}
