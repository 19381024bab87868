// Package pipeline runs one document from bytes to a persisted decision:
// issuer match, render, region crop, OCR, decide, write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/decision"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/ingest"
	"github.com/joseph-ayodele/workorder-intake/internal/issuer"
	"github.com/joseph-ayodele/workorder-intake/internal/ocr"
	"github.com/joseph-ayodele/workorder-intake/internal/records"
	"github.com/joseph-ayodele/workorder-intake/internal/region"
	"github.com/joseph-ayodele/workorder-intake/internal/render"
)

// Writer persists decision outcomes.
type Writer interface {
	Write(ctx context.Context, out decision.Outcome, meta records.Meta) (records.Result, error)
}

// Deps are the collaborators a Processor drives. All are caller-owned.
type Deps struct {
	Matcher    *issuer.Matcher
	Engine     render.Engine
	Rasterizer *render.Rasterizer
	Recognizer ocr.Recognizer
	Decider    *decision.Engine
	Lookup     decision.Lookup
	Writer     Writer
}

type Config struct {
	CropDPI        int
	Labeler        ocr.Labeler
	LookupAttempts int
	LookupBackoff  time.Duration
	// Parallelism bounds ProcessAll; 0 means one document at a time.
	Parallelism int
}

// Options adjust a single run.
type Options struct {
	// Override is a human-corrected identifier (see Reprocess).
	Override string
	// IssuerKey selects the profile directly instead of matching the sender.
	IssuerKey string
	// Extraction is an OCR result produced elsewhere; render and OCR are skipped.
	Extraction *decision.Extraction
	// Fields are work-order details merged into the record on a match.
	Fields *entity.WorkOrder
}

// Result describes what happened to one document.
type Result struct {
	DocHash     string
	Filename    string
	Issuer      string
	Outcome     decision.Outcome
	Record      records.Result
	Recognition *ocr.Recognition
	CropPx      image.Rectangle
	Warnings    []string
	Duration    time.Duration
	// Err is set by ProcessAll on the entry of a document that failed.
	Err error
}

type Processor struct {
	deps   Deps
	cfg    Config
	lookup decision.Lookup
	logger *slog.Logger
}

func NewProcessor(deps Deps, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CropDPI <= 0 {
		cfg.CropDPI = region.DefaultCropDPI
	}
	if cfg.Labeler.High == 0 {
		cfg.Labeler = ocr.NewLabeler(ocr.DefaultHighThreshold, ocr.DefaultMediumThreshold)
	}
	if deps.Decider == nil {
		deps.Decider = decision.NewEngine(logger)
	}
	var lookup decision.Lookup
	if deps.Lookup != nil {
		lookup = decision.WithRetry(deps.Lookup, cfg.LookupAttempts, cfg.LookupBackoff, logger)
	}
	return &Processor{deps: deps, cfg: cfg, lookup: lookup, logger: logger}
}

// Process decides doc and persists the outcome. Per-document failures (unknown
// issuer, broken PDF, OCR errors) end as review items, not errors. The error return
// is reserved for the case where nothing could be persisted.
func (p *Processor) Process(ctx context.Context, doc ingest.Document, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{DocHash: doc.Hash, Filename: doc.Filename}
	log := p.logger.With("doc_hash", shortHash(doc.Hash), "filename", doc.Filename, "source", doc.Source)

	profile, err := p.resolveIssuer(doc.Sender, opts.IssuerKey)
	if err != nil {
		log.Warn("processor.issuer.unmatched", "sender", doc.Sender, "error", err)
		res.Outcome = needsAttention(constants.ReasonNoIssuerProfile, err.Error())
		return p.persist(ctx, res, doc, opts, start)
	}
	res.Issuer = profile.IssuerKey

	var ex decision.Extraction
	switch {
	case opts.Extraction != nil:
		ex = *opts.Extraction
	case opts.Override != "":
		// the identifier was read by a person; nothing to render
	default:
		ex, err = p.extract(ctx, doc, profile, res)
		if err != nil {
			var se *stageError
			if errors.As(err, &se) && se.stage == stageOCR {
				log.Error("processor.ocr.failed", "issuer", profile.IssuerKey, "error", err)
				res.Outcome = needsAttention(constants.ReasonNoIdentifierExtracted, err.Error())
			} else {
				log.Error("processor.render.failed", "issuer", profile.IssuerKey, "error", err)
				res.Outcome = needsAttention(constants.ReasonRenderingFailed, err.Error())
			}
			return p.persist(ctx, res, doc, opts, start)
		}
	}

	res.Outcome = p.deps.Decider.Decide(ctx, decision.Input{
		Issuer:     profile.IssuerKey,
		Extraction: ex,
		Override:   opts.Override,
	}, p.lookup)
	return p.persist(ctx, res, doc, opts, start)
}

// Reprocess runs doc again with a human-supplied identifier. The override skips the
// confidence gate but still has to resolve to an existing work order.
func (p *Processor) Reprocess(ctx context.Context, doc ingest.Document, override string, opts Options) (*Result, error) {
	if override == "" {
		return nil, fmt.Errorf("reprocess %s: override identifier is required", shortHash(doc.Hash))
	}
	opts.Override = override
	return p.Process(ctx, doc, opts)
}

// ProcessAll processes docs concurrently, bounded by Config.Parallelism. Results keep
// the order of docs; a document that failed still gets an entry carrying Err, and
// its error is joined into the returned error.
func (p *Processor) ProcessAll(ctx context.Context, docs []ingest.Document, opts Options) ([]*Result, error) {
	results := make([]*Result, len(docs))
	errs := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.cfg.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, doc := range docs {
		g.Go(func() error {
			res, err := p.Process(gctx, doc, opts)
			if err != nil {
				if res == nil {
					res = &Result{DocHash: doc.Hash, Filename: doc.Filename}
				}
				res.Err = err
			}
			results[i], errs[i] = res, err
			// one document never cancels the others
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

func (p *Processor) resolveIssuer(sender, issuerKey string) (*entity.IssuerProfile, error) {
	if p.deps.Matcher == nil {
		return nil, errors.New("no issuer profiles configured")
	}
	if issuerKey != "" {
		for i := range p.deps.Matcher.Profiles() {
			if prof := &p.deps.Matcher.Profiles()[i]; prof.IssuerKey == issuerKey {
				return prof, nil
			}
		}
		return nil, fmt.Errorf("unknown issuer %q", issuerKey)
	}
	m, ok := p.deps.Matcher.Match(sender)
	if !ok {
		return nil, fmt.Errorf("no issuer profile matches sender %q", sender)
	}
	return m.Profile, nil
}

func (p *Processor) persist(ctx context.Context, res *Result, doc ingest.Document, opts Options, start time.Time) (*Result, error) {
	if p.deps.Writer == nil {
		res.Duration = time.Since(start)
		return res, nil
	}
	rec, err := p.deps.Writer.Write(ctx, res.Outcome, records.Meta{
		Issuer:   res.Issuer,
		DocHash:  doc.Hash,
		Filename: doc.Filename,
		Sender:   doc.Sender,
		Source:   doc.Source,
		PDF:      doc.Bytes,
		Fields:   opts.Fields,
	})
	res.Duration = time.Since(start)
	if err != nil {
		p.logger.Error("processor.persist.failed", "doc_hash", shortHash(doc.Hash), "status", res.Outcome.Status, "error", err)
		return res, err
	}
	res.Record = rec
	p.logger.Info("processor.done",
		"doc_hash", shortHash(doc.Hash),
		"issuer", res.Issuer,
		"status", rec.Status,
		"reason", rec.Reason,
		"work_order_key", rec.Key,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func needsAttention(reason constants.Reason, detail string) decision.Outcome {
	return decision.Outcome{Status: constants.StatusNeedsAttention, Reason: reason, Detail: detail}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
