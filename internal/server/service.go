package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/common"
	"github.com/joseph-ayodele/workorder-intake/internal/decision"
	"github.com/joseph-ayodele/workorder-intake/internal/export"
	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
	"github.com/joseph-ayodele/workorder-intake/internal/ingest"
	"github.com/joseph-ayodele/workorder-intake/internal/issuer"
	"github.com/joseph-ayodele/workorder-intake/internal/pipeline"
	"github.com/joseph-ayodele/workorder-intake/internal/region"
	"github.com/joseph-ayodele/workorder-intake/internal/render"
	"github.com/joseph-ayodele/workorder-intake/internal/repository"
)

// IntakeService implements IntakeServer over the intake pipeline.
type IntakeService struct {
	matcher   *issuer.Matcher
	processor *pipeline.Processor
	decider   *decision.Engine
	lookup    decision.Lookup
	engine    render.Engine
	reviews   repository.ReviewRepository
	exporter  *export.Service
	cropDPI   int
	logger    *slog.Logger
}

// Deps wires the service. Any of Engine, Reviews and Exporter may be nil; the
// methods that need them then answer Unavailable.
type Deps struct {
	Matcher   *issuer.Matcher
	Processor *pipeline.Processor
	Decider   *decision.Engine
	Lookup    decision.Lookup
	Engine    render.Engine
	Reviews   repository.ReviewRepository
	Exporter  *export.Service
	CropDPI   int
}

func NewIntakeService(deps Deps, logger *slog.Logger) *IntakeService {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Decider == nil {
		deps.Decider = decision.NewEngine(logger)
	}
	if deps.CropDPI <= 0 {
		deps.CropDPI = region.DefaultCropDPI
	}
	return &IntakeService{
		matcher:   deps.Matcher,
		processor: deps.Processor,
		decider:   deps.Decider,
		lookup:    deps.Lookup,
		engine:    deps.Engine,
		reviews:   deps.Reviews,
		exporter:  deps.Exporter,
		cropDPI:   deps.CropDPI,
		logger:    logger,
	}
}

var errUnavailable = fmt.Errorf("%w: not configured on this server", common.ErrUnavailable)

// MatchIssuer: {sender} -> {matched, issuer_key, pattern, rule, warning}
func (s *IntakeService) MatchIssuer(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sender := str(in, "sender")
	if sender == "" {
		return nil, common.InvalidArgumentError("sender is required")
	}
	out := map[string]any{"matched": false}
	if s.matcher != nil {
		if m, ok := s.matcher.Match(sender); ok {
			out["matched"] = true
			out["issuer_key"] = m.Profile.IssuerKey
			out["pattern"] = m.Pattern
			out["rule"] = string(m.Rule)
			if m.Warning != nil {
				out["warning"] = m.Warning.Error()
			}
		}
	}
	return structpb.NewStruct(out)
}

// MapRegion: {issuer_key | region, box | pdf_base64, dpi} -> {page_index, box, box_source, rect_pt, rect_px}
func (s *IntakeService) MapRegion(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	tr, err := s.regionFrom(in)
	if err != nil {
		return nil, err
	}
	dpi := float64(s.cropDPI)
	if v, ok := num(in, "dpi"); ok {
		if v < 1 {
			return nil, common.InvalidArgumentError("dpi must be positive")
		}
		dpi = v
	}

	out := map[string]any{}
	box, ok := boxField(in, "box")
	pageIndex := tr.Page - 1
	if ok {
		out["box_source"] = "request"
	} else {
		pdf, err := bytesField(in, "pdf_base64")
		if err != nil {
			return nil, common.InvalidArgumentError(err.Error())
		}
		if pdf == nil {
			return nil, common.InvalidArgumentError("box or pdf_base64 is required")
		}
		resolved, idx, err := s.resolveBox(ctx, pdf, tr)
		if err != nil {
			return nil, geometryStatus(err)
		}
		box, pageIndex = resolved.Box, idx
		out["box_source"] = string(resolved.Source)
	}

	pt, px, err := region.MapToCrop(tr, box, dpi)
	if err != nil {
		return nil, geometryStatus(err)
	}
	out["page_index"] = pageIndex
	out["box"] = boxMap(box)
	out["rect_pt"] = boxMap(pt)
	out["rect_px"] = rectMap(px)
	out["dpi"] = dpi
	return structpb.NewStruct(out)
}

// Decide: {issuer_key | sender, extraction{identifier_text, confidence_label, confidence_raw}, override} -> outcome
func (s *IntakeService) Decide(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	issuerKey := str(in, "issuer_key")
	if issuerKey == "" && s.matcher != nil {
		if m, ok := s.matcher.Match(str(in, "sender")); ok {
			issuerKey = m.Profile.IssuerKey
		}
	}
	if issuerKey == "" {
		return nil, common.InvalidArgumentError("issuer_key or a matching sender is required")
	}
	override := str(in, "override")

	raw, present, err := subJSON(in, "extraction")
	if err != nil {
		return nil, common.InternalErrorf("encode extraction: %v", err)
	}
	var out decision.Outcome
	switch {
	case !present && override == "":
		return nil, common.InvalidArgumentError("extraction or override is required")
	case !present:
		out = s.decider.Decide(ctx, decision.Input{Issuer: issuerKey, Override: override}, s.lookup)
	default:
		ex, err := decision.ParseExtraction(raw)
		if err != nil && override == "" {
			// malformed input fails safe into review, it is not a transport error
			s.logger.Warn("intake.decide.malformed", "issuer", issuerKey, "error", err)
			out = decision.Outcome{
				Status: constants.StatusNeedsAttention,
				Reason: constants.ReasonMalformedExtraction,
				Detail: err.Error(),
			}
			break
		}
		out = s.decider.Decide(ctx, decision.Input{Issuer: issuerKey, Extraction: ex, Override: override}, s.lookup)
	}
	res := outcomeMap(out)
	res["issuer_key"] = issuerKey
	return structpb.NewStruct(res)
}

// Ingest: {pdf_base64 | eml_base64, filename, sender, issuer_key, override, extraction, fields} -> {results}
func (s *IntakeService) Ingest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.processor == nil {
		return nil, common.ToStatus(errUnavailable)
	}
	docs, err := documentsFrom(in)
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{
		IssuerKey: str(in, "issuer_key"),
		Override:  str(in, "override"),
		Fields:    fieldsFrom(in),
	}
	if raw, present, err := subJSON(in, "extraction"); err != nil {
		return nil, common.InternalErrorf("encode extraction: %v", err)
	} else if present {
		ex, err := decision.ParseExtraction(raw)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("extraction: %v", err)
		}
		opts.Extraction = &ex
	}

	s.logger.Info("intake.ingest.start", "documents", len(docs), "issuer_key", opts.IssuerKey, "override", opts.Override != "")
	results, err := s.processor.ProcessAll(ctx, docs, opts)
	if err != nil {
		// failed entries carry their own error; the rest were persisted
		s.logger.Warn("intake.ingest.partial", "error", err)
	}
	return resultsStruct(results)
}

// Reprocess: {pdf_base64, override, sender | issuer_key, filename} -> {results}
func (s *IntakeService) Reprocess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.processor == nil {
		return nil, common.ToStatus(errUnavailable)
	}
	override := str(in, "override")
	if override == "" {
		return nil, common.InvalidArgumentError("override is required")
	}
	docs, err := documentsFrom(in)
	if err != nil {
		return nil, err
	}
	results := make([]*pipeline.Result, 0, len(docs))
	for _, doc := range docs {
		res, err := s.processor.Reprocess(ctx, doc, override, pipeline.Options{
			IssuerKey: str(in, "issuer_key"),
			Fields:    fieldsFrom(in),
		})
		if err != nil {
			s.logger.Warn("intake.reprocess.failed", "filename", doc.Filename, "error", err)
			if res == nil {
				res = &pipeline.Result{DocHash: doc.Hash, Filename: doc.Filename}
			}
			res.Err = err
		}
		results = append(results, res)
	}
	return resultsStruct(results)
}

// ListReviewItems: {since} -> {items}
func (s *IntakeService) ListReviewItems(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.reviews == nil {
		return nil, common.ToStatus(errUnavailable)
	}
	since, err := timeField(in, "since")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	items, err := s.reviews.List(ctx, since)
	if err != nil {
		return nil, common.InternalError("list review items failed")
	}
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, reviewMap(it))
	}
	return structpb.NewStruct(map[string]any{"items": list})
}

// ExportReviewQueue: {since} -> {xlsx_base64, bytes}
func (s *IntakeService) ExportReviewQueue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.exporter == nil {
		return nil, common.ToStatus(errUnavailable)
	}
	since, err := timeField(in, "since")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	b, err := s.exporter.ExportReviewQueueXLSX(ctx, since)
	if err != nil {
		s.logger.Error("intake.export.failed", "error", err)
		return nil, common.InternalError("export failed")
	}
	return structpb.NewStruct(map[string]any{
		"xlsx_base64": base64.StdEncoding.EncodeToString(b),
		"bytes":       len(b),
		"generated":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *IntakeService) regionFrom(in *structpb.Struct) (region.TemplateRegion, error) {
	if key := str(in, "issuer_key"); key != "" {
		if s.matcher != nil {
			for _, p := range s.matcher.Profiles() {
				if p.IssuerKey == key {
					return p.Region, nil
				}
			}
		}
		return region.TemplateRegion{}, common.NotFoundError("unknown issuer_key " + key)
	}
	raw, present, err := subJSON(in, "region")
	if err != nil {
		return region.TemplateRegion{}, common.InternalErrorf("encode region: %v", err)
	}
	if !present {
		return region.TemplateRegion{}, common.InvalidArgumentError("issuer_key or region is required")
	}
	tr, err := region.Decode(raw)
	if err != nil {
		return region.TemplateRegion{}, common.InvalidArgumentError(err.Error())
	}
	return tr, nil
}

func (s *IntakeService) resolveBox(ctx context.Context, pdf []byte, tr region.TemplateRegion) (geometry.ResolvedBox, int, error) {
	if s.engine == nil {
		return geometry.ResolvedBox{}, 0, errUnavailable
	}
	doc, err := s.engine.Open(ctx, pdf)
	if err != nil {
		return geometry.ResolvedBox{}, 0, err
	}
	defer func() { _ = doc.Close() }()
	idx, err := tr.PageIndex(doc.PageCount())
	if err != nil {
		return geometry.ResolvedBox{}, 0, err
	}
	page, err := doc.Page(idx)
	if err != nil {
		return geometry.ResolvedBox{}, 0, err
	}
	resolved, err := geometry.NewResolver(nil, s.logger).Resolve(page)
	return resolved, idx, err
}

func documentsFrom(in *structpb.Struct) ([]ingest.Document, error) {
	pdf, err := bytesField(in, "pdf_base64")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	eml, err := bytesField(in, "eml_base64")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	switch {
	case pdf != nil && eml != nil:
		return nil, common.InvalidArgumentError("pdf_base64 and eml_base64 are exclusive")
	case pdf != nil:
		name := str(in, "filename")
		if name == "" {
			name = "upload.pdf"
		}
		return []ingest.Document{ingest.NewDocument(pdf, name, str(in, "sender"), constants.SourceUpload)}, nil
	case eml != nil:
		msg, err := ingest.ParseEmail(bytes.NewReader(eml))
		if err != nil {
			return nil, common.InvalidArgumentErrorf("email: %v", err)
		}
		return msg.Documents, nil
	default:
		return nil, common.InvalidArgumentError("pdf_base64 or eml_base64 is required")
	}
}

func resultsStruct(results []*pipeline.Result) (*structpb.Struct, error) {
	list := make([]any, 0, len(results))
	for _, r := range results {
		if r != nil {
			list = append(list, resultMap(r))
		}
	}
	return structpb.NewStruct(map[string]any{"results": list})
}

// geometryStatus maps geometry failures onto InvalidArgument; everything else is
// Internal.
func geometryStatus(err error) error {
	var ge *geometry.Error
	if errors.As(err, &ge) {
		return common.InvalidArgumentError(err.Error())
	}
	if errors.Is(err, errUnavailable) {
		return common.ToStatus(err)
	}
	return common.InternalErrorf("render: %v", err)
}

var _ IntakeServer = (*IntakeService)(nil)
