package server

import (
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/workorder-intake/internal/decision"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/geometry"
	"github.com/joseph-ayodele/workorder-intake/internal/pipeline"
)

func field(in *structpb.Struct, key string) *structpb.Value {
	if in == nil {
		return nil
	}
	return in.GetFields()[key]
}

func str(in *structpb.Struct, key string) string {
	return strings.TrimSpace(field(in, key).GetStringValue())
}

func num(in *structpb.Struct, key string) (float64, bool) {
	v := field(in, key)
	if v == nil {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

func sub(in *structpb.Struct, key string) *structpb.Struct {
	return field(in, key).GetStructValue()
}

// subJSON re-encodes a nested document so typed decoders can validate it.
func subJSON(in *structpb.Struct, key string) ([]byte, bool, error) {
	s := sub(in, key)
	if s == nil {
		return nil, false, nil
	}
	b, err := protojson.Marshal(s)
	return b, true, err
}

func bytesField(in *structpb.Struct, key string) ([]byte, error) {
	raw := str(in, key)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", key, err)
	}
	return b, nil
}

func timeField(in *structpb.Struct, key string) (*time.Time, error) {
	raw := str(in, key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %w", key, err)
	}
	return &t, nil
}

func boxField(in *structpb.Struct, key string) (geometry.PageBox, bool) {
	v := field(in, key)
	if v == nil {
		return geometry.PageBox{}, false
	}
	b, ok := geometry.ParseBox(v.AsInterface())
	if !ok {
		return geometry.PageBox{}, false
	}
	return b.Normalize(), true
}

func fieldsFrom(in *structpb.Struct) *entity.WorkOrder {
	s := sub(in, "fields")
	if s == nil {
		return nil
	}
	return &entity.WorkOrder{
		CustomerName: str(s, "customer_name"),
		SiteAddress:  str(s, "site_address"),
		Description:  str(s, "description"),
	}
}

func boxMap(b geometry.PageBox) map[string]any {
	return map[string]any{"x0": b.X0, "y0": b.Y0, "x1": b.X1, "y1": b.Y1}
}

func rectMap(r image.Rectangle) map[string]any {
	return map[string]any{"x0": r.Min.X, "y0": r.Min.Y, "x1": r.Max.X, "y1": r.Max.Y}
}

func outcomeMap(o decision.Outcome) map[string]any {
	return map[string]any{
		"status":             string(o.Status),
		"reason":             string(o.Reason),
		"identifier":         o.Identifier,
		"matched_record_key": string(o.MatchedRecordKey),
		"confidence_raw":     o.ConfidenceRaw,
		"confidence_label":   string(o.ConfidenceLabel),
		"overridden":         o.Overridden,
		"detail":             o.Detail,
	}
}

func resultMap(r *pipeline.Result) map[string]any {
	m := map[string]any{
		"doc_hash":       r.DocHash,
		"filename":       r.Filename,
		"issuer":         r.Issuer,
		"outcome":        outcomeMap(r.Outcome),
		"status":         string(r.Record.Status),
		"reason":         string(r.Record.Reason),
		"work_order_key": string(r.Record.Key),
		"artifact_path":  r.Record.ArtifactPath,
		"duration_ms":    r.Duration.Milliseconds(),
	}
	if r.Record.Review != nil {
		m["review_id"] = r.Record.Review.ID.String()
	}
	if !r.CropPx.Empty() {
		m["crop_px"] = rectMap(r.CropPx)
	}
	warnings := make([]any, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		warnings = append(warnings, w)
	}
	m["warnings"] = warnings
	if r.Err != nil {
		m["error"] = r.Err.Error()
	}
	return m
}

func reviewMap(it *entity.ReviewItem) map[string]any {
	m := map[string]any{
		"id":               it.ID.String(),
		"doc_hash":         it.DocHash,
		"issuer":           it.Issuer,
		"identifier":       it.Identifier,
		"reason":           string(it.Reason),
		"confidence_label": string(it.ConfidenceLabel),
		"source":           string(it.Source),
		"filename":         it.Filename,
		"sender":           it.Sender,
		"detail":           it.Detail,
		"created_at":       it.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if it.ConfidenceRaw != nil {
		m["confidence_raw"] = *it.ConfidenceRaw
	} else {
		m["confidence_raw"] = nil
	}
	return m
}
