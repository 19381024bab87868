package decision

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/workorder"
)

// fakeStore answers lookups from a fixed set of keys and counts calls.
type fakeStore struct {
	keys  map[workorder.Key]bool
	err   error
	calls int
}

func (s *fakeStore) Lookup(_ context.Context, key workorder.Key) (workorder.Key, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.keys[key] {
		return key, nil
	}
	return "", nil
}

func newStore(keys ...workorder.Key) *fakeStore {
	s := &fakeStore{keys: map[workorder.Key]bool{}}
	for _, k := range keys {
		s.keys[k] = true
	}
	return s
}

func TestDecideScenarios(t *testing.T) {
	engine := NewEngine(nil)
	ctx := context.Background()

	t.Run("high confidence match auto-confirms", func(t *testing.T) {
		store := newStore("acme:1234567")
		out := engine.Decide(ctx, Input{
			Issuer:     "acme",
			Extraction: Extraction{IdentifierText: "1234567", ConfidenceLabel: constants.ConfidenceHigh, ConfidenceRaw: 0.93},
		}, store)
		if out.Status != constants.StatusAutoConfirmed || out.Reason != constants.ReasonMatched {
			t.Fatalf("Decide() = %+v, want AUTO_CONFIRMED/Matched", out)
		}
		if out.MatchedRecordKey != "acme:1234567" {
			t.Errorf("MatchedRecordKey = %q, want acme:1234567", out.MatchedRecordKey)
		}
		if !out.AllowsArtifact() {
			t.Errorf("AllowsArtifact() = false on a match")
		}
	})

	t.Run("missing identifier needs attention without lookup", func(t *testing.T) {
		store := newStore("acme:1234567")
		out := engine.Decide(ctx, Input{
			Issuer:     "acme",
			Extraction: Extraction{IdentifierText: "", ConfidenceLabel: constants.ConfidenceHigh, ConfidenceRaw: 0.9},
		}, store)
		if out.Status != constants.StatusNeedsAttention || out.Reason != constants.ReasonNoIdentifierExtracted {
			t.Fatalf("Decide() = %+v, want NEEDS_ATTENTION/NoIdentifierExtracted", out)
		}
		if out.AllowsArtifact() || store.calls != 0 {
			t.Errorf("artifact allowed = %v, lookups = %d; want neither", out.AllowsArtifact(), store.calls)
		}
	})

	t.Run("unknown identifier needs attention", func(t *testing.T) {
		out := engine.Decide(ctx, Input{
			Issuer:     "acme",
			Extraction: Extraction{IdentifierText: "9999999", ConfidenceLabel: constants.ConfidenceHigh, ConfidenceRaw: 0.9},
		}, newStore("acme:1234567"))
		if out.Status != constants.StatusNeedsAttention || out.Reason != constants.ReasonOriginalNotFound {
			t.Fatalf("Decide() = %+v, want NEEDS_ATTENTION/OriginalNotFound", out)
		}
		if out.MatchedRecordKey != "" {
			t.Errorf("MatchedRecordKey = %q, want empty", out.MatchedRecordKey)
		}
	})

	t.Run("low confidence is gated even when the order exists", func(t *testing.T) {
		store := newStore("acme:1234567")
		out := engine.Decide(ctx, Input{
			Issuer:     "acme",
			Extraction: Extraction{IdentifierText: "1234567", ConfidenceLabel: constants.ConfidenceLow, ConfidenceRaw: 0.41},
		}, store)
		if out.Reason != constants.ReasonLowConfidenceExtraction || store.calls != 0 {
			t.Fatalf("Decide() = %+v after %d lookups, want LowConfidenceExtraction without lookup", out, store.calls)
		}
		if out.ConfidenceRaw != 0.41 || out.ConfidenceLabel != constants.ConfidenceLow {
			t.Errorf("confidence = %v/%v, want raw score kept beside label", out.ConfidenceRaw, out.ConfidenceLabel)
		}
	})

	t.Run("medium confidence still looks up", func(t *testing.T) {
		out := engine.Decide(ctx, Input{
			Issuer:     "acme",
			Extraction: Extraction{IdentifierText: "1234567", ConfidenceLabel: constants.ConfidenceMedium, ConfidenceRaw: 0.7},
		}, newStore("acme:1234567"))
		if out.Status != constants.StatusAutoConfirmed {
			t.Errorf("Decide() = %+v, want AUTO_CONFIRMED", out)
		}
	})
}

func TestDecideOverride(t *testing.T) {
	engine := NewEngine(nil)
	ctx := context.Background()
	bad := Extraction{IdentifierText: "I234S67", ConfidenceLabel: constants.ConfidenceLow, ConfidenceRaw: 0.3}

	t.Run("corrected identifier that exists", func(t *testing.T) {
		out := engine.Decide(ctx, Input{Issuer: "acme", Extraction: bad, Override: "1234567"}, newStore("acme:1234567"))
		if out.Status != constants.StatusAutoConfirmed || !out.Overridden || out.Identifier != "1234567" {
			t.Errorf("Decide() = %+v, want overridden AUTO_CONFIRMED", out)
		}
	})

	t.Run("corrected identifier must still resolve", func(t *testing.T) {
		out := engine.Decide(ctx, Input{Issuer: "acme", Extraction: bad, Override: "7654321"}, newStore("acme:1234567"))
		if out.Status != constants.StatusNeedsAttention || out.Reason != constants.ReasonOriginalNotFound {
			t.Errorf("Decide() = %+v, want OriginalNotFound", out)
		}
	})

	t.Run("override of malformed extraction", func(t *testing.T) {
		malformed := Extraction{ConfidenceLabel: "certain", ConfidenceRaw: 7}
		out := engine.Decide(ctx, Input{Issuer: "acme", Extraction: malformed, Override: "1234567"}, newStore("acme:1234567"))
		if out.Status != constants.StatusAutoConfirmed {
			t.Errorf("Decide() = %+v, want AUTO_CONFIRMED", out)
		}
	})

	t.Run("blank override", func(t *testing.T) {
		out := engine.Decide(ctx, Input{Issuer: "acme", Extraction: bad, Override: " # "}, newStore("acme:1234567"))
		if out.Reason != constants.ReasonNoIdentifierExtracted {
			t.Errorf("Decide() = %+v, want NoIdentifierExtracted", out)
		}
	})
}

func TestDecideFailsSafe(t *testing.T) {
	engine := NewEngine(nil)
	ctx := context.Background()
	good := Extraction{IdentifierText: "1234567", ConfidenceLabel: constants.ConfidenceHigh, ConfidenceRaw: 0.9}

	tests := []struct {
		name   string
		in     Input
		lookup Lookup
		want   constants.Reason
	}{
		{"unknown label", Input{Issuer: "acme", Extraction: Extraction{IdentifierText: "1", ConfidenceLabel: "certain", ConfidenceRaw: 0.9}}, newStore(), constants.ReasonMalformedExtraction},
		{"raw above one", Input{Issuer: "acme", Extraction: Extraction{IdentifierText: "1", ConfidenceLabel: "high", ConfidenceRaw: 95}}, newStore(), constants.ReasonMalformedExtraction},
		{"NaN raw", Input{Issuer: "acme", Extraction: Extraction{IdentifierText: "1", ConfidenceLabel: "high", ConfidenceRaw: math.NaN()}}, newStore(), constants.ReasonMalformedExtraction},
		{"store error", Input{Issuer: "acme", Extraction: good}, &fakeStore{err: errors.New("connection reset")}, constants.ReasonOriginalNotFound},
		{"nil lookup", Input{Issuer: "acme", Extraction: good}, nil, constants.ReasonOriginalNotFound},
		{"no issuer", Input{Issuer: "", Extraction: good}, newStore(), constants.ReasonOriginalNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := engine.Decide(ctx, tt.in, tt.lookup)
			if out.Status != constants.StatusNeedsAttention || out.Reason != tt.want {
				t.Errorf("Decide() = %+v, want NEEDS_ATTENTION/%s", out, tt.want)
			}
		})
	}
}

func TestDecideIsTotal(t *testing.T) {
	engine := NewEngine(nil)
	ctx := context.Background()
	identifiers := []string{"", "1234567", "  ", "wo-1", "ÆØÅ"}
	labels := []constants.ConfidenceLabel{constants.ConfidenceHigh, constants.ConfidenceMedium, constants.ConfidenceLow, "HIGH", ""}
	lookups := []Lookup{
		newStore(),
		newStore("acme:1234567", "acme:WO-1", "acme:ÆØÅ"),
		&fakeStore{err: errors.New("timeout")},
	}

	for _, id := range identifiers {
		for _, label := range labels {
			for _, lookup := range lookups {
				out := engine.Decide(ctx, Input{Issuer: "acme", Extraction: Extraction{IdentifierText: id, ConfidenceLabel: label, ConfidenceRaw: 0.5}}, lookup)
				switch out.Status {
				case constants.StatusAutoConfirmed:
					if out.MatchedRecordKey == "" || out.Reason != constants.ReasonMatched {
						t.Errorf("(%q,%q): auto-confirmed without a match: %+v", id, label, out)
					}
					if label == constants.ConfidenceLow {
						t.Errorf("(%q,%q): low confidence auto-confirmed", id, label)
					}
				case constants.StatusNeedsAttention:
					if out.Reason == "" || out.Reason == constants.ReasonMatched {
						t.Errorf("(%q,%q): needs attention with reason %q", id, label, out.Reason)
					}
				default:
					t.Errorf("(%q,%q): non-terminal status %q", id, label, out.Status)
				}
			}
		}
	}
}

func TestDecideCanonicalizesLabel(t *testing.T) {
	store := newStore("acme:1234567")
	out := NewEngine(nil).Decide(context.Background(), Input{
		Issuer:     "acme",
		Extraction: Extraction{IdentifierText: "1234567", ConfidenceLabel: "LOW", ConfidenceRaw: 0.2},
	}, store)
	if out.Reason != constants.ReasonLowConfidenceExtraction || out.ConfidenceLabel != constants.ConfidenceLow {
		t.Errorf("Decide() = %+v, want low gate with canonical label", out)
	}
}

func TestParseExtraction(t *testing.T) {
	x, err := ParseExtraction([]byte(`{"identifier_text":"1234567","confidence_label":"HIGH","confidence_raw":0.91}`))
	if err != nil {
		t.Fatalf("ParseExtraction() error = %v", err)
	}
	if x.IdentifierText != "1234567" || x.ConfidenceLabel != constants.ConfidenceHigh || x.ConfidenceRaw != 0.91 {
		t.Errorf("ParseExtraction() = %+v", x)
	}

	x, err = ParseExtraction([]byte(`{"identifier_text":null,"confidence_label":"med","confidence_raw":0.7}`))
	if err != nil || x.IdentifierText != "" || x.ConfidenceLabel != constants.ConfidenceMedium {
		t.Errorf("ParseExtraction(null id) = %+v, %v", x, err)
	}

	for _, raw := range []string{
		`not json`,
		`{"identifier_text":"1","confidence_raw":0.5}`,
		`{"identifier_text":"1","confidence_label":"high","confidence_raw":1.5}`,
		`{"identifier_text":42,"confidence_label":"high","confidence_raw":0.5}`,
		`{"identifier_text":"1","confidence_label":"sure","confidence_raw":0.5}`,
	} {
		if _, err := ParseExtraction([]byte(raw)); !errors.Is(err, ErrMalformedExtraction) {
			t.Errorf("ParseExtraction(%s) error = %v, want ErrMalformedExtraction", raw, err)
		}
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers after transient errors", func(t *testing.T) {
		calls := 0
		flaky := LookupFunc(func(context.Context, workorder.Key) (workorder.Key, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "acme:1", nil
		})
		got, err := WithRetry(flaky, 3, time.Millisecond, nil).Lookup(ctx, "acme:1")
		if err != nil || got != "acme:1" || calls != 3 {
			t.Errorf("Lookup() = %q, %v after %d calls", got, err, calls)
		}
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		store := &fakeStore{err: errors.New("down")}
		_, err := WithRetry(store, 2, time.Millisecond, nil).Lookup(ctx, "acme:1")
		if err == nil || store.calls != 2 {
			t.Errorf("Lookup() error = %v after %d calls, want failure after 2", err, store.calls)
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		store := &fakeStore{err: errors.New("down")}
		cancel()
		_, err := WithRetry(store, 5, time.Hour, nil).Lookup(cctx, "acme:1")
		if !errors.Is(err, context.Canceled) || store.calls != 1 {
			t.Errorf("Lookup() error = %v after %d calls, want context.Canceled after 1", err, store.calls)
		}
	})
}
