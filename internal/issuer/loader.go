package issuer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/workorder-intake/internal/common"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/ocr"
)

const profilesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["issuer_key", "domain_patterns", "region"],
    "properties": {
      "issuer_key": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "domain_patterns": {"type": "array", "items": {"type": "string", "minLength": 1}},
      "identifier_pattern": {"type": "string"},
      "region": {
        "type": "object",
        "required": ["page", "x_pct", "y_pct", "w_pct", "h_pct"],
        "properties": {
          "page": {"type": "integer", "minimum": 1},
          "x_pct": {"type": "number", "minimum": 0, "maximum": 1},
          "y_pct": {"type": "number", "minimum": 0, "maximum": 1},
          "w_pct": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
          "h_pct": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
          "convention": {"type": "string"}
        }
      }
    }
  }
}`

var profilesValidator = jsonschema.MustCompileString("issuer_profiles.json", profilesSchema)

// LoadProfiles reads and validates the issuer profile file at path.
func LoadProfiles(path string) ([]entity.IssuerProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issuer profiles: %w", err)
	}
	return ParseProfiles(raw)
}

// ParseProfiles validates raw against the profile schema and decodes it. List order
// is preserved; it is the match precedence.
func ParseProfiles(raw []byte) ([]entity.IssuerProfile, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: issuer profiles are not JSON: %v", common.ErrValidation, err)
	}
	if err := profilesValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: issuer profiles: %v", common.ErrValidation, err)
	}

	var profiles []entity.IssuerProfile
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&profiles); err != nil {
		return nil, fmt.Errorf("%w: issuer profiles: %v", common.ErrValidation, err)
	}

	seen := map[string]bool{}
	for i := range profiles {
		p := &profiles[i]
		if seen[p.IssuerKey] {
			return nil, fmt.Errorf("%w: duplicate issuer_key %q", common.ErrValidation, p.IssuerKey)
		}
		seen[p.IssuerKey] = true
		if err := p.Region.Validate(); err != nil {
			return nil, fmt.Errorf("issuer %q region: %w", p.IssuerKey, err)
		}
		if _, err := IdentifierPattern(p); err != nil {
			return nil, fmt.Errorf("%w: issuer %q identifier_pattern: %v", common.ErrValidation, p.IssuerKey, err)
		}
	}
	return profiles, nil
}

// IdentifierPattern compiles the profile's identifier regex, defaulting to
// ocr.DefaultIdentifierPattern.
func IdentifierPattern(p *entity.IssuerProfile) (*regexp.Regexp, error) {
	if p == nil || p.IdentifierPattern == "" {
		return ocr.DefaultIdentifierPattern, nil
	}
	return regexp.Compile(p.IdentifierPattern)
}
