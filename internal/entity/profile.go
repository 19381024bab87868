package entity

import (
	"github.com/joseph-ayodele/workorder-intake/internal/region"
)

// IssuerProfile maps sender domains to the template used for their documents.
type IssuerProfile struct {
	IssuerKey         string                `json:"issuer_key"`
	Name              string                `json:"name,omitempty"`
	DomainPatterns    []string              `json:"domain_patterns"`
	Region            region.TemplateRegion `json:"region"`
	IdentifierPattern string                `json:"identifier_pattern,omitempty"`
}
