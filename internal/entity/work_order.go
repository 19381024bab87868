package entity

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/workorder-intake/constants"
)

// WorkOrder represents a work order row for data transfer between layers.
type WorkOrder struct {
	Key          string                    `json:"order_key"`
	Issuer       string                    `json:"issuer"`
	Identifier   string                    `json:"identifier"`
	Status       constants.WorkOrderStatus `json:"status"`
	CustomerName string                    `json:"customer_name,omitempty"`
	SiteAddress  string                    `json:"site_address,omitempty"`
	Description  string                    `json:"description,omitempty"`
	ArtifactPath string                    `json:"artifact_path,omitempty"`
	Source       constants.Source          `json:"source,omitempty"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// HasSubstance reports whether the record carries more than identifiers and status.
func (w *WorkOrder) HasSubstance() bool {
	for _, f := range []string{w.CustomerName, w.SiteAddress, w.Description, w.ArtifactPath} {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

// MergeFrom copies every non-empty field of other onto w. Key, issuer and identifier
// are kept from w.
func (w *WorkOrder) MergeFrom(other *WorkOrder) {
	if other == nil {
		return
	}
	if other.Status != "" {
		w.Status = other.Status
	}
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&w.CustomerName, other.CustomerName)
	set(&w.SiteAddress, other.SiteAddress)
	set(&w.Description, other.Description)
	set(&w.ArtifactPath, other.ArtifactPath)
	if other.Source != "" {
		w.Source = other.Source
	}
}
