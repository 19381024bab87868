package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorder-intake/constants"
)

// ReviewItem is one document waiting for a human. ConfidenceRaw is the OCR score kept
// for audit; Reason says why the document is queued. The two are never merged.
type ReviewItem struct {
	ID              uuid.UUID                 `json:"id"`
	DocHash         string                    `json:"doc_hash"`
	Issuer          string                    `json:"issuer,omitempty"`
	Identifier      string                    `json:"identifier,omitempty"`
	Reason          constants.Reason          `json:"reason"`
	ConfidenceRaw   *float64                  `json:"confidence_raw,omitempty"`
	ConfidenceLabel constants.ConfidenceLabel `json:"confidence_label,omitempty"`
	Source          constants.Source          `json:"source"`
	Filename        string                    `json:"filename,omitempty"`
	Sender          string                    `json:"sender,omitempty"`
	Detail          string                    `json:"detail,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}
