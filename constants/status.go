package constants

// DecisionStatus is the terminal state of a decided document.
type DecisionStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending        DecisionStatus = "PENDING"         // not yet decided; never persisted
	StatusAutoConfirmed  DecisionStatus = "AUTO_CONFIRMED"  // matched an existing work order
	StatusNeedsAttention DecisionStatus = "NEEDS_ATTENTION" // queued for human review
)

// WorkOrderStatus is the canonical status for rows in work_orders.
type WorkOrderStatus string

const (
	WorkOrderOpen    WorkOrderStatus = "OPEN"
	WorkOrderMatched WorkOrderStatus = "MATCHED" // terminal: signed document attached
)

// IsTerminal reports whether a work order status may be persisted even when sparse.
func (s WorkOrderStatus) IsTerminal() bool {
	return s == WorkOrderMatched
}
