package audit

import "time"

// Severity levels for audit entries.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// SystemActor is the actor recorded for gateway-driven transitions.
const SystemActor = "system"

// Entry is the shape persisted in the audit log DynamoDB table. Entries are
// append-only: nothing in this package updates or deletes them.
type Entry struct {
	EntryID    string    `dynamodbav:"entry_id"` // PK, uuid
	Action     string    `dynamodbav:"action"`
	Category   string    `dynamodbav:"category"`
	TargetID   string    `dynamodbav:"target_id"`
	TargetType string    `dynamodbav:"target_type"`
	TargetName string    `dynamodbav:"target_name,omitempty"`
	Details    string    `dynamodbav:"details,omitempty"` // JSON-encoded detail struct
	Severity   string    `dynamodbav:"severity"`
	Actor      string    `dynamodbav:"actor"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

// Detail payloads are closed structs, one per audited action, so consumers
// of the trail get a stable schema instead of free-form maps.

// PaymentConfirmedDetail records a successful charge applied to an order.
type PaymentConfirmedDetail struct {
	Reference     string  `json:"reference"`
	Amount        float64 `json:"amount"`
	Channel       string  `json:"channel,omitempty"`
	CustomerEmail string  `json:"customerEmail,omitempty"`
}

// DuplicateChargeDetail records a charge event that the idempotency gate
// turned into a no-op.
type DuplicateChargeDetail struct {
	Reference         string `json:"reference"`
	ExistingReference string `json:"existingReference"`
}

// CancelledOrderChargeDetail records a successful charge that arrived for an
// order cancelled before payment. The order is left untouched and the money
// needs a manual refund.
type CancelledOrderChargeDetail struct {
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
}

// AmountMismatchDetail records a charge whose amount did not match the order
// total; the payment is left unconfirmed for manual review.
type AmountMismatchDetail struct {
	Reference      string  `json:"reference"`
	ExpectedAmount float64 `json:"expectedAmount"`
	ReceivedAmount float64 `json:"receivedAmount"`
}

// PaymentFailedDetail records a charge failure applied to an order.
type PaymentFailedDetail struct {
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

// InventoryRestoredDetail records the per-item outcome of restoring stock
// after a payment failure.
type InventoryRestoredDetail struct {
	Reference         string `json:"reference"`
	InventoryRestored int    `json:"inventoryRestored"`
	TotalItems        int    `json:"totalItems"`
}

// FulfillmentTransitionDetail records an order- or item-level fulfillment
// move.
type FulfillmentTransitionDetail struct {
	ItemID     string `json:"itemId,omitempty"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	VendorID   string `json:"vendorId"`
}

// PayoutSettledDetail records a transfer event applied to a payout.
type PayoutSettledDetail struct {
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Reason    string  `json:"reason,omitempty"`
}

// DuplicateTransferDetail records a transfer event for an already-terminal
// payout.
type DuplicateTransferDetail struct {
	Reference     string `json:"reference"`
	CurrentStatus string `json:"currentStatus"`
	IgnoredStatus string `json:"ignoredStatus"`
}
