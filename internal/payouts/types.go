package payouts

import "time"

// Status is the payout lifecycle state. pending/processing are the only
// non-terminal states; every transfer event lands the payout in a terminal
// one, and terminal states never move again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusReversed   Status = "reversed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether s admits no further transitions.
func Terminal(s Status) bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusReversed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Payout is the row stored in the payouts table. Reference doubles as the
// external transfer correlation key.
type Payout struct {
	Reference     string     `dynamodbav:"reference"` // PK
	VendorID      string     `dynamodbav:"vendor_id"`
	VendorPhone   string     `dynamodbav:"vendor_phone,omitempty"`
	Amount        float64    `dynamodbav:"amount"`
	Fee           float64    `dynamodbav:"fee,omitempty"`
	NetAmount     float64    `dynamodbav:"net_amount"`
	Status        Status     `dynamodbav:"status"`
	Account       string     `dynamodbav:"account,omitempty"` // bank or mobile-money descriptor
	FailureReason string     `dynamodbav:"failure_reason,omitempty"`
	SettledAt     *time.Time `dynamodbav:"settled_at,omitempty"`
	CreatedAt     time.Time  `dynamodbav:"created_at"`
	UpdatedAt     time.Time  `dynamodbav:"updated_at"`
}
