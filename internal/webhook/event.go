package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the closed set of gateway events this core reacts to, plus an
// explicit unknown arm for everything else.
type EventType int

const (
	EventUnknown EventType = iota
	EventChargeSuccess
	EventChargeFailed
	EventTransferSuccess
	EventTransferFailed
	EventTransferReversed
)

// ParseEventType maps the envelope's event string. Unknown strings map to
// EventUnknown, which ingress acknowledges without side effects so the
// gateway never retries events we intentionally ignore.
func ParseEventType(s string) EventType {
	switch s {
	case "charge.success":
		return EventChargeSuccess
	case "charge.failed":
		return EventChargeFailed
	case "transfer.success":
		return EventTransferSuccess
	case "transfer.failed":
		return EventTransferFailed
	case "transfer.reversed":
		return EventTransferReversed
	default:
		return EventUnknown
	}
}

func (t EventType) String() string {
	switch t {
	case EventChargeSuccess:
		return "charge.success"
	case EventChargeFailed:
		return "charge.failed"
	case EventTransferSuccess:
		return "transfer.success"
	case EventTransferFailed:
		return "transfer.failed"
	case EventTransferReversed:
		return "transfer.reversed"
	default:
		return "unknown"
	}
}

// Envelope is the outer shape of every gateway webhook.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChargeData is the data payload of charge.* events. Amount is in minor
// units.
type ChargeData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Metadata struct {
		OrderID string `json:"orderId"`
	} `json:"metadata"`
}

// PaidAtTime parses the gateway's paid_at timestamp, zero when absent or
// unparseable.
func (d ChargeData) PaidAtTime() time.Time {
	if d.PaidAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, d.PaidAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TransferData is the data payload of transfer.* events. Amount is in minor
// units.
type TransferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Reason       string `json:"reason"`
}

// ParseEnvelope decodes the raw webhook body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("webhook envelope missing event")
	}
	return &env, nil
}
