package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
)

// Template event names consumed by the delivery worker. Content and channel
// selection belong to the notifier collaborator, not this core.
const (
	EventOrderConfirmed  = "order_confirmed"
	EventPaymentReceived = "payment_received"
	EventVendorNewOrder  = "vendor_new_order"
	EventOrderUpdate     = "order_update"
	EventPayoutCompleted = "payout_completed"
	EventPayoutFailed    = "payout_failed"
)

// Recipient roles.
const (
	RoleBuyer  = "buyer"
	RoleVendor = "vendor"
)

// Notification is the intent handed to the notifier collaborator.
type Notification struct {
	Event         string            `json:"event"`
	Recipient     string            `json:"recipient"` // phone or email
	RecipientID   string            `json:"recipient_id"`
	RecipientRole string            `json:"recipient_role"`
	Variables     map[string]string `json:"variables,omitempty"`
}

// Sender delivers a notification. Implementations must not panic; errors are
// logged by callers and never block a state transition.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Outbox publishes notification intents onto the queue consumed by the
// delivery worker. Dispatch is fire-and-forget: a publish failure is logged
// and swallowed, because notification delivery sits outside the
// transactional boundary of every state machine.
type Outbox struct {
	publisher *aws.Publisher
}

// NewOutbox returns an Outbox over the given publisher. A nil publisher
// disables dispatch (local runs, tests that do not care).
func NewOutbox(publisher *aws.Publisher) *Outbox {
	return &Outbox{publisher: publisher}
}

// Dispatch enqueues one notification intent.
func (o *Outbox) Dispatch(ctx context.Context, n Notification) {
	if o == nil || o.publisher == nil {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("[notify] marshal %s for %s failed: %v", n.Event, n.RecipientID, err)
		return
	}
	attrs := map[string]string{
		"event":          n.Event,
		"recipient_role": n.RecipientRole,
	}
	if err := o.publisher.Send(ctx, string(body), attrs); err != nil {
		log.Printf("[notify] enqueue %s for %s failed: %v", n.Event, n.RecipientID, err)
	}
}
