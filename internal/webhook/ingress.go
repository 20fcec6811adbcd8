package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/gateway"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/payment"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/payouts"
)

// Rejection reasons surfaced to the HTTP layer before any processing starts.
// Once ingress authenticates and parses a payload, downstream failures are
// absorbed: returning a retry-able error to the gateway for our own bugs
// risks duplicate side effects worse than a missed update.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Ingress verifies, parses, and routes gateway webhooks to the payment and
// payout state machines.
type Ingress struct {
	gateways *gateway.Store
	payments *payment.Machine
	payouts  *payouts.Machine
	metrics  *aws.MetricsRecorder
}

// NewIngress wires the webhook ingress.
func NewIngress(gateways *gateway.Store, payments *payment.Machine, payoutMachine *payouts.Machine, metrics *aws.MetricsRecorder) *Ingress {
	return &Ingress{
		gateways: gateways,
		payments: payments,
		payouts:  payoutMachine,
		metrics:  metrics,
	}
}

// Process handles one webhook delivery. A nil return means the delivery must
// be acknowledged, whether or not the downstream handler succeeded. The only
// errors returned are gateway.ErrNotConfigured, ErrInvalidSignature and
// ErrInvalidPayload.
func (i *Ingress) Process(ctx context.Context, body []byte, signature string) error {
	cfg, err := i.gateways.Load(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			return err
		}
		log.Printf("[webhook] gateway config load failed: %v", err)
		return gateway.ErrNotConfigured
	}

	if !VerifySignature(cfg.WebhookSecret, body, signature) {
		i.metrics.Count(ctx, "WebhookRejected", "signature")
		return ErrInvalidSignature
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		i.metrics.Count(ctx, "WebhookRejected", "payload")
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	eventType := ParseEventType(env.Event)
	i.metrics.Count(ctx, "WebhookReceived", eventType.String())

	switch eventType {
	case EventChargeSuccess, EventChargeFailed:
		i.dispatchCharge(ctx, eventType, env)
	case EventTransferSuccess, EventTransferFailed, EventTransferReversed:
		i.dispatchTransfer(ctx, eventType, env)
	case EventUnknown:
		// Acknowledged without side effects so the gateway does not retry.
		log.Printf("[webhook] ignoring event %q", env.Event)
		i.metrics.Count(ctx, "WebhookIgnored", env.Event)
	}
	return nil
}

func (i *Ingress) dispatchCharge(ctx context.Context, eventType EventType, env *Envelope) {
	var data ChargeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		log.Printf("[webhook] decode %s data failed: %v", eventType, err)
		return
	}
	ev := payment.ChargeEvent{
		OrderID:          data.Metadata.OrderID,
		Reference:        data.Reference,
		AmountMinorUnits: data.Amount,
		Currency:         data.Currency,
		Channel:          data.Channel,
		CustomerEmail:    data.Customer.Email,
		CustomerPhone:    data.Customer.Phone,
		PaidAt:           data.PaidAtTime(),
	}
	var err error
	if eventType == EventChargeSuccess {
		err = i.payments.HandleChargeSuccess(ctx, ev)
	} else {
		err = i.payments.HandleChargeFailed(ctx, ev)
	}
	if err != nil {
		log.Printf("[webhook] %s for order %s failed internally: %v", eventType, ev.OrderID, err)
	}
}

func (i *Ingress) dispatchTransfer(ctx context.Context, eventType EventType, env *Envelope) {
	var data TransferData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		log.Printf("[webhook] decode %s data failed: %v", eventType, err)
		return
	}
	var kind payouts.TransferKind
	switch eventType {
	case EventTransferSuccess:
		kind = payouts.TransferSuccess
	case EventTransferFailed:
		kind = payouts.TransferFailed
	case EventTransferReversed:
		kind = payouts.TransferReversed
	default:
		log.Printf("[webhook] %s is not a transfer event", eventType)
		return
	}
	if err := i.payouts.HandleTransferEvent(ctx, data.Reference, kind, data.Amount, data.Reason); err != nil {
		log.Printf("[webhook] %s for payout %s failed internally: %v", eventType, data.Reference, err)
	}
}
