package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/notify"
)

// maxConcurrentDeliveries bounds parallel sends within one SQS batch.
const maxConcurrentDeliveries = 4

// Processor drains notification intents off the outbox queue and hands them
// to the notifier. Delivery is best-effort: failures are logged and the
// message is still consumed, never retried back into the state machines.
type Processor struct {
	sender notify.Sender
}

// NewProcessor returns a Processor delivering through sender.
func NewProcessor(sender notify.Sender) *Processor {
	return &Processor{sender: sender}
}

// Handle receives an SQS batch event and delivers each intent.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDeliveries)
	for _, rec := range ev.Records {
		g.Go(func() error {
			p.deliver(ctx, rec)
			return nil
		})
	}
	return g.Wait()
}

func (p *Processor) deliver(ctx context.Context, rec events.SQSMessage) {
	var n notify.Notification
	if err := json.Unmarshal([]byte(rec.Body), &n); err != nil {
		log.Printf("[worker] invalid notification body, dropping: %v", err)
		return
	}
	if err := p.sender.Send(ctx, n); err != nil {
		log.Printf("[worker] deliver %s to %s (%s) failed: %v", n.Event, n.RecipientID, n.RecipientRole, err)
		return
	}
	log.Printf("[worker] delivered %s to %s (%s)", n.Event, n.RecipientID, n.RecipientRole)
}
