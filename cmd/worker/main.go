package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/notify"
)

// logSender stands in for the SMS/email collaborator: template rendering and
// channel delivery live outside this core.
type logSender struct{}

func (logSender) Send(ctx context.Context, n notify.Notification) error {
	log.Printf("[notifier] event=%s recipient=%s role=%s vars=%v", n.Event, n.Recipient, n.RecipientRole, n.Variables)
	return nil
}

func main() {
	p := NewProcessor(logSender{})

	// Local testing helper: simulate a single SQS event from env input.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"event":"order_confirmed","recipient":"+233200000000","recipient_id":"buyer-1","recipient_role":"buyer"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
