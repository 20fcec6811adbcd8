package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/audit"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/fulfillment"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/gateway"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/handlers"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/inventory"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/notify"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/orders"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/payment"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/payouts"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/webhook"
)

func setupRouter(clients *aws.Clients) *gin.Engine {
	ordersStore := orders.NewStore(clients.DynamoDB, os.Getenv("ORDERS_TABLE"), os.Getenv("ORDER_ITEMS_TABLE"))
	payoutsStore := payouts.NewStore(clients.DynamoDB, os.Getenv("PAYOUTS_TABLE"))
	ledger := inventory.NewLedger(clients.DynamoDB, os.Getenv("INVENTORY_TABLE"))
	sink := audit.NewSink(clients.DynamoDB, os.Getenv("AUDIT_TABLE"))
	gateways := gateway.NewStore(clients.DynamoDB, os.Getenv("SETTINGS_TABLE"))
	outbox := notify.NewOutbox(aws.NewPublisher(clients.SQS, os.Getenv("NOTIFICATIONS_QUEUE_URL")))
	metrics := aws.NewMetricsRecorder(clients.CloudWatch, "Markethub/Webhooks")

	provider := os.Getenv("GATEWAY_PROVIDER")
	if provider == "" {
		provider = "paystack"
	}

	paymentMachine := payment.NewMachine(ordersStore, ledger, sink, outbox, provider)
	payoutMachine := payouts.NewMachine(payoutsStore, sink, outbox)
	fulfillmentMachine := fulfillment.NewMachine(ordersStore, sink, outbox)
	ingress := webhook.NewIngress(gateways, paymentMachine, payoutMachine, metrics)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterWebhookRoutes(r, ingress)
	handlers.RegisterFulfillmentRoutes(r, fulfillmentMachine, ordersStore)

	return r
}

func main() {
	clients, err := aws.NewClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	r := setupRouter(clients)

	// RUN_LOCAL=true serves plain HTTP for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
