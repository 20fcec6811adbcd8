package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/audit"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/fulfillment"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/gateway"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/inventory"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/notify"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/orders"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/payment"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/payouts"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/testutil"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/webhook"
)

const testSecret = "whsec_test"

func newTestRouter(db *testutil.Dynamo) *gin.Engine {
	gin.SetMode(gin.TestMode)

	ordersStore := orders.NewStore(db, "orders", "order_items")
	sink := audit.NewSink(db, "audit")
	outbox := notify.NewOutbox(aws.NewPublisher(&testutil.SQS{}, "queue-url"))
	ledger := inventory.NewLedger(db, "inventory")
	gateways := gateway.NewStore(db, "settings")
	metrics := aws.NewMetricsRecorder(nil, "")

	ingress := webhook.NewIngress(
		gateways,
		payment.NewMachine(ordersStore, ledger, sink, outbox, "paystack"),
		payouts.NewMachine(payouts.NewStore(db, "payouts"), sink, outbox),
		metrics,
	)

	r := gin.New()
	RegisterWebhookRoutes(r, ingress)
	RegisterFulfillmentRoutes(r, fulfillment.NewMachine(ordersStore, sink, outbox), ordersStore)
	return r
}

func seedGateway(t *testing.T, db *testutil.Dynamo) {
	t.Helper()
	db.Seed(t, "settings", "payment_gateway", gateway.Config{
		ConfigKey:     "payment_gateway",
		Provider:      "paystack",
		Enabled:       true,
		WebhookSecret: testSecret,
	})
}

func postWebhook(r *gin.Engine, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookEndpoint_StatusMapping(t *testing.T) {
	t.Run("gateway not configured", func(t *testing.T) {
		db := testutil.NewDynamo()
		r := newTestRouter(db)
		w := postWebhook(r, `{"event":"charge.success","data":{}}`, "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedGateway(t, db)
		r := newTestRouter(db)
		w := postWebhook(r, `{"event":"charge.success","data":{}}`, "forged")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedGateway(t, db)
		r := newTestRouter(db)
		body := `{oops`
		w := postWebhook(r, body, webhook.ComputeSignature(testSecret, []byte(body)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("processed event acknowledged", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedGateway(t, db)
		db.Seed(t, "orders", "o1", orders.Order{OrderID: "o1", Total: 150, PaymentStatus: orders.PaymentPending})
		r := newTestRouter(db)
		body := `{"event":"charge.success","data":{"reference":"ref-1","amount":15000,"metadata":{"orderId":"o1"}}}`
		w := postWebhook(r, body, webhook.ComputeSignature(testSecret, []byte(body)))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if got := db.StringAttr("orders", "o1", "payment_status"); got != "paid" {
			t.Fatalf("payment_status = %q, want paid", got)
		}
	})

	t.Run("unknown event acknowledged", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedGateway(t, db)
		r := newTestRouter(db)
		body := `{"event":"invoice.create","data":{}}`
		w := postWebhook(r, body, webhook.ComputeSignature(testSecret, []byte(body)))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
}

func postFulfillment(r *gin.Engine, orderID, vendorID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID+"/fulfillment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if vendorID != "" {
		req.Header.Set(VendorHeader, vendorID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFulfillmentEndpoint(t *testing.T) {
	seedOrder := func(db *testutil.Dynamo) {
		db.Seed(t, "orders", "o1", orders.Order{OrderID: "o1", Status: orders.StatusConfirmed, PaymentStatus: orders.PaymentPaid})
		db.Seed(t, "order_items", "i1", orders.Item{ItemID: "i1", OrderID: "o1", VendorID: "v1", Quantity: 1, FulfillmentStatus: orders.ItemPending})
	}

	t.Run("missing caller identity", func(t *testing.T) {
		db := testutil.NewDynamo()
		r := newTestRouter(db)
		w := postFulfillment(r, "o1", "", `{"action":"pack","itemId":"i1"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("pack succeeds for owning vendor", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedOrder(db)
		r := newTestRouter(db)
		w := postFulfillment(r, "o1", "v1", `{"action":"pack","itemId":"i1"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
		}
		if got := db.StringAttr("order_items", "i1", "fulfillment_status"); got != "packed" {
			t.Fatalf("item status = %q", got)
		}
	})

	t.Run("transition rejection carries current vs required", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedOrder(db)
		r := newTestRouter(db)
		w := postFulfillment(r, "o1", "v1", `{"action":"markDelivered","itemId":"i1"}`)
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
		if !strings.Contains(w.Body.String(), "handed_to_courier") || !strings.Contains(w.Body.String(), "pending") {
			t.Fatalf("body missing state context: %s", w.Body.String())
		}
	})

	t.Run("foreign vendor forbidden", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedOrder(db)
		r := newTestRouter(db)
		w := postFulfillment(r, "o1", "v2", `{"action":"pack","itemId":"i1"}`)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("unknown action rejected by validation", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedOrder(db)
		r := newTestRouter(db)
		w := postFulfillment(r, "o1", "v1", `{"action":"teleport"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("order read endpoint", func(t *testing.T) {
		db := testutil.NewDynamo()
		seedOrder(db)
		r := newTestRouter(db)

		req := httptest.NewRequest(http.MethodGet, "/orders/o1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}

		req = httptest.NewRequest(http.MethodGet, "/orders/ghost", nil)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}
