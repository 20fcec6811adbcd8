package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/testutil"
)

const (
	testOrdersTbl = "orders"
	testItemsTbl  = "order_items"
)

func newTestStore(db *testutil.Dynamo) *Store {
	s := NewStore(db, testOrdersTbl, testItemsTbl)
	s.nowFunc = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return s
}

func seedOrder(t *testing.T, db *testutil.Dynamo, o Order) {
	t.Helper()
	db.Seed(t, testOrdersTbl, o.OrderID, o)
}

func TestMarkPaid_FromPending(t *testing.T) {
	db := testutil.NewDynamo()
	seedOrder(t, db, Order{OrderID: "o1", PaymentStatus: PaymentPending, Status: StatusCreated, Total: 150})
	s := newTestStore(db)

	err := s.MarkPaid(context.Background(), "o1", PaymentDetails{
		Reference: "ref-1",
		Provider:  "paystack",
		Method:    "mobile_money",
		PaidAt:    time.Date(2026, 3, 14, 9, 59, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := db.StringAttr(testOrdersTbl, "o1", "payment_status"); got != string(PaymentPaid) {
		t.Fatalf("payment_status = %q, want paid", got)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "status"); got != string(StatusConfirmed) {
		t.Fatalf("status = %q, want confirmed", got)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "payment_reference"); got != "ref-1" {
		t.Fatalf("payment_reference = %q, want ref-1", got)
	}
}

func TestMarkPaid_FromFailedRetry(t *testing.T) {
	db := testutil.NewDynamo()
	seedOrder(t, db, Order{OrderID: "o1", PaymentStatus: PaymentFailed, Status: StatusCreated, Total: 150})
	s := newTestStore(db)

	if err := s.MarkPaid(context.Background(), "o1", PaymentDetails{Reference: "ref-2", PaidAt: time.Now()}); err != nil {
		t.Fatalf("retried charge after failure should confirm, got %v", err)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "payment_status"); got != string(PaymentPaid) {
		t.Fatalf("payment_status = %q, want paid", got)
	}
}

func TestMarkPaid_AlreadyPaid(t *testing.T) {
	db := testutil.NewDynamo()
	seedOrder(t, db, Order{OrderID: "o1", PaymentStatus: PaymentPaid, PaymentReference: "ref-1"})
	s := newTestStore(db)

	err := s.MarkPaid(context.Background(), "o1", PaymentDetails{Reference: "ref-2", PaidAt: time.Now()})
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "payment_reference"); got != "ref-1" {
		t.Fatalf("reference changed on lost conditional write: %q", got)
	}
}

func TestMarkPaymentFailed_OnlyFromPending(t *testing.T) {
	db := testutil.NewDynamo()
	seedOrder(t, db, Order{OrderID: "o1", PaymentStatus: PaymentPending})
	s := newTestStore(db)

	if err := s.MarkPaymentFailed(context.Background(), "o1", "ref-1", "paystack"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "payment_status"); got != string(PaymentFailed) {
		t.Fatalf("payment_status = %q, want failed", got)
	}

	// second failure must not win again
	err := s.MarkPaymentFailed(context.Background(), "o1", "ref-2", "paystack")
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch on repeat, got %v", err)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "payment_reference"); got != "ref-1" {
		t.Fatalf("reference overwritten by duplicate failure: %q", got)
	}
}

func TestUpdateStatus_Conditional(t *testing.T) {
	db := testutil.NewDynamo()
	seedOrder(t, db, Order{OrderID: "o1", Status: StatusPreparing})
	s := newTestStore(db)

	if err := s.UpdateStatus(context.Background(), "o1", StatusPreparing, StatusReadyForPickup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.UpdateStatus(context.Background(), "o1", StatusPreparing, StatusReadyForPickup)
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
}

func TestBookCourier_RecordsCourier(t *testing.T) {
	db := testutil.NewDynamo()
	seedOrder(t, db, Order{OrderID: "o1", Status: StatusReadyForPickup})
	s := newTestStore(db)

	if err := s.BookCourier(context.Background(), "o1", "speedaf", "trk-77"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "status"); got != string(StatusOutForDelivery) {
		t.Fatalf("status = %q, want out_for_delivery", got)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "courier_provider"); got != "speedaf" {
		t.Fatalf("courier_provider = %q", got)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "courier_reference"); got != "trk-77" {
		t.Fatalf("courier_reference = %q", got)
	}
}

func TestMarkDelivered_StampsDeliveredAt(t *testing.T) {
	db := testutil.NewDynamo()
	seedOrder(t, db, Order{OrderID: "o1", Status: StatusOutForDelivery})
	s := newTestStore(db)

	if err := s.MarkDelivered(context.Background(), "o1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.StringAttr(testOrdersTbl, "o1", "delivered_at"); got == "" {
		t.Fatal("delivered_at not stamped")
	}
}

func TestUpdateItemStatus_Conditional(t *testing.T) {
	db := testutil.NewDynamo()
	db.Seed(t, testItemsTbl, "i1", Item{ItemID: "i1", OrderID: "o1", FulfillmentStatus: ItemPending})
	s := newTestStore(db)

	if err := s.UpdateItemStatus(context.Background(), "i1", ItemPending, ItemPacked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.UpdateItemStatus(context.Background(), "i1", ItemPending, ItemPacked)
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
}

func TestUpdateItemStatus_AcceptsLegacyAlias(t *testing.T) {
	db := testutil.NewDynamo()
	db.Seed(t, testItemsTbl, "i1", Item{ItemID: "i1", OrderID: "o1", FulfillmentStatus: "shipped"})
	db.Seed(t, testItemsTbl, "i2", Item{ItemID: "i2", OrderID: "o1", FulfillmentStatus: "fulfilled"})
	s := newTestStore(db)

	// Stored rows may still carry the old spelling; the conditional write
	// has to match it for the item to ever advance.
	if err := s.UpdateItemStatus(context.Background(), "i1", ItemHandedToCourier, ItemDelivered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.StringAttr(testItemsTbl, "i1", "fulfillment_status"); got != string(ItemDelivered) {
		t.Fatalf("fulfillment_status = %q, want delivered", got)
	}

	// The alias only stands in for its own canonical state.
	err := s.UpdateItemStatus(context.Background(), "i2", ItemHandedToCourier, ItemDelivered)
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
}

func TestListItems_FiltersByOrder(t *testing.T) {
	db := testutil.NewDynamo()
	db.Seed(t, testItemsTbl, "i1", Item{ItemID: "i1", OrderID: "o1", VendorID: "v1", Quantity: 3})
	db.Seed(t, testItemsTbl, "i2", Item{ItemID: "i2", OrderID: "o1", VendorID: "v2", Quantity: 1})
	db.Seed(t, testItemsTbl, "i3", Item{ItemID: "i3", OrderID: "other", VendorID: "v1", Quantity: 5})
	s := newTestStore(db)

	items, err := s.ListItems(context.Background(), "o1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
}

func TestGetItem_NormalizesLegacyStatus(t *testing.T) {
	db := testutil.NewDynamo()
	db.Seed(t, testItemsTbl, "i1", Item{ItemID: "i1", OrderID: "o1", FulfillmentStatus: "shipped"})
	s := newTestStore(db)

	it, err := s.GetItem(context.Background(), "i1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.FulfillmentStatus != ItemHandedToCourier {
		t.Fatalf("status = %q, want handed_to_courier", it.FulfillmentStatus)
	}
}

func TestGet_Missing(t *testing.T) {
	db := testutil.NewDynamo()
	s := newTestStore(db)
	o, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o != nil {
		t.Fatalf("expected nil order, got %+v", o)
	}
}
