package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/audit"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/inventory"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/notify"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/orders"
)

// ChargeEvent carries the fields of a gateway charge webhook that this
// machine consumes. Amounts are in minor currency units (pesewas).
type ChargeEvent struct {
	OrderID          string
	Reference        string
	AmountMinorUnits int64
	Currency         string
	Channel          string
	CustomerEmail    string
	CustomerPhone    string
	PaidAt           time.Time
}

// amountToleranceCents is the absolute tolerance, in minor units, when
// comparing the gateway amount against the order total. Absorbs float
// rounding only; anything beyond it is a real mismatch.
const amountToleranceCents = 1

// Machine applies gateway charge events to orders. Every side effect keys
// off a won conditional transition, never off the event itself, so duplicate
// and reordered deliveries are inert.
type Machine struct {
	store    *orders.Store
	ledger   *inventory.Ledger
	sink     *audit.Sink
	outbox   *notify.Outbox
	provider string
	nowFunc  func() time.Time
}

// NewMachine wires the payment state machine. provider names the gateway
// recorded on orders it marks paid.
func NewMachine(store *orders.Store, ledger *inventory.Ledger, sink *audit.Sink, outbox *notify.Outbox, provider string) *Machine {
	return &Machine{
		store:    store,
		ledger:   ledger,
		sink:     sink,
		outbox:   outbox,
		provider: provider,
		nowFunc:  time.Now,
	}
}

// HandleChargeSuccess processes a charge.success event.
func (m *Machine) HandleChargeSuccess(ctx context.Context, ev ChargeEvent) error {
	if ev.OrderID == "" {
		log.Printf("[payment] charge.success %s carries no order id, skipping", ev.Reference)
		return nil
	}
	order, err := m.store.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}
	if order == nil {
		// No retry path: the gateway stops resending after a bounded
		// window, so this is surfaced via logs for manual follow-up.
		log.Printf("[payment] charge.success %s for unknown order %s, skipping", ev.Reference, ev.OrderID)
		return nil
	}

	// A cancelled order stays cancelled. Confirming the payment would
	// re-open fulfillment on a dead order, so the money is flagged for a
	// manual refund instead.
	if order.Status == orders.StatusCancelled {
		m.audit(ctx, "payment_for_cancelled_order", order.OrderID, audit.CancelledOrderChargeDetail{
			Reference: ev.Reference,
			Amount:    float64(ev.AmountMinorUnits) / 100,
		}, audit.SeverityWarning)
		log.Printf("[payment] charge.success %s for cancelled order %s, not confirmed; manual refund required", ev.Reference, order.OrderID)
		return nil
	}

	// pending and failed may both move to paid (a retried charge can succeed
	// after a failure); anything else is a duplicate.
	if !orders.CanTransitionPayment(order.PaymentStatus, orders.PaymentPaid) {
		m.auditDuplicateCharge(ctx, order, ev.Reference)
		return nil
	}

	amount := float64(ev.AmountMinorUnits) / 100
	if diffCents(amount, order.Total) > amountToleranceCents {
		m.audit(ctx, "payment_amount_mismatch", order.OrderID, audit.AmountMismatchDetail{
			Reference:      ev.Reference,
			ExpectedAmount: order.Total,
			ReceivedAmount: amount,
		}, audit.SeverityWarning)
		log.Printf("[payment] amount mismatch for order %s: expected %.2f got %.2f, payment not confirmed", order.OrderID, order.Total, amount)
		return nil
	}

	paidAt := ev.PaidAt
	if paidAt.IsZero() {
		paidAt = m.nowFunc()
	}
	err = m.store.MarkPaid(ctx, order.OrderID, orders.PaymentDetails{
		Reference: ev.Reference,
		Provider:  m.provider,
		Method:    ev.Channel,
		PaidAt:    paidAt,
	})
	if errors.Is(err, orders.ErrStatusMismatch) {
		// Lost the conditional write: a concurrent delivery confirmed the
		// order first. Re-read and classify as a duplicate.
		fresh, ferr := m.store.Get(ctx, order.OrderID)
		if ferr != nil || fresh == nil {
			log.Printf("[payment] re-read after lost mark-paid race on %s failed: %v", order.OrderID, ferr)
			return nil
		}
		m.auditDuplicateCharge(ctx, fresh, ev.Reference)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark order %s paid: %w", order.OrderID, err)
	}

	m.audit(ctx, "payment_confirmed", order.OrderID, audit.PaymentConfirmedDetail{
		Reference:     ev.Reference,
		Amount:        amount,
		Channel:       ev.Channel,
		CustomerEmail: ev.CustomerEmail,
	}, audit.SeverityInfo)

	m.notifyPaymentConfirmed(ctx, order, ev)
	return nil
}

// auditDuplicateCharge records a charge.success that the idempotency gate
// turned into a no-op. A redelivery of the applied reference is routine; a
// different reference means a second successful charge for an already paid
// order and is flagged for manual reconciliation.
func (m *Machine) auditDuplicateCharge(ctx context.Context, order *orders.Order, reference string) {
	detail := audit.DuplicateChargeDetail{
		Reference:         reference,
		ExistingReference: order.PaymentReference,
	}
	if reference == order.PaymentReference {
		m.audit(ctx, "payment_duplicate_delivery", order.OrderID, detail, audit.SeverityInfo)
		return
	}
	m.audit(ctx, "duplicate_payment_ignored", order.OrderID, detail, audit.SeverityWarning)
	log.Printf("[payment] second successful charge %s for already-paid order %s (applied %s), ignored", reference, order.OrderID, order.PaymentReference)
}

// HandleChargeFailed processes a charge.failed event. Inventory restoration
// runs exactly once, keyed off winning the pending -> failed transition.
func (m *Machine) HandleChargeFailed(ctx context.Context, ev ChargeEvent) error {
	if ev.OrderID == "" {
		log.Printf("[payment] charge.failed %s carries no order id, skipping", ev.Reference)
		return nil
	}
	order, err := m.store.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}
	if order == nil {
		log.Printf("[payment] charge.failed %s for unknown order %s, skipping", ev.Reference, ev.OrderID)
		return nil
	}

	switch order.PaymentStatus {
	case orders.PaymentPaid:
		// Failure delivered after a success: out-of-order, ignore entirely.
		log.Printf("[payment] charge.failed %s after success on order %s, ignored", ev.Reference, order.OrderID)
		return nil
	case orders.PaymentFailed:
		if order.PaymentReference == ev.Reference {
			m.audit(ctx, "payment_failure_duplicate", order.OrderID, audit.PaymentFailedDetail{
				Reference: ev.Reference,
			}, audit.SeverityInfo)
			return nil
		}
		// A retried charge attempt that also failed. Stock went back when
		// the first failure landed.
		m.auditAlreadyRestored(ctx, order.OrderID, ev.Reference)
		return nil
	}

	err = m.store.MarkPaymentFailed(ctx, order.OrderID, ev.Reference, m.provider)
	if errors.Is(err, orders.ErrStatusMismatch) {
		// A concurrent event moved the order first. Re-read to see which way.
		fresh, ferr := m.store.Get(ctx, order.OrderID)
		if ferr != nil || fresh == nil {
			log.Printf("[payment] re-read after lost mark-failed race on %s failed: %v", order.OrderID, ferr)
			return nil
		}
		if fresh.PaymentStatus == orders.PaymentPaid {
			log.Printf("[payment] charge.failed %s lost race to success on order %s, ignored", ev.Reference, order.OrderID)
			return nil
		}
		m.auditAlreadyRestored(ctx, order.OrderID, ev.Reference)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark order %s payment failed: %w", order.OrderID, err)
	}

	m.audit(ctx, "payment_failed", order.OrderID, audit.PaymentFailedDetail{
		Reference: ev.Reference,
	}, audit.SeverityInfo)

	m.restoreInventory(ctx, order.OrderID, ev.Reference)
	return nil
}

// restoreInventory puts every item's quantity back on the ledger. Partial
// failures do not roll the payment status back; the per-item outcome is
// audited for manual follow-up.
func (m *Machine) restoreInventory(ctx context.Context, orderID, reference string) {
	items, err := m.store.ListItems(ctx, orderID)
	if err != nil {
		log.Printf("[payment] list items for restore on order %s failed: %v", orderID, err)
		return
	}
	restored := 0
	for _, it := range items {
		if err := m.ledger.Restore(ctx, it.ProductID, it.Quantity); err != nil {
			log.Printf("[payment] restore %d units of %s on order %s failed: %v", it.Quantity, it.ProductID, orderID, err)
			continue
		}
		restored++
	}
	m.audit(ctx, "inventory_restored", orderID, audit.InventoryRestoredDetail{
		Reference:         reference,
		InventoryRestored: restored,
		TotalItems:        len(items),
	}, audit.SeverityInfo)
}

func (m *Machine) auditAlreadyRestored(ctx context.Context, orderID, reference string) {
	m.audit(ctx, "payment_failure_repeated", orderID, audit.InventoryRestoredDetail{
		Reference:         reference,
		InventoryRestored: 0,
		TotalItems:        0,
	}, audit.SeverityWarning)
	log.Printf("[payment] repeated failure %s on order %s, inventory already restored from previous attempt", reference, orderID)
}

// notifyPaymentConfirmed fans out the post-confirmation notifications: the
// buyer hears twice (confirmation + payment receipt) and every distinct
// vendor on the order hears once with its own subtotal. All best-effort.
func (m *Machine) notifyPaymentConfirmed(ctx context.Context, order *orders.Order, ev ChargeEvent) {
	m.outbox.Dispatch(ctx, notify.Notification{
		Event:         notify.EventOrderConfirmed,
		Recipient:     order.BuyerPhone,
		RecipientID:   order.BuyerID,
		RecipientRole: notify.RoleBuyer,
		Variables: map[string]string{
			"orderId": order.OrderID,
			"amount":  fmt.Sprintf("%.2f", order.Total),
		},
	})
	m.outbox.Dispatch(ctx, notify.Notification{
		Event:         notify.EventPaymentReceived,
		Recipient:     order.BuyerEmail,
		RecipientID:   order.BuyerID,
		RecipientRole: notify.RoleBuyer,
		Variables: map[string]string{
			"orderId":   order.OrderID,
			"reference": ev.Reference,
			"amount":    fmt.Sprintf("%.2f", order.Total),
		},
	})

	items, err := m.store.ListItems(ctx, order.OrderID)
	if err != nil {
		log.Printf("[payment] list items for vendor notifications on order %s failed: %v", order.OrderID, err)
		return
	}
	vendorTotals := map[string]float64{}
	for _, it := range items {
		vendorTotals[it.VendorID] += it.LineTotal()
	}
	for vendorID, subtotal := range vendorTotals {
		m.outbox.Dispatch(ctx, notify.Notification{
			Event:         notify.EventVendorNewOrder,
			RecipientID:   vendorID,
			RecipientRole: notify.RoleVendor,
			Variables: map[string]string{
				"orderId":  order.OrderID,
				"subtotal": fmt.Sprintf("%.2f", subtotal),
			},
		})
	}
}

func (m *Machine) audit(ctx context.Context, action, orderID string, detail interface{}, severity string) {
	err := m.sink.Record(ctx, action, "payment", orderID, "order", "", detail, severity, audit.SystemActor)
	if err != nil {
		log.Printf("[payment] audit %s for order %s failed: %v", action, orderID, err)
	}
}

// diffCents compares two major-unit amounts in whole minor units.
func diffCents(a, b float64) int {
	ac := int(math.Round(a * 100))
	bc := int(math.Round(b * 100))
	if ac > bc {
		return ac - bc
	}
	return bc - ac
}
