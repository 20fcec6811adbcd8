package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/audit"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/notify"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/orders"
)

// Command is one vendor-initiated fulfillment action.
type Command struct {
	OrderID          string
	VendorID         string // caller identity, already authenticated upstream
	Action           Action
	ItemID           string
	CourierProvider  string
	CourierReference string
}

// Machine drives the two-level fulfillment state machine: order-level moves
// through the delivery pipeline and per-item packing progress.
type Machine struct {
	store  *orders.Store
	sink   *audit.Sink
	outbox *notify.Outbox
}

// NewMachine wires the fulfillment state machine.
func NewMachine(store *orders.Store, sink *audit.Sink, outbox *notify.Outbox) *Machine {
	return &Machine{store: store, sink: sink, outbox: outbox}
}

// Apply executes one command and returns the updated order. Rejections are
// surfaced to the caller (TransitionError, ErrPermissionDenied, ...); this
// is the internal-caller side of the propagation policy, unlike webhooks.
func (m *Machine) Apply(ctx context.Context, cmd Command) (*orders.Order, error) {
	order, err := m.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", cmd.OrderID, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == orders.StatusCancelled || order.Status == orders.StatusDisputed {
		return nil, &TransitionError{
			Entity:   "order",
			EntityID: order.OrderID,
			Current:  string(order.Status),
			Required: "an active fulfillment state",
		}
	}

	switch cmd.Action {
	case ActionPack:
		return m.itemTransition(ctx, order, cmd, orders.ItemPending, orders.ItemPacked)
	case ActionHandToCourier:
		return m.itemTransition(ctx, order, cmd, orders.ItemPacked, orders.ItemHandedToCourier)
	case ActionMarkDelivered:
		return m.itemTransition(ctx, order, cmd, orders.ItemHandedToCourier, orders.ItemDelivered)
	case ActionReadyForPickup:
		return m.orderTransition(ctx, order, cmd, orders.StatusPreparing, orders.StatusReadyForPickup)
	case ActionBookCourier:
		return m.bookCourier(ctx, order, cmd)
	case ActionMarkOrderDelivered:
		return m.markOrderDelivered(ctx, order, cmd)
	default:
		return nil, fmt.Errorf("unhandled fulfillment action %v", cmd.Action)
	}
}

func (m *Machine) itemTransition(ctx context.Context, order *orders.Order, cmd Command, from, to orders.ItemStatus) (*orders.Order, error) {
	if order.PaymentStatus != orders.PaymentPaid {
		return nil, ErrPaymentRequired
	}
	item, err := m.store.GetItem(ctx, cmd.ItemID)
	if err != nil {
		return nil, fmt.Errorf("load item %s: %w", cmd.ItemID, err)
	}
	if item == nil || item.OrderID != order.OrderID {
		return nil, ErrItemNotFound
	}
	if item.VendorID != cmd.VendorID {
		return nil, ErrPermissionDenied
	}
	if item.FulfillmentStatus != from {
		return nil, &TransitionError{
			Entity:   "item",
			EntityID: item.ItemID,
			Current:  string(item.FulfillmentStatus),
			Required: string(from),
		}
	}

	err = m.store.UpdateItemStatus(ctx, item.ItemID, from, to)
	if errors.Is(err, orders.ErrStatusMismatch) {
		// Raced with another call on the same item; report what is there now.
		fresh, ferr := m.store.GetItem(ctx, item.ItemID)
		if ferr == nil && fresh != nil && fresh.FulfillmentStatus == to {
			// The concurrent call already landed this exact transition;
			// it also recorded the audit entry, so nothing left to do.
			return m.store.Get(ctx, order.OrderID)
		}
		current := "unknown"
		if ferr == nil && fresh != nil {
			current = string(fresh.FulfillmentStatus)
		}
		return nil, &TransitionError{Entity: "item", EntityID: item.ItemID, Current: current, Required: string(from)}
	}
	if err != nil {
		return nil, fmt.Errorf("update item %s status: %w", item.ItemID, err)
	}

	if cmd.Action == ActionPack && order.Status == orders.StatusConfirmed {
		// First packed item pulls the order into preparing. Losing this
		// write just means another pack got there first.
		if err := m.store.UpdateStatus(ctx, order.OrderID, orders.StatusConfirmed, orders.StatusPreparing); err != nil && !errors.Is(err, orders.ErrStatusMismatch) {
			log.Printf("[fulfillment] move order %s to preparing failed: %v", order.OrderID, err)
		}
	}

	m.recordTransition(ctx, order, cmd, string(from), string(to))
	return m.store.Get(ctx, order.OrderID)
}

func (m *Machine) orderTransition(ctx context.Context, order *orders.Order, cmd Command, from, to orders.Status) (*orders.Order, error) {
	if err := m.checkOrderVendor(ctx, order, cmd.VendorID); err != nil {
		return nil, err
	}
	if order.Status != from {
		return nil, &TransitionError{Entity: "order", EntityID: order.OrderID, Current: string(order.Status), Required: string(from)}
	}
	err := m.store.UpdateStatus(ctx, order.OrderID, from, to)
	if err != nil {
		return nil, m.classifyOrderWrite(ctx, order, from, err, "update order status")
	}
	m.recordTransition(ctx, order, cmd, string(from), string(to))
	return m.store.Get(ctx, order.OrderID)
}

func (m *Machine) bookCourier(ctx context.Context, order *orders.Order, cmd Command) (*orders.Order, error) {
	if err := m.checkOrderVendor(ctx, order, cmd.VendorID); err != nil {
		return nil, err
	}
	if order.Status != orders.StatusReadyForPickup {
		return nil, &TransitionError{Entity: "order", EntityID: order.OrderID, Current: string(order.Status), Required: string(orders.StatusReadyForPickup)}
	}
	err := m.store.BookCourier(ctx, order.OrderID, cmd.CourierProvider, cmd.CourierReference)
	if err != nil {
		return nil, m.classifyOrderWrite(ctx, order, orders.StatusReadyForPickup, err, "book courier")
	}
	m.recordTransition(ctx, order, cmd, string(orders.StatusReadyForPickup), string(orders.StatusOutForDelivery))
	return m.store.Get(ctx, order.OrderID)
}

func (m *Machine) markOrderDelivered(ctx context.Context, order *orders.Order, cmd Command) (*orders.Order, error) {
	if err := m.checkOrderVendor(ctx, order, cmd.VendorID); err != nil {
		return nil, err
	}
	if order.Status != orders.StatusOutForDelivery {
		return nil, &TransitionError{Entity: "order", EntityID: order.OrderID, Current: string(order.Status), Required: string(orders.StatusOutForDelivery)}
	}
	err := m.store.MarkDelivered(ctx, order.OrderID)
	if err != nil {
		return nil, m.classifyOrderWrite(ctx, order, orders.StatusOutForDelivery, err, "mark order delivered")
	}
	m.recordTransition(ctx, order, cmd, string(orders.StatusOutForDelivery), string(orders.StatusDelivered))
	return m.store.Get(ctx, order.OrderID)
}

// checkOrderVendor verifies the caller sells at least one item on the order.
func (m *Machine) checkOrderVendor(ctx context.Context, order *orders.Order, vendorID string) error {
	items, err := m.store.ListItems(ctx, order.OrderID)
	if err != nil {
		return fmt.Errorf("list items for order %s: %w", order.OrderID, err)
	}
	for _, it := range items {
		if it.VendorID == vendorID {
			return nil
		}
	}
	return ErrPermissionDenied
}

// classifyOrderWrite turns a lost conditional write into a TransitionError
// against the freshly observed state.
func (m *Machine) classifyOrderWrite(ctx context.Context, order *orders.Order, required orders.Status, err error, op string) error {
	if !errors.Is(err, orders.ErrStatusMismatch) {
		return fmt.Errorf("%s for order %s: %w", op, order.OrderID, err)
	}
	fresh, ferr := m.store.Get(ctx, order.OrderID)
	current := "unknown"
	if ferr == nil && fresh != nil {
		current = string(fresh.Status)
	}
	return &TransitionError{Entity: "order", EntityID: order.OrderID, Current: current, Required: string(required)}
}

// recordTransition audits the move and queues the buyer's update, both
// best-effort.
func (m *Machine) recordTransition(ctx context.Context, order *orders.Order, cmd Command, from, to string) {
	detail := audit.FulfillmentTransitionDetail{
		ItemID:     cmd.ItemID,
		FromStatus: from,
		ToStatus:   to,
		VendorID:   cmd.VendorID,
	}
	err := m.sink.Record(ctx, "fulfillment_"+cmd.Action.String(), "fulfillment", order.OrderID, "order", "", detail, audit.SeverityInfo, cmd.VendorID)
	if err != nil {
		log.Printf("[fulfillment] audit %s for order %s failed: %v", cmd.Action, order.OrderID, err)
	}

	vars := map[string]string{
		"orderId": order.OrderID,
		"status":  to,
	}
	if cmd.ItemID != "" {
		vars["itemId"] = cmd.ItemID
	}
	m.outbox.Dispatch(ctx, notify.Notification{
		Event:         notify.EventOrderUpdate,
		Recipient:     order.BuyerPhone,
		RecipientID:   order.BuyerID,
		RecipientRole: notify.RoleBuyer,
		Variables:     vars,
	})
}
