package orders

import "time"

// PaymentStatus is the order's payment state. It only ever moves
// pending -> paid or pending -> failed; failed may still move to paid when a
// retried charge succeeds.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// paymentTransitions is the closed table of allowed payment moves.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentFailed:  {PaymentPaid},
}

// CanTransitionPayment reports whether from -> to is an allowed payment move.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Status is the order-level fulfillment state.
type Status string

const (
	StatusCreated        Status = "created"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCompleted      Status = "completed"
	StatusDisputed       Status = "disputed"
	StatusCancelled      Status = "cancelled"
)

// statusTransitions covers the normal path; disputed and cancelled are
// entered by external subsystems and block everything below.
var statusTransitions = map[Status][]Status{
	StatusCreated:        {StatusConfirmed},
	StatusConfirmed:      {StatusPreparing},
	StatusPreparing:      {StatusReadyForPickup},
	StatusReadyForPickup: {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {StatusCompleted},
}

// CanTransitionStatus reports whether from -> to is an allowed order move.
func CanTransitionStatus(from, to Status) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ItemStatus is a single item's fulfillment state, scoped to one vendor.
type ItemStatus string

const (
	ItemPending         ItemStatus = "pending"
	ItemPacked          ItemStatus = "packed"
	ItemHandedToCourier ItemStatus = "handed_to_courier"
	ItemDelivered       ItemStatus = "delivered"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:         {ItemPacked},
	ItemPacked:          {ItemHandedToCourier},
	ItemHandedToCourier: {ItemDelivered},
}

// CanTransitionItem reports whether from -> to is an allowed item move.
func CanTransitionItem(from, to ItemStatus) bool {
	for _, allowed := range itemTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// NormalizeItemStatus maps legacy aliases still present in stored rows onto
// the canonical states ("shipped" and "fulfilled" predate the courier flow).
func NormalizeItemStatus(s ItemStatus) ItemStatus {
	switch s {
	case "shipped":
		return ItemHandedToCourier
	case "fulfilled":
		return ItemDelivered
	default:
		return s
	}
}

// legacyItemAlias returns the legacy stored spelling of a canonical status.
// Conditional writes must accept it alongside the canonical value, because
// reads normalize but old rows still carry the alias.
func legacyItemAlias(s ItemStatus) (ItemStatus, bool) {
	switch s {
	case ItemHandedToCourier:
		return "shipped", true
	case ItemDelivered:
		return "fulfilled", true
	default:
		return "", false
	}
}

// Order is the row stored in the orders table. Money fields are major
// currency units.
type Order struct {
	OrderID          string        `dynamodbav:"order_id"` // PK
	BuyerID          string        `dynamodbav:"buyer_id"`
	BuyerName        string        `dynamodbav:"buyer_name,omitempty"`
	BuyerEmail       string        `dynamodbav:"buyer_email,omitempty"`
	BuyerPhone       string        `dynamodbav:"buyer_phone,omitempty"`
	Subtotal         float64       `dynamodbav:"subtotal"`
	Discount         float64       `dynamodbav:"discount,omitempty"`
	Shipping         float64       `dynamodbav:"shipping,omitempty"`
	Tax              float64       `dynamodbav:"tax,omitempty"`
	Total            float64       `dynamodbav:"total"`
	Status           Status        `dynamodbav:"status"`
	PaymentStatus    PaymentStatus `dynamodbav:"payment_status"`
	PaymentReference string        `dynamodbav:"payment_reference,omitempty"`
	PaymentProvider  string        `dynamodbav:"payment_provider,omitempty"`
	PaymentMethod    string        `dynamodbav:"payment_method,omitempty"`
	PaidAt           *time.Time    `dynamodbav:"paid_at,omitempty"`
	ShippingAddress  string        `dynamodbav:"shipping_address,omitempty"`
	CourierProvider  string        `dynamodbav:"courier_provider,omitempty"`
	CourierReference string        `dynamodbav:"courier_reference,omitempty"`
	DeliveredAt      *time.Time    `dynamodbav:"delivered_at,omitempty"` // dispute window start
	CreatedAt        time.Time     `dynamodbav:"created_at"`
	UpdatedAt        time.Time     `dynamodbav:"updated_at"`
}

// Item is the row stored in the order items table.
type Item struct {
	ItemID            string     `dynamodbav:"item_id"` // PK
	OrderID           string     `dynamodbav:"order_id"`
	ProductID         string     `dynamodbav:"product_id"`
	VendorID          string     `dynamodbav:"vendor_id"`
	Quantity          int        `dynamodbav:"quantity"`
	UnitPrice         float64    `dynamodbav:"unit_price"`
	FinalPrice        *float64   `dynamodbav:"final_price,omitempty"` // negotiated price, overrides unit price
	FulfillmentStatus ItemStatus `dynamodbav:"fulfillment_status"`
	CreatedAt         time.Time  `dynamodbav:"created_at"`
	UpdatedAt         time.Time  `dynamodbav:"updated_at"`
}

// LineTotal returns the amount this item contributes to the order total,
// honoring a negotiated final price when present.
func (it Item) LineTotal() float64 {
	if it.FinalPrice != nil {
		return *it.FinalPrice * float64(it.Quantity)
	}
	return it.UnitPrice * float64(it.Quantity)
}

// DisputeWindow is how long after order delivery a buyer may still open a
// dispute. The window starts at DeliveredAt.
const DisputeWindow = 48 * time.Hour
