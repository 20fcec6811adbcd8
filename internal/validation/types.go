package validation

// FulfillmentActionRequest is the payload for the per-order fulfillment
// mutation endpoint. Action discriminates which transition the vendor wants;
// the remaining fields are action-specific.
type FulfillmentActionRequest struct {
	Action           string `json:"action" validate:"required"`
	ItemID           string `json:"itemId,omitempty"`
	CourierProvider  string `json:"courierProvider,omitempty"`
	CourierReference string `json:"courierReference,omitempty"`
}
