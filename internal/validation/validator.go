package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/fulfillment"
)

// New returns a configured validator with struct-level validation for the
// fulfillment action request registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(fulfillmentActionStructValidation, FulfillmentActionRequest{})
	return v
}

// fulfillmentActionStructValidation enforces the action-specific required
// fields: item actions need an itemId and bookCourier needs a provider.
func fulfillmentActionStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(FulfillmentActionRequest)

	action, err := fulfillment.ParseAction(req.Action)
	if err != nil {
		sl.ReportError(req.Action, "action", "Action", "known_action", "")
		return
	}

	if action.ItemScoped() && req.ItemID == "" {
		sl.ReportError(req.ItemID, "itemId", "ItemID", "required_for_item_action", "")
	}
	if action == fulfillment.ActionBookCourier && req.CourierProvider == "" {
		sl.ReportError(req.CourierProvider, "courierProvider", "CourierProvider", "required_for_book_courier", "")
	}
}
