package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/fulfillment"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/orders"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/validation"
)

// VendorHeader carries the authenticated caller identity. Session mechanics
// live upstream; by the time a request reaches this core the vendor id is
// opaque and trusted.
const VendorHeader = "X-Vendor-Id"

// RegisterFulfillmentRoutes registers the vendor fulfillment mutation and
// the order read endpoint.
func RegisterFulfillmentRoutes(r *gin.Engine, machine *fulfillment.Machine, store *orders.Store) {
	v := validation.New()

	r.POST("/orders/:id/fulfillment", func(c *gin.Context) {
		vendorID := c.GetHeader(VendorHeader)
		if vendorID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_caller_identity"})
			return
		}

		var req validation.FulfillmentActionRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		action, err := fulfillment.ParseAction(req.Action)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_action", "action": req.Action})
			return
		}

		order, err := machine.Apply(c.Request.Context(), fulfillment.Command{
			OrderID:          c.Param("id"),
			VendorID:         vendorID,
			Action:           action,
			ItemID:           req.ItemID,
			CourierProvider:  req.CourierProvider,
			CourierReference: req.CourierReference,
		})
		if err != nil {
			writeFulfillmentError(c, err)
			return
		}
		c.JSON(http.StatusOK, orderResponse(order))
	})

	r.GET("/orders/:id", func(c *gin.Context) {
		order, err := store.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order_load_failed"})
			return
		}
		if order == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, orderResponse(order))
	})
}

// writeFulfillmentError maps the machine's rejections onto client-facing
// statuses. Transition rejections include current vs. required state so
// vendor tooling can explain why an action is disabled.
func writeFulfillmentError(c *gin.Context, err error) {
	var te *fulfillment.TransitionError
	switch {
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{
			"error":    "transition_not_allowed",
			"entity":   te.Entity,
			"entityId": te.EntityID,
			"current":  te.Current,
			"required": te.Required,
		})
	case errors.Is(err, fulfillment.ErrOrderNotFound), errors.Is(err, fulfillment.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, fulfillment.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission_denied"})
	case errors.Is(err, fulfillment.ErrPaymentRequired):
		c.JSON(http.StatusConflict, gin.H{"error": "order_not_paid"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func orderResponse(order *orders.Order) gin.H {
	return gin.H{
		"orderId":          order.OrderID,
		"status":           order.Status,
		"paymentStatus":    order.PaymentStatus,
		"paymentReference": order.PaymentReference,
		"total":            order.Total,
		"courierProvider":  order.CourierProvider,
		"courierReference": order.CourierReference,
		"deliveredAt":      order.DeliveredAt,
	}
}
