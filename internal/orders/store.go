package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
)

// ErrStatusMismatch indicates a conditional transition lost: the entity was
// not in the expected state at write time. Callers re-read and classify.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// itemsByOrderIndex is the GSI on the items table keyed by order_id.
const itemsByOrderIndex = "order_id-index"

// Store encapsulates operations on the orders and order items tables. Every
// transition is a conditional update keyed off the current persisted status,
// so concurrent duplicate webhooks cannot both win the same move.
type Store struct {
	client    aws.DynamoDBAPI
	ordersTbl string
	itemsTbl  string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, ordersTable, itemsTable string) *Store {
	return &Store{
		client:    client,
		ordersTbl: ordersTable,
		itemsTbl:  itemsTable,
		nowFunc:   time.Now,
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.ordersTbl,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetItem fetches a single order item by item_id. Returns (nil, nil) if not
// found. The stored status is normalized from legacy aliases.
func (s *Store) GetItem(ctx context.Context, itemID string) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.itemsTbl,
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get order item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it Item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal order item: %w", err)
	}
	it.FulfillmentStatus = NormalizeItemStatus(it.FulfillmentStatus)
	return &it, nil
}

// ListItems returns all items belonging to an order.
func (s *Store) ListItems(ctx context.Context, orderID string) ([]Item, error) {
	indexName := itemsByOrderIndex
	keyExpr := "order_id = :oid"
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.itemsTbl,
		IndexName:              &indexName,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":oid": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	items := make([]Item, 0, len(out.Items))
	for _, raw := range out.Items {
		var it Item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal order item: %w", err)
		}
		it.FulfillmentStatus = NormalizeItemStatus(it.FulfillmentStatus)
		items = append(items, it)
	}
	return items, nil
}

// PaymentDetails carries the gateway attributes recorded when an order is
// marked paid.
type PaymentDetails struct {
	Reference string
	Provider  string
	Method    string
	PaidAt    time.Time
}

// MarkPaid transitions payment_status to paid and confirms the order. The
// write only succeeds while payment_status is pending or failed (a retried
// charge may succeed after an earlier failure); any other current state
// returns ErrStatusMismatch.
func (s *Store) MarkPaid(ctx context.Context, orderID string, details PaymentDetails) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.ordersTbl,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         strPtr("SET payment_status = :paid, #s = :confirmed, payment_reference = :ref, payment_provider = :prov, payment_method = :meth, paid_at = :pa, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid":      &types.AttributeValueMemberS{Value: string(PaymentPaid)},
			":confirmed": &types.AttributeValueMemberS{Value: string(StatusConfirmed)},
			":ref":       &types.AttributeValueMemberS{Value: details.Reference},
			":prov":      &types.AttributeValueMemberS{Value: details.Provider},
			":meth":      &types.AttributeValueMemberS{Value: details.Method},
			":pa":        &types.AttributeValueMemberS{Value: details.PaidAt.Format(time.RFC3339)},
			":ua":        &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":pending":   &types.AttributeValueMemberS{Value: string(PaymentPending)},
			":failed":    &types.AttributeValueMemberS{Value: string(PaymentFailed)},
		},
		ConditionExpression: strPtr("payment_status = :pending OR payment_status = :failed"),
	}
	return s.update(ctx, input, "mark paid")
}

// MarkPaymentFailed transitions payment_status pending -> failed, recording
// the gateway reference. The condition restricts the move to pending only:
// a failure after paid is out-of-order delivery, and a failure after failed
// is a duplicate. Both return ErrStatusMismatch for the caller to classify.
func (s *Store) MarkPaymentFailed(ctx context.Context, orderID, reference, provider string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.ordersTbl,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression: strPtr("SET payment_status = :failed, payment_reference = :ref, payment_provider = :prov, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":  &types.AttributeValueMemberS{Value: string(PaymentFailed)},
			":ref":     &types.AttributeValueMemberS{Value: reference},
			":prov":    &types.AttributeValueMemberS{Value: provider},
			":ua":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":pending": &types.AttributeValueMemberS{Value: string(PaymentPending)},
		},
		ConditionExpression: strPtr("payment_status = :pending"),
	}
	return s.update(ctx, input, "mark payment failed")
}

// UpdateStatus conditionally moves the order status from expected to next.
// The move must be in the transition table; storage enforces the expected
// state again so a concurrent writer cannot sneak past the check.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expected, next Status) error {
	if !CanTransitionStatus(expected, next) {
		return fmt.Errorf("order transition %s -> %s not allowed", expected, next)
	}
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.ordersTbl,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         strPtr("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(next)},
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: strPtr("#s = :expected"),
	}
	return s.update(ctx, input, "update order status")
}

// BookCourier records courier metadata and moves the order
// ready_for_pickup -> out_for_delivery in one conditional write.
func (s *Store) BookCourier(ctx context.Context, orderID, provider, reference string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.ordersTbl,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         strPtr("SET #s = :new, courier_provider = :cp, courier_reference = :cr, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(StatusOutForDelivery)},
			":expected": &types.AttributeValueMemberS{Value: string(StatusReadyForPickup)},
			":cp":       &types.AttributeValueMemberS{Value: provider},
			":cr":       &types.AttributeValueMemberS{Value: reference},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: strPtr("#s = :expected"),
	}
	return s.update(ctx, input, "book courier")
}

// MarkDelivered moves the order out_for_delivery -> delivered and stamps
// delivered_at, which starts the dispute-eligibility window.
func (s *Store) MarkDelivered(ctx context.Context, orderID string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.ordersTbl,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         strPtr("SET #s = :new, delivered_at = :da, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(StatusDelivered)},
			":expected": &types.AttributeValueMemberS{Value: string(StatusOutForDelivery)},
			":da":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: strPtr("#s = :expected"),
	}
	return s.update(ctx, input, "mark order delivered")
}

// UpdateItemStatus conditionally moves an item's fulfillment status from
// expected to next. The move must be in the item transition table.
func (s *Store) UpdateItemStatus(ctx context.Context, itemID string, expected, next ItemStatus) error {
	if !CanTransitionItem(expected, next) {
		return fmt.Errorf("item transition %s -> %s not allowed", expected, next)
	}
	now := s.nowFunc()
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(next)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
		":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
	}
	// Old rows still carry the legacy spelling, so the condition has to
	// match it too or those items could never advance.
	cond := "fulfillment_status = :expected"
	if legacy, ok := legacyItemAlias(expected); ok {
		cond += " OR fulfillment_status = :legacy"
		values[":legacy"] = &types.AttributeValueMemberS{Value: string(legacy)}
	}
	input := &dyn.UpdateItemInput{
		TableName: &s.itemsTbl,
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
		UpdateExpression:          strPtr("SET fulfillment_status = :new, updated_at = :ua"),
		ExpressionAttributeValues: values,
		ConditionExpression:       &cond,
	}
	return s.update(ctx, input, "update item status")
}

func (s *Store) update(ctx context.Context, input *dyn.UpdateItemInput, op string) error {
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
