package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
)

// Record is the per-product row in the inventory table.
type Record struct {
	ProductID     string    `dynamodbav:"product_id"` // PK
	Quantity      int       `dynamodbav:"quantity"`
	TrackQuantity bool      `dynamodbav:"track_quantity"`
	UpdatedAt     time.Time `dynamodbav:"updated_at"`
}

// ErrInsufficientStock indicates a reserve would take quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Ledger exposes the two atomic quantity operations on the inventory table.
// Restore is called by the payment failure path; Reserve by order creation.
type Ledger struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewLedger returns a Ledger bound to the inventory table.
func NewLedger(client aws.DynamoDBAPI, tableName string) *Ledger {
	return &Ledger{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Restore atomically increments a product's available quantity.
func (l *Ledger) Restore(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("restore quantity must be positive, got %d", qty)
	}
	return l.adjust(ctx, productID, qty, nil)
}

// Reserve atomically decrements a product's available quantity, failing with
// ErrInsufficientStock when fewer than qty units remain.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", qty)
	}
	cond := "quantity >= :abs"
	return l.adjust(ctx, productID, -qty, &cond)
}

func (l *Ledger) adjust(ctx context.Context, productID string, delta int, condition *string) error {
	now := l.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
		UpdateExpression: strPtr("SET quantity = if_not_exists(quantity, :zero) + :delta, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":delta": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", delta)},
			":ua":    &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}
	if condition != nil {
		input.ConditionExpression = condition
		input.ExpressionAttributeValues[":abs"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", -delta)}
	}
	_, err := l.client.UpdateItem(ctx, input)
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrInsufficientStock
		}
		return fmt.Errorf("adjust inventory for %s: %w", productID, err)
	}
	return nil
}

// Get fetches a product's inventory record. Returns (nil, nil) if absent.
func (l *Ledger) Get(ctx context.Context, productID string) (*Record, error) {
	out, err := l.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal inventory record: %w", err)
	}
	return &rec, nil
}

func strPtr(s string) *string { return &s }
