package payouts

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

// ErrStatusMismatch indicates the payout was already terminal when a settle
// write was attempted.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the payouts table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new payouts Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// GetByReference fetches a payout by its transfer reference. Returns
// (nil, nil) if not found.
func (s *Store) GetByReference(ctx context.Context, reference string) (*Payout, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"reference": &types.AttributeValueMemberS{Value: reference},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get payout: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Payout
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payout: %w", err)
	}
	return &p, nil
}

// Settle moves a payout into the given terminal status, storing the failure
// reason when one applies. The conditional expression restricts the write to
// payouts still pending or processing; a payout already terminal returns
// ErrStatusMismatch so the caller can audit the duplicate.
func (s *Store) Settle(ctx context.Context, reference string, status Status, failureReason string) error {
	if !Terminal(status) {
		return fmt.Errorf("settle to non-terminal status %q", status)
	}
	now := s.nowFunc()
	expr := "SET #s = :new, settled_at = :sa, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":        &types.AttributeValueMemberS{Value: string(status)},
		":sa":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":ua":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":pending":    &types.AttributeValueMemberS{Value: string(StatusPending)},
		":processing": &types.AttributeValueMemberS{Value: string(StatusProcessing)},
	}
	if failureReason != "" {
		expr += ", failure_reason = :fr"
		values[":fr"] = &types.AttributeValueMemberS{Value: failureReason}
	}
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"reference": &types.AttributeValueMemberS{Value: reference},
		},
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ConditionExpression:       strPtr("#s = :pending OR #s = :processing"),
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("settle payout: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
