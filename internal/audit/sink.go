package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
)

// Sink writes audit entries to DynamoDB. Pure write: it holds no business
// logic and never reads back.
type Sink struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	idFunc    func() string
}

// NewSink returns a Sink bound to the audit table.
func NewSink(client aws.DynamoDBAPI, tableName string) *Sink {
	return &Sink{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		idFunc:    uuid.NewString,
	}
}

// Record appends one entry. detail may be nil; otherwise it is JSON-encoded
// into the entry. An empty actor defaults to SystemActor.
func (s *Sink) Record(ctx context.Context, action, category, targetID, targetType, targetName string, detail interface{}, severity, actor string) error {
	if actor == "" {
		actor = SystemActor
	}
	entry := Entry{
		EntryID:    s.idFunc(),
		Action:     action,
		Category:   category,
		TargetID:   targetID,
		TargetType: targetType,
		TargetName: targetName,
		Severity:   severity,
		Actor:      actor,
		CreatedAt:  s.nowFunc(),
	}
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		entry.Details = string(b)
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put audit entry: %w", err)
	}
	return nil
}
