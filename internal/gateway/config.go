package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/aws"
)

// configKey is the settings-table row holding the payment gateway config.
// It lives in storage rather than the environment because admins toggle it.
const configKey = "payment_gateway"

// ErrNotConfigured is returned when the gateway is absent or disabled.
// Webhook ingress maps it to a 503 without touching the payload.
var ErrNotConfigured = errors.New("payment gateway not configured")

// Config is the admin-managed gateway configuration.
type Config struct {
	ConfigKey     string `dynamodbav:"config_key"` // PK
	Provider      string `dynamodbav:"provider"`
	Enabled       bool   `dynamodbav:"enabled"`
	SecretKey     string `dynamodbav:"secret_key,omitempty"`
	WebhookSecret string `dynamodbav:"webhook_secret,omitempty"`
}

// Store reads gateway configuration from the settings table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore returns a Store bound to the settings table.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Load returns the gateway config, or ErrNotConfigured when the row is
// missing or the gateway is disabled.
func (s *Store) Load(ctx context.Context) (*Config, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"config_key": &types.AttributeValueMemberS{Value: configKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get gateway config: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotConfigured
	}
	var cfg Config
	if err := attributevalue.UnmarshalMap(out.Item, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal gateway config: %w", err)
	}
	if !cfg.Enabled {
		return nil, ErrNotConfigured
	}
	return &cfg, nil
}
