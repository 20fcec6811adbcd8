// Package testutil holds in-memory fakes for the AWS service interfaces,
// shared by the package tests. The DynamoDB fake understands just the
// expression shapes the stores actually issue.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// keyAttrs are the primary key attribute names used across the tables, in
// probe order.
var keyAttrs = []string{"order_id", "item_id", "product_id", "reference", "config_key", "entry_id", "idempotency_key"}

// Dynamo is an in-memory DynamoDB fake: table -> pk value -> item.
type Dynamo struct {
	mu          sync.Mutex
	tables      map[string]map[string]map[string]types.AttributeValue
	PutCalls    int
	UpdateCalls int
}

// NewDynamo returns an empty fake.
func NewDynamo() *Dynamo {
	return &Dynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

// Seed marshals v and stores it under table/key.
func (m *Dynamo) Seed(t interface{ Fatalf(string, ...interface{}) }, table, key string, v interface{}) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		t.Fatalf("seed %s/%s: %v", table, key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(table)[key] = item
}

// Item returns the raw stored item, or nil.
func (m *Dynamo) Item(table, key string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensure(table)[key]
}

// Items returns all items in a table.
func (m *Dynamo) Items(table string) []map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]types.AttributeValue{}
	for _, it := range m.ensure(table) {
		out = append(out, it)
	}
	return out
}

// StringAttr returns the S value of an attribute of a stored item, "" when
// absent.
func (m *Dynamo) StringAttr(table, key, attr string) string {
	item := m.Item(table, key)
	if item == nil {
		return ""
	}
	if s, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// NumberAttr returns the N value of an attribute of a stored item as float.
func (m *Dynamo) NumberAttr(table, key, attr string) float64 {
	item := m.Item(table, key)
	if item == nil {
		return 0
	}
	if n, ok := item[attr].(*types.AttributeValueMemberN); ok {
		f, _ := strconv.ParseFloat(n.Value, 64)
		return f
	}
	return 0
}

func (m *Dynamo) ensure(table string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[table]
}

func pkOf(attrs map[string]types.AttributeValue) (string, error) {
	for _, k := range keyAttrs {
		if v, ok := attrs[k]; ok {
			if s, ok := v.(*types.AttributeValueMemberS); ok {
				return s.Value, nil
			}
		}
	}
	return "", errors.New("no known key attribute")
}

func (m *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.ensure(*params.TableName)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	table := m.ensure(*params.TableName)
	if params.ConditionExpression != nil && strings.HasPrefix(*params.ConditionExpression, "attribute_not_exists") {
		if _, exists := table[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	table[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

// Query supports the single access pattern the stores use: equality on
// order_id through a GSI.
func (m *Dynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want, ok := params.ExpressionAttributeValues[":oid"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("unsupported query: %v", params.KeyConditionExpression)
	}
	out := &dyn.QueryOutput{}
	for _, item := range m.ensure(*params.TableName) {
		if s, ok := item["order_id"].(*types.AttributeValueMemberS); ok && s.Value == want.Value {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (m *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	table := m.ensure(*params.TableName)
	item, exists := table[pk]
	if !exists {
		// DynamoDB upserts on UpdateItem, but a conditional write against a
		// missing item fails its condition.
		if params.ConditionExpression != nil {
			return nil, &types.ConditionalCheckFailedException{}
		}
		item = map[string]types.AttributeValue{}
		for k, v := range params.Key {
			item[k] = v
		}
		table[pk] = item
	}
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if params.UpdateExpression != nil {
		if err := applySet(*params.UpdateExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	return &dyn.UpdateItemOutput{}, nil
}

// evalCondition handles OR-joined clauses of the forms "a = :v" and
// "a >= :v".
func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " OR ") {
		clause = strings.TrimSpace(clause)
		var op string
		switch {
		case strings.Contains(clause, ">="):
			op = ">="
		case strings.Contains(clause, "="):
			op = "="
		default:
			return false, fmt.Errorf("unsupported condition clause %q", clause)
		}
		parts := strings.SplitN(clause, op, 2)
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		val, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, fmt.Errorf("condition value %q not supplied", parts[1])
		}
		have, ok := item[attr]
		if !ok {
			continue
		}
		switch op {
		case "=":
			if avEqual(have, val) {
				return true, nil
			}
		case ">=":
			hf, vf := avFloat(have), avFloat(val)
			if hf >= vf {
				return true, nil
			}
		}
	}
	return false, nil
}

// applySet handles "SET a = :v, b = :v2" plus the counter idiom
// "a = if_not_exists(a, :zero) + :delta".
func applySet(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimPrefix(strings.TrimSpace(expr), "SET ")
	for _, clause := range splitClauses(expr) {
		parts := strings.SplitN(clause, " = ", 2)
		if len(parts) != 2 {
			return fmt.Errorf("unsupported set clause %q", clause)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		rhs := strings.TrimSpace(parts[1])
		if strings.HasPrefix(rhs, "if_not_exists(") {
			// counter add: if_not_exists(attr, :zero) + :delta
			deltaRef := rhs[strings.LastIndex(rhs, ":"):]
			delta, ok := values[deltaRef]
			if !ok {
				return fmt.Errorf("set value %q not supplied", deltaRef)
			}
			current := 0.0
			if have, ok := item[attr]; ok {
				current = avFloat(have)
			}
			sum := current + avFloat(delta)
			item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(sum, 'f', -1, 64)}
			continue
		}
		val, ok := values[rhs]
		if !ok {
			return fmt.Errorf("set value %q not supplied", rhs)
		}
		item[attr] = val
	}
	return nil
}

// splitClauses splits a SET expression on top-level commas, leaving commas
// inside function calls like if_not_exists(...) alone.
func splitClauses(expr string) []string {
	var clauses []string
	depth, start := 0, 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				clauses = append(clauses, strings.TrimSpace(expr[start:i]))
				start = i + 1
			}
		}
	}
	clauses = append(clauses, strings.TrimSpace(expr[start:]))
	return clauses
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if real, ok := names[name]; ok {
			return real
		}
	}
	return name
}

func avEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && avFloat(av) == avFloat(bv)
	default:
		return false
	}
}

func avFloat(v types.AttributeValue) float64 {
	if n, ok := v.(*types.AttributeValueMemberN); ok {
		f, _ := strconv.ParseFloat(n.Value, 64)
		return f
	}
	return 0
}

// SQS is an in-memory SQS fake capturing sent messages.
type SQS struct {
	mu       sync.Mutex
	Messages []SentMessage
	Err      error // returned from SendMessage when set
}

// SentMessage is one captured SendMessage call.
type SentMessage struct {
	QueueURL   string
	Body       string
	Attributes map[string]string
}

func (s *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	msg := SentMessage{Attributes: map[string]string{}}
	if params.QueueUrl != nil {
		msg.QueueURL = *params.QueueUrl
	}
	if params.MessageBody != nil {
		msg.Body = *params.MessageBody
	}
	for k, v := range params.MessageAttributes {
		if v.StringValue != nil {
			msg.Attributes[k] = *v.StringValue
		}
	}
	s.Messages = append(s.Messages, msg)
	return &sqs.SendMessageOutput{}, nil
}

// Sent returns the captured messages.
func (s *SQS) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// CloudWatch is an in-memory CloudWatch fake counting PutMetricData calls.
type CloudWatch struct {
	mu    sync.Mutex
	Calls int
}

func (c *CloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	return &cloudwatch.PutMetricDataOutput{}, nil
}
