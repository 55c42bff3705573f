// Package dynamo stores expense items in an Amazon DynamoDB table keyed by
// the string attribute "id".
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	applog "expensetracker/internal/log"
	"expensetracker/internal/store"
)

// DefaultTable is the table name used when none is configured.
const DefaultTable = "Expenses"

// API is the subset of the DynamoDB client the store uses.
type API interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Config holds connection settings.
type Config struct {
	Table    string
	Region   string
	Endpoint string // optional, e.g. http://localhost:8000 for DynamoDB Local
}

type Store struct {
	api   API
	table string
}

var _ store.Store = (*Store)(nil)

// New builds a store from the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(client, cfg.Table), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{api: api, table: table}
}

func (s *Store) Close() error { return nil }

// Ping checks that the table exists and is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, it store.Item) error {
	if it.ID() == "" {
		return errors.New("item has no id")
	}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      toAttributeValues(it),
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// ScanAll pages through the whole table.
func (s *Store) ScanAll(ctx context.Context) ([]store.Item, error) {
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{TableName: aws.String(s.table)})

	var out []store.Item
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		for _, raw := range page.Items {
			out = append(out, fromAttributeValues(ctx, raw))
		}
	}
	return out, nil
}

func (s *Store) UpdateFields(ctx context.Context, id string, fields store.Item) error {
	if id == "" {
		return errors.New("empty id")
	}
	expr, names, values := buildUpdate(fields)
	if expr == "" {
		return nil
	}
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// buildUpdate renders a SET expression over every field except the key.
// Attribute names go through placeholders because name, date and status are
// reserved words.
func buildUpdate(fields store.Item) (string, map[string]string, map[string]types.AttributeValue) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", nil, nil
	}
	sort.Strings(keys)

	names := make(map[string]string, len(keys))
	values := make(map[string]types.AttributeValue, len(keys))
	expr := "SET "
	for i, k := range keys {
		if i > 0 {
			expr += ", "
		}
		expr += "#" + k + " = :" + k
		names["#"+k] = k
		values[":"+k] = toAttributeValue(fields[k])
	}
	return expr, names, values
}

func toAttributeValue(v store.Value) types.AttributeValue {
	if v.Kind == store.KindNumber {
		return &types.AttributeValueMemberN{Value: v.Raw}
	}
	return &types.AttributeValueMemberS{Value: v.Raw}
}

func toAttributeValues(it store.Item) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(it))
	for k, v := range it {
		out[k] = toAttributeValue(v)
	}
	return out
}

// fromAttributeValues keeps scalar strings and numbers; anything else was not
// written by this service and is dropped.
func fromAttributeValues(ctx context.Context, raw map[string]types.AttributeValue) store.Item {
	it := make(store.Item, len(raw))
	for k, av := range raw {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			it[k] = store.S(v.Value)
		case *types.AttributeValueMemberN:
			it[k] = store.N(v.Value)
		default:
			logger().DebugContext(ctx, "Ignoring non-scalar attribute", "attribute", k, "type", fmt.Sprintf("%T", av))
		}
	}
	return it
}

func logger() *slog.Logger {
	return slog.Default().With(applog.FieldComponent, applog.ComponentStorage)
}
