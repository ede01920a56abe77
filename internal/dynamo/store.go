// Package dynamo implements the watchlist table on Amazon DynamoDB.
// Items are flat attribute maps keyed by the string attribute "id"; updates
// are UpdateItem calls built by package update and return ALL_NEW attributes.
package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/mesh-intelligence/watchlist/internal/update"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// keyAttr is the partition key attribute.
const keyAttr = "id"

// fallbackRegion is used for request signing when only an endpoint (such as
// DynamoDB Local) is configured.
const fallbackRegion = "us-east-1"

// API is the subset of the DynamoDB client the store calls.
type API interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store implements types.Store on a DynamoDB table.
type Store struct {
	api   API
	table string
}

// Open builds a DynamoDB client from cfg. Static credentials are used when
// AccessKeyID is set; otherwise the SDK default chain applies. Endpoint
// overrides the service URL.
func Open(ctx context.Context, cfg types.Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = fallbackRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	table := cfg.Table
	if table == "" {
		table = types.DefaultTable
	}
	return New(client, table), nil
}

// New wraps an existing client.
func New(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// Scan reads every page of the table.
func (s *Store) Scan(ctx context.Context) ([]types.Record, error) {
	records := []types.Record{}
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{TableName: aws.String(s.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, types.Unavailable(types.OpScan, "", errors.Wrap(err, "scan page"))
		}
		for _, item := range page.Items {
			records = append(records, decodeItem(item))
		}
	}
	return records, nil
}

// Get reads one item with a consistent read.
func (s *Store) Get(ctx context.Context, id string) (types.Record, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return types.Record{}, types.Unavailable(types.OpGet, id, errors.Wrap(err, "get item"))
	}
	if len(out.Item) == 0 {
		return types.Record{}, &types.StoreError{Op: types.OpGet, ID: id, Kind: types.ErrItemMissing}
	}
	return decodeItem(out.Item), nil
}

// Create puts rec. An existing item with the same id is replaced.
func (s *Store) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	if rec.ID == "" {
		return types.Record{}, types.WriteRejected(types.OpCreate, "", types.ErrInvalidID)
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return types.Record{}, types.WriteRejected(types.OpCreate, rec.ID, errors.Wrap(err, "marshal item"))
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return types.Record{}, classifyWrite(ctx, types.OpCreate, rec.ID, errors.Wrap(err, "put item"))
	}
	return rec, nil
}

// Update sends a conditional UpdateItem and returns every attribute of the
// updated item.
func (s *Store) Update(ctx context.Context, id string, changes types.Changes) (types.Attributes, error) {
	stmt, err := update.Build(changes)
	if err != nil {
		return nil, err
	}
	if stmt.Empty() {
		return nil, nil
	}

	values, err := attributevalue.MarshalMap(stmt.Values)
	if err != nil {
		return nil, types.WriteRejected(types.OpUpdate, id, errors.Wrap(err, "marshal values"))
	}
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(id),
		UpdateExpression:          aws.String(stmt.Expression),
		ConditionExpression:       aws.String(stmt.Condition),
		ExpressionAttributeNames:  stmt.Names,
		ExpressionAttributeValues: values,
		ReturnValues:              ddbtypes.ReturnValueAllNew,
	})
	if err != nil {
		return nil, classifyWrite(ctx, types.OpUpdate, id, errors.Wrap(err, "update item"))
	}

	var attrs map[string]any
	if err := attributevalue.UnmarshalMap(out.Attributes, &attrs); err != nil {
		return nil, types.WriteRejected(types.OpUpdate, id, errors.Wrap(err, "decode attributes"))
	}
	return types.Attributes(attrs), nil
}

// Delete removes the item, failing with ErrItemMissing when it does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.table),
		Key:                      key(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": keyAttr},
	})
	if err != nil {
		return classifyWrite(ctx, types.OpDelete, id, errors.Wrap(err, "delete item"))
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error {
	return nil
}

func key(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		keyAttr: &ddbtypes.AttributeValueMemberS{Value: id},
	}
}

// classifyWrite maps a failed write. A failed existence condition means the
// item is missing; an exhausted context means the store did not answer.
func classifyWrite(ctx context.Context, op, id string, err error) error {
	var ccf *ddbtypes.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return types.WriteRejected(op, id, types.ErrItemMissing)
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.Unavailable(op, id, err)
	}
	return types.WriteRejected(op, id, err)
}

// decodeItem converts an item to a record, defaulting malformed attributes.
func decodeItem(item map[string]ddbtypes.AttributeValue) types.Record {
	var attrs map[string]any
	if err := attributevalue.UnmarshalMap(item, &attrs); err != nil {
		attrs = map[string]any{}
	}
	rec := types.RecordFromAttributes(attrs)
	if v, ok := item[keyAttr].(*ddbtypes.AttributeValueMemberS); ok {
		rec.ID = v.Value
	}
	return rec
}
