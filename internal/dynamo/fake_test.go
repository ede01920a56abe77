package dynamo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is an in-memory DynamoDB table understanding the expressions this
// package sends: "SET #a = :a, ..." and "attribute_exists(#id)".
type fakeAPI struct {
	mu       sync.Mutex
	order    []string
	items    map[string]map[string]ddbtypes.AttributeValue
	pageSize int
	err      error // returned by every call when set

	calls      int
	lastUpdate *dynamodb.UpdateItemInput
	lastDelete *dynamodb.DeleteItemInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func itemID(key map[string]ddbtypes.AttributeValue) string {
	if s, ok := key[keyAttr].(*ddbtypes.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	start := 0
	if in.ExclusiveStartKey != nil {
		last := itemID(in.ExclusiveStartKey)
		for i, id := range f.order {
			if id == last {
				start = i + 1
			}
		}
	}
	end := len(f.order)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, id := range f.order[start:end] {
		out.Items = append(out.Items, f.items[id])
	}
	if end < len(f.order) {
		out.LastEvaluatedKey = key(f.order[end-1])
	}
	return out, nil
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemID(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	id := itemID(in.Item)
	if _, ok := f.items[id]; !ok {
		f.order = append(f.order, id)
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastUpdate = in
	if f.err != nil {
		return nil, f.err
	}
	id := itemID(in.Key)
	item, ok := f.items[id]
	if aws.ToString(in.ConditionExpression) == "attribute_exists(#id)" && !ok {
		return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	expr := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	for _, clause := range strings.Split(expr, ", ") {
		parts := strings.SplitN(clause, " = ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("fake: bad clause %q", clause)
		}
		item[in.ExpressionAttributeNames[parts[0]]] = in.ExpressionAttributeValues[parts[1]]
	}
	return &dynamodb.UpdateItemOutput{Attributes: item}, nil
}

func (f *fakeAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastDelete = in
	if f.err != nil {
		return nil, f.err
	}
	id := itemID(in.Key)
	if _, ok := f.items[id]; !ok {
		if in.ConditionExpression != nil {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
		return &dynamodb.DeleteItemOutput{}, nil
	}
	delete(f.items, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return &dynamodb.DeleteItemOutput{}, nil
}
