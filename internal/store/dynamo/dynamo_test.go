package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/store"
)

// fakeAPI records calls and serves Scan from pages.
type fakeAPI struct {
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	deletes []*dynamodb.DeleteItemInput
	pages   [][]map[string]types.AttributeValue
	scans   int
	err     error
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, f.err
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.err
}

func (f *fakeAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deletes = append(f.deletes, in)
	return &dynamodb.DeleteItemOutput{}, f.err
}

func (f *fakeAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, f.err
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.scans++
	idx := 0
	if in.ExclusiveStartKey != nil {
		var err error
		idx, err = pageIndex(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
	}
	out := &dynamodb.ScanOutput{}
	if idx < len(f.pages) {
		out.Items = f.pages[idx]
	}
	if idx+1 < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"page": &types.AttributeValueMemberN{Value: string(rune('0' + idx + 1))},
		}
	}
	return out, nil
}

func pageIndex(key map[string]types.AttributeValue) (int, error) {
	n, ok := key["page"].(*types.AttributeValueMemberN)
	if !ok || len(n.Value) != 1 {
		return 0, errors.New("bad start key")
	}
	return int(n.Value[0] - '0'), nil
}

func TestStorePutConvertsKinds(t *testing.T) {
	api := &fakeAPI{}
	s := NewWithAPI(api, "")

	err := s.Put(context.Background(), store.Item{
		"id":       store.S("abc"),
		"amount":   store.N("42.5"),
		"category": store.S("Food"),
	})
	require.NoError(t, err)
	require.Len(t, api.puts, 1)

	in := api.puts[0]
	assert.Equal(t, DefaultTable, aws.ToString(in.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "abc"}, in.Item["id"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "42.5"}, in.Item["amount"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Food"}, in.Item["category"])
}

func TestStorePutWithoutID(t *testing.T) {
	api := &fakeAPI{}
	err := NewWithAPI(api, "t").Put(context.Background(), store.Item{"amount": store.N("1")})
	require.Error(t, err)
	assert.Empty(t, api.puts)
}

func TestStoreScanAllPaginates(t *testing.T) {
	api := &fakeAPI{pages: [][]map[string]types.AttributeValue{
		{
			{"id": &types.AttributeValueMemberS{Value: "1"}, "amount": &types.AttributeValueMemberN{Value: "10"}},
		},
		{
			{"id": &types.AttributeValueMemberS{Value: "2"}, "tags": &types.AttributeValueMemberSS{Value: []string{"x"}}},
		},
	}}

	items, err := NewWithAPI(api, "Expenses").ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, api.scans)
	assert.Equal(t, store.N("10"), items[0]["amount"])
	assert.Equal(t, "2", items[1].ID())
	assert.NotContains(t, items[1], "tags")
}

func TestStoreUpdateFieldsBuildsExpression(t *testing.T) {
	api := &fakeAPI{}
	s := NewWithAPI(api, "Expenses")

	err := s.UpdateFields(context.Background(), "abc", store.Item{
		"status": store.S("Cleared"),
		"amount": store.N("3"),
		"name":   store.S("Lunch"),
		"id":     store.S("ignored"),
	})
	require.NoError(t, err)
	require.Len(t, api.updates, 1)

	in := api.updates[0]
	assert.Equal(t, "SET #amount = :amount, #name = :name, #status = :status", aws.ToString(in.UpdateExpression))
	assert.Equal(t, map[string]string{"#amount": "amount", "#name": "name", "#status": "status"}, in.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, in.ExpressionAttributeValues[":amount"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "abc"}, in.Key["id"])
}

func TestStoreUpdateFieldsNothingToSet(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, NewWithAPI(api, "Expenses").UpdateFields(context.Background(), "abc", store.Item{"id": store.S("abc")}))
	assert.Empty(t, api.updates)
}

func TestStoreDeleteAndErrors(t *testing.T) {
	api := &fakeAPI{}
	s := NewWithAPI(api, "Expenses")
	require.NoError(t, s.DeleteByID(context.Background(), "abc"))
	require.Len(t, api.deletes, 1)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "abc"}, api.deletes[0].Key["id"])

	boom := errors.New("throttled")
	api.err = boom
	assert.ErrorIs(t, s.DeleteByID(context.Background(), "abc"), boom)
	assert.ErrorIs(t, s.Ping(context.Background()), boom)
	_, err := s.ScanAll(context.Background())
	assert.ErrorIs(t, err, boom)
}
