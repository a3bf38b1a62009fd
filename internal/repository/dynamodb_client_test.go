package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	putErr       error
	lastPutInput *dynamodb.PutItemInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2025, 6, 12, 3, 35, 14, 0, time.UTC) }
	return c
}

func strValue(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %q", key)
	return v.Value
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, " ")
	require.Error(t, err)
}

func TestSaveExchange_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.SaveExchange(context.Background(), "S1", "hello", "hi", "req-1"))
	require.NotNil(t, db.lastPutInput)
	require.Equal(t, "test-table", *db.lastPutInput.TableName)
	require.NotNil(t, db.lastPutInput.ConditionExpression)

	item := db.lastPutInput.Item
	require.Equal(t, "SESSION#S1", strValue(t, item, "PK"))
	require.Equal(t, "EXCHANGE#2025-06-12T03:35:14Z", strValue(t, item, "SK"))
	require.Equal(t, "hello", strValue(t, item, "prompt"))
	require.Equal(t, "hi", strValue(t, item, "answer"))
	require.Equal(t, "req-1", strValue(t, item, "requestId"))

	ttl, ok := item["ttl"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	require.Equal(t, "1752291314", ttl.Value)
}

func TestSaveExchange_RequiresSession(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.SaveExchange(context.Background(), " ", "hello", "hi", "")
	require.Error(t, err)
	require.Nil(t, db.lastPutInput)
}

func TestSaveExchange_PutError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("throttled")}
	c := mustNewClient(t, db)

	err := c.SaveExchange(context.Background(), "S1", "hello", "hi", "")
	require.ErrorContains(t, err, "throttled")
}
