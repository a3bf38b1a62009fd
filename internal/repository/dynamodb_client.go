package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"huijin-agent/internal/domain"
)

const (
	skPrefixExchange = "EXCHANGE#"
	ttlDuration      = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client records chat exchanges in a DynamoDB table keyed by upstream session.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the partition key for an upstream session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func exchangeSK(ts time.Time) string {
	return skPrefixExchange + ts.UTC().Format(time.RFC3339Nano)
}

// SaveExchange persists one completed prompt/answer pair.
func (c *Client) SaveExchange(ctx context.Context, sessionID, prompt, answer, requestID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: SaveExchange: session id is required")
	}
	ex := c.newExchange(sessionID, prompt, answer, requestID)

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                exchangeItem(ex),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

func (c *Client) newExchange(sessionID, prompt, answer, requestID string) domain.Exchange {
	now := c.now().UTC()
	return domain.Exchange{
		PK:        sessionPK(sessionID),
		SK:        exchangeSK(now),
		SessionID: sessionID,
		Prompt:    prompt,
		Answer:    answer,
		RequestID: requestID,
		CreatedAt: now.Format(time.RFC3339),
		TTL:       now.Add(ttlDuration).Unix(),
	}
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: ex.PK},
		"SK":        &types.AttributeValueMemberS{Value: ex.SK},
		"sessionId": &types.AttributeValueMemberS{Value: ex.SessionID},
		"prompt":    &types.AttributeValueMemberS{Value: ex.Prompt},
		"answer":    &types.AttributeValueMemberS{Value: ex.Answer},
		"requestId": &types.AttributeValueMemberS{Value: ex.RequestID},
		"createdAt": &types.AttributeValueMemberS{Value: ex.CreatedAt},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ex.TTL, 10)},
	}
}
