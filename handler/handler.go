package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"huijin-agent/internal/domain"
	"huijin-agent/internal/logger"
	"huijin-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

// Handler serves /api/chat behind API Gateway with the same contract as the
// HTTP gateway.
type Handler struct {
	chat ChatUseCase
}

func NewHandler(chat ChatUseCase) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{chat: chat}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logger.WithCorrelationID(ctx, correlationID)

	in, err := parseInput(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to decode chat request", "error", err)
		return errorResponse(correlationID, usecase.Classify(err)), nil
	}

	out, err := h.chat.Chat(ctx, in)
	if err != nil {
		return errorResponse(correlationID, usecase.Classify(err)), nil
	}

	return jsonResponse(http.StatusOK, correlationID, domain.ChatReply{
		Message:   out.Message,
		SessionID: out.SessionID,
		Success:   true,
	}), nil
}

func parseInput(event events.APIGatewayProxyRequest) (usecase.ChatInput, error) {
	if strings.EqualFold(event.HTTPMethod, http.MethodGet) {
		return usecase.ChatInput{
			Message:   event.QueryStringParameters["message"],
			SessionID: event.QueryStringParameters["sessionId"],
			Variant:   domain.VariantQuery,
		}, nil
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return usecase.ChatInput{}, fmt.Errorf("decode base64 body: %w", err)
		}
		body = decoded
	}

	var req domain.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return usecase.ChatInput{}, err
	}
	return usecase.ChatInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		Variant:   domain.VariantInteractive,
	}, nil
}

func errorResponse(correlationID string, err *usecase.Error) events.APIGatewayProxyResponse {
	return jsonResponse(err.HTTPStatus(), correlationID, domain.ErrorReply{Error: err.UserMessage()})
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"服务器内部错误"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json; charset=utf-8",
			correlationHeader: correlationID,
		},
		Body: string(raw),
	}
}

// headerValue looks a header up case-insensitively; API Gateway does not
// normalize header names.
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
