package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"huijin-agent/internal/domain"
)

const (
	chatPath      = "/api/chat"
	voiceLinkPath = "/api/voice-link"

	correlationHeader = "X-Correlation-Id"

	fallbackRejectedMessage = "发送失败，请重试"
	networkErrorMessage     = "网络错误，请检查连接"
)

// NetworkError is returned when the gateway could not be reached or its
// reply could not be read.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gatewayclient: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) UserMessage() string { return networkErrorMessage }

// RejectedError is returned when the gateway answered without success.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gatewayclient: rejected with status %d: %s", e.StatusCode, e.Message)
}

func (e *RejectedError) UserMessage() string {
	if strings.TrimSpace(e.Message) == "" {
		return fallbackRejectedMessage
	}
	return e.Message
}

// replyEnvelope covers both the success and the failure reply shapes.
type replyEnvelope struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
}

// Client talks to the chat gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gatewayclient: base url must not be empty")
	}
	// No client timeout: the gateway bounds the upstream call itself.
	c := &Client{baseURL: baseURL, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

// Send posts one message with the current session id, if any.
func (c *Client) Send(ctx context.Context, message, sessionID string) (domain.ChatReply, error) {
	body, err := json.Marshal(domain.ChatRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("gatewayclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("gatewayclient: create request: %w", err)
	}
	correlationID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(correlationHeader, correlationID)

	log := slog.With("correlation_id", correlationID, "has_session", sessionID != "")
	start := time.Now()

	res, err := c.httpClient.Do(req)
	if err != nil {
		log.ErrorContext(ctx, "chat request failed", "error", err)
		return domain.ChatReply{}, &NetworkError{Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		log.ErrorContext(ctx, "failed to read chat reply", "status", res.StatusCode, "error", err)
		return domain.ChatReply{}, &NetworkError{Err: err}
	}

	var env replyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.ErrorContext(ctx, "failed to decode chat reply", "status", res.StatusCode, "error", err)
		return domain.ChatReply{}, &NetworkError{Err: fmt.Errorf("decode reply: %w", err)}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 || !env.Success {
		log.WarnContext(ctx, "chat rejected", "status", res.StatusCode, "error", env.Error)
		return domain.ChatReply{}, &RejectedError{StatusCode: res.StatusCode, Message: env.Error}
	}

	log.InfoContext(ctx, "chat reply received", "status", res.StatusCode, "latency_ms", time.Since(start).Milliseconds())
	return domain.ChatReply{
		Message:   env.Message,
		SessionID: env.SessionID,
		Success:   true,
	}, nil
}

// VoiceLink returns the configured voice-call link, or "" when the gateway
// has none.
func (c *Client) VoiceLink(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+voiceLinkPath, nil)
	if err != nil {
		return "", fmt.Errorf("gatewayclient: create request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gatewayclient: voice link: unexpected status %d", res.StatusCode)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&payload); err != nil {
		return "", fmt.Errorf("gatewayclient: decode voice link: %w", err)
	}
	return payload.URL, nil
}
