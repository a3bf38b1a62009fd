package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"huijin-agent/internal/domain"
)

const instrumentationName = "huijin-agent/dashscope"

// completionRequest is the app completion request body.
type completionRequest struct {
	Input completionInput `json:"input"`
	Debug *struct{}       `json:"debug,omitempty"`
}

type completionInput struct {
	Prompt    string          `json:"prompt"`
	SessionID string          `json:"session_id,omitempty"`
	BizParams json.RawMessage `json:"biz_params,omitempty"`
}

// completionResponse is the subset of the app completion reply we use.
type completionResponse struct {
	Output *struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
		SessionID    string `json:"session_id"`
	} `json:"output"`
	RequestID string `json:"request_id"`
}

// tokenPayload is the optional JSON shape of the key stored in SSM.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("dashscope: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the DashScope app completion endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	apiKey     string
	getter     Getter
	keyParam   string

	keyMu       sync.Mutex
	resolvedKey string

	tracer   trace.Tracer
	duration metric.Float64Histogram
}

type Option func(*Client)

// WithAPIKey sets a static bearer credential.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithParamStore resolves the bearer credential from a parameter store on
// first successful use. A static key set with WithAPIKey takes precedence.
func WithParamStore(g Getter, name string) Option {
	return func(c *Client) {
		c.getter = g
		c.keyParam = strings.TrimSpace(name)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the given completion URL
// (https://dashscope.aliyuncs.com/api/v1/apps/<app id>/completion).
func NewClient(completionURL string, opts ...Option) (*Client, error) {
	completionURL = strings.TrimSpace(completionURL)
	if completionURL == "" {
		return nil, errors.New("dashscope: completion url must not be empty")
	}
	c := &Client{
		url:        completionURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" && (c.getter == nil || c.keyParam == "") {
		return nil, errors.New("dashscope: an api key or a parameter store key source is required")
	}

	duration, err := otel.Meter(instrumentationName).Float64Histogram(
		"dashscope.request.duration",
		metric.WithDescription("DashScope completion request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("dashscope: create duration histogram: %w", err)
	}
	c.duration = duration
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.resolvedKey != "" {
		return c.resolvedKey, nil
	}
	// Failures are not cached. The lookup outlives a cancelled caller so the
	// next request can reuse its result; the key source bounds its own time.
	key, err := fetchAPIKeyFromParamStore(context.WithoutCancel(ctx), c.getter, c.keyParam)
	if err != nil {
		return "", err
	}
	c.resolvedKey = key
	return key, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// Complete sends one prompt. A 2xx reply without output text yields a
// Completion with empty Text; non-2xx replies yield *HTTPStatusError.
func (c *Client) Complete(ctx context.Context, in domain.CompletionRequest) (domain.Completion, error) {
	ctx, span := c.tracer.Start(ctx, "dashscope.completion", trace.WithAttributes(
		attribute.String("dashscope.variant", in.Variant.String()),
		attribute.Bool("dashscope.has_session", in.SessionID != ""),
	))
	defer span.End()

	start := time.Now()
	out, status, err := c.complete(ctx, in)
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.Int("http.response.status_code", status)))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if out.RequestID != "" {
		span.SetAttributes(attribute.String("dashscope.request_id", out.RequestID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Completion{}, err
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, in domain.CompletionRequest) (domain.Completion, int, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return domain.Completion{}, 0, err
	}

	body, err := json.Marshal(buildRequest(in))
	if err != nil {
		return domain.Completion{}, 0, fmt.Errorf("dashscope: marshal request: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.Completion{}, 0, fmt.Errorf("dashscope: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, status, err := c.doJSONRequest(req)
	if err != nil {
		return domain.Completion{}, status, fmt.Errorf("dashscope: request failed: %w", err)
	}

	var payload completionResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.Completion{}, status, fmt.Errorf("dashscope: decode response: %w", decErr)
	}

	out := domain.Completion{RequestID: payload.RequestID}
	if payload.Output != nil {
		out.Text = payload.Output.Text
		out.SessionID = payload.Output.SessionID
	}
	return out, status, nil
}

func buildRequest(in domain.CompletionRequest) completionRequest {
	req := completionRequest{
		Input: completionInput{
			Prompt:    in.Prompt,
			SessionID: in.SessionID,
		},
	}
	switch in.Variant {
	case domain.VariantQuery:
		req.Debug = &struct{}{}
	default:
		req.Input.BizParams = json.RawMessage(`{}`)
	}
	return req
}

func (c *Client) doJSONRequest(req *http.Request) ([]byte, int, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, 0, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, res.StatusCode, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        c.url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, res.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	return buf, res.StatusCode, nil
}

// fetchAPIKeyFromParamStore accepts either a raw key or {"token":"..."}.
func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("dashscope: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("dashscope: key parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("dashscope: fetch key from paramstore: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("dashscope: unmarshal paramstore key value as JSON: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", errors.New("dashscope: API key is empty")
	}
	return raw, nil
}
