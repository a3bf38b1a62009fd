package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"huijin-agent/internal/domain"
	"huijin-agent/internal/logger"
)

const maxLoggedError = 512

type CompletionClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// ExchangeRecorder stores completed exchanges. A nil recorder disables recording.
type ExchangeRecorder interface {
	SaveExchange(ctx context.Context, sessionID, prompt, answer, requestID string) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatService struct {
	upstream CompletionClient
	recorder ExchangeRecorder
}

type ChatInput struct {
	Message   string
	SessionID string
	Variant   domain.Variant
}

type ChatOutput struct {
	Message   string
	SessionID string
}

type ChatOption func(*ChatService)

// WithRecorder enables exchange recording.
func WithRecorder(r ExchangeRecorder) ChatOption {
	return func(s *ChatService) {
		s.recorder = r
	}
}

func NewChatService(upstream CompletionClient, opts ...ChatOption) (*ChatService, error) {
	if upstream == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	s := &ChatService{upstream: upstream}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chat forwards one message to the upstream agent and normalizes the result.
// The returned error is always a *Error.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	log := slog.With("variant", in.Variant.String(), "has_session", sessionID != "")

	// Whitespace only decides emptiness; the prompt goes upstream as typed.
	if strings.TrimSpace(in.Message) == "" {
		log.WarnContext(ctx, "chat rejected: empty message")
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	completion, err := s.upstream.Complete(ctx, domain.CompletionRequest{
		Prompt:    in.Message,
		SessionID: sessionID,
		Variant:   in.Variant,
	})
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok {
			log.ErrorContext(ctx, "upstream returned error status", "status", status, "error", logger.Truncate(err.Error(), maxLoggedError))
			e := newError(ErrorUpstreamUnavailable, "upstream_status", err)
			e.Status = status
			return ChatOutput{}, e
		}
		log.ErrorContext(ctx, "upstream call failed", "error", err)
		return ChatOutput{}, newError(ErrorInternal, "upstream_call_error", err)
	}

	log = log.With("request_id", completion.RequestID)
	if completion.Text == "" {
		log.ErrorContext(ctx, "upstream response missing output text")
		return ChatOutput{}, newError(ErrorMalformedUpstream, "missing_output_text", nil)
	}

	out := ChatOutput{
		Message:   completion.Text,
		SessionID: completion.SessionID,
	}
	if out.SessionID == "" {
		out.SessionID = sessionID
	}

	s.record(ctx, log, out.SessionID, in.Message, out.Message, completion.RequestID)

	log.InfoContext(ctx, "chat completed", "answer_len", len(out.Message))
	return out, nil
}

func (s *ChatService) record(ctx context.Context, log *slog.Logger, sessionID, prompt, answer, requestID string) {
	if s.recorder == nil || sessionID == "" {
		return
	}
	if err := s.recorder.SaveExchange(ctx, sessionID, prompt, answer, requestID); err != nil {
		log.WarnContext(ctx, "failed to record exchange", "error", err)
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
