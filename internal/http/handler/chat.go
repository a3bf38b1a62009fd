package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"huijin-agent/internal/domain"
	"huijin-agent/internal/usecase"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type ChatHandler struct {
	chat ChatUseCase
}

func NewChatHandler(chat ChatUseCase) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Post handles POST /api/chat with a JSON body.
func (h *ChatHandler) Post(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to decode chat request", "error", err)
		h.fail(c, usecase.Classify(err))
		return
	}
	h.handle(c, usecase.ChatInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		Variant:   domain.VariantInteractive,
	})
}

// Get handles GET /api/chat?message=...&sessionId=...
func (h *ChatHandler) Get(c *gin.Context) {
	h.handle(c, usecase.ChatInput{
		Message:   c.Query("message"),
		SessionID: c.Query("sessionId"),
		Variant:   domain.VariantQuery,
	})
}

func (h *ChatHandler) handle(c *gin.Context, in usecase.ChatInput) {
	out, err := h.chat.Chat(c.Request.Context(), in)
	if err != nil {
		h.fail(c, usecase.Classify(err))
		return
	}
	c.JSON(http.StatusOK, domain.ChatReply{
		Message:   out.Message,
		SessionID: out.SessionID,
		Success:   true,
	})
}

func (h *ChatHandler) fail(c *gin.Context, err *usecase.Error) {
	_ = c.Error(err)
	c.JSON(err.HTTPStatus(), domain.ErrorReply{Error: err.UserMessage()})
}
