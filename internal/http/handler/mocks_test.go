package handler_test

import (
	"context"

	"huijin-agent/internal/usecase"
)

type mockChatUseCase struct {
	chatFn func(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	calls  []usecase.ChatInput
}

func (m *mockChatUseCase) Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
	m.calls = append(m.calls, in)
	if m.chatFn != nil {
		return m.chatFn(ctx, in)
	}
	return usecase.ChatOutput{}, nil
}
