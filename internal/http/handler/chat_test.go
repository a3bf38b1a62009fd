package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"huijin-agent/internal/domain"
	"huijin-agent/internal/http/handler"
	"huijin-agent/internal/usecase"
)

var _ = Describe("ChatHandler", func() {
	var (
		router *gin.Engine
		svc    *mockChatUseCase
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockChatUseCase{}
		h := handler.NewChatHandler(svc)
		router.POST("/api/chat", h.Post)
		router.GET("/api/chat", h.Get)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("POST", func() {
		It("returns the normalized reply on success", func() {
			svc.chatFn = func(_ context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
				return usecase.ChatOutput{Message: "hi", SessionID: "S1"}, nil
			}

			w := post(`{"message":"hello"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)).To(Equal(map[string]any{"message": "hi", "sessionId": "S1", "success": true}))
			Expect(svc.calls).To(ConsistOf(usecase.ChatInput{Message: "hello", Variant: domain.VariantInteractive}))
		})

		It("forwards the caller session id and accepts a null one", func() {
			post(`{"message":"hello","sessionId":"S0"}`)
			post(`{"message":"hello","sessionId":null}`)

			Expect(svc.calls).To(HaveLen(2))
			Expect(svc.calls[0].SessionID).To(Equal("S0"))
			Expect(svc.calls[1].SessionID).To(BeEmpty())
		})

		It("maps invalid input to 400", func() {
			svc.chatFn = func(_ context.Context, _ usecase.ChatInput) (usecase.ChatOutput, error) {
				return usecase.ChatOutput{}, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}
			}

			w := post(`{"message":"  "}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)).To(Equal(map[string]any{"error": "消息不能为空"}))
		})

		It("propagates the upstream status", func() {
			svc.chatFn = func(_ context.Context, _ usecase.ChatInput) (usecase.ChatOutput, error) {
				return usecase.ChatOutput{}, &usecase.Error{Code: usecase.ErrorUpstreamUnavailable, Reason: "upstream_status", Status: http.StatusServiceUnavailable}
			}

			w := post(`{"message":"hello"}`)

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(decode(w)["error"]).To(Equal("智能体服务暂时不可用，请稍后重试"))
		})

		It("maps malformed upstream replies to 500", func() {
			svc.chatFn = func(_ context.Context, _ usecase.ChatInput) (usecase.ChatOutput, error) {
				return usecase.ChatOutput{}, &usecase.Error{Code: usecase.ErrorMalformedUpstream, Reason: "missing_output_text"}
			}

			w := post(`{"message":"hello"}`)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(w)["error"]).To(Equal("响应格式异常"))
		})

		It("treats unexpected errors as internal", func() {
			svc.chatFn = func(_ context.Context, _ usecase.ChatInput) (usecase.ChatOutput, error) {
				return usecase.ChatOutput{}, errors.New("boom")
			}

			w := post(`{"message":"hello"}`)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(w)["error"]).To(Equal("服务器内部错误"))
		})

		It("returns 500 without calling the service when the body cannot be parsed", func() {
			w := post(`{`)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(w)["error"]).To(Equal("服务器内部错误"))
			Expect(svc.calls).To(BeEmpty())
		})
	})

	Describe("GET", func() {
		It("reads message and session id from the query", func() {
			svc.chatFn = func(_ context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
				return usecase.ChatOutput{Message: "ok", SessionID: in.SessionID}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/chat?message=%E4%BD%A0%E5%A5%BD&sessionId=S9", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)).To(Equal(map[string]any{"message": "ok", "sessionId": "S9", "success": true}))
			Expect(svc.calls).To(ConsistOf(usecase.ChatInput{Message: "你好", SessionID: "S9", Variant: domain.VariantQuery}))
		})
	})
})

var _ = Describe("VoiceHandler", func() {
	serve := func(url string) *httptest.ResponseRecorder {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.GET("/api/voice-link", handler.NewVoiceHandler(url).Link)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/voice-link", nil))
		return w
	}

	It("returns the configured link", func() {
		w := serve("https://video.example/aicall?token=abc")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"url":"https://video.example/aicall?token=abc"`))
	})

	It("returns 404 when no link is configured", func() {
		Expect(serve(" ").Code).To(Equal(http.StatusNotFound))
	})
})
