package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"huijin-agent/internal/http/handler"
	"huijin-agent/internal/http/middleware"
	"huijin-agent/internal/http/router"
	"huijin-agent/internal/integrations/dashscope"
	"huijin-agent/internal/usecase"
)

var _ = Describe("Gateway routes", func() {
	var (
		engine   *gin.Engine
		upstream *httptest.Server
		calls    atomic.Int32
		lastBody map[string]any
		reply    func(w http.ResponseWriter)
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		calls.Store(0)
		lastBody = nil
		reply = func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"output":{"text":"hi","session_id":"S1"},"request_id":"req-1"}`))
		}

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &lastBody)
			reply(w)
		}))

		client, err := dashscope.NewClient(upstream.URL+"/apps/app-1/completion", dashscope.WithAPIKey("sk-test"))
		Expect(err).NotTo(HaveOccurred())
		svc, err := usecase.NewChatService(client)
		Expect(err).NotTo(HaveOccurred())

		engine = gin.New()
		engine.Use(middleware.Recovery(), middleware.Correlation(), middleware.Logger())
		router.SetupRoutes(engine, router.Handlers{
			Chat:  handler.NewChatHandler(svc),
			Voice: handler.NewVoiceHandler("https://video.example/aicall"),
		})
	})

	AfterEach(func() {
		upstream.Close()
	})

	do := func(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return w, body
	}

	postChat := func(payload string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	It("serves health", func() {
		w, body := do(httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("status", "ok"))
	})

	It("relays a first message and returns the new session", func() {
		w, body := do(postChat(`{"message":"hello"}`))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body).To(Equal(map[string]any{"message": "hi", "sessionId": "S1", "success": true}))
		Expect(w.Header().Get(middleware.CorrelationHeader)).NotTo(BeEmpty())
		Expect(lastBody["input"]).To(HaveKeyWithValue("prompt", "hello"))
		Expect(lastBody["input"]).NotTo(HaveKey("session_id"))
	})

	It("forwards the session id on follow-up messages", func() {
		do(postChat(`{"message":"more","sessionId":"S1"}`))
		Expect(lastBody["input"]).To(HaveKeyWithValue("session_id", "S1"))
	})

	It("rejects blank messages without calling upstream", func() {
		w, body := do(postChat(`{"message":"   "}`))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(body).To(Equal(map[string]any{"error": "消息不能为空"}))
		Expect(calls.Load()).To(BeZero())
	})

	It("passes the upstream status through", func() {
		reply = func(w http.ResponseWriter) { w.WriteHeader(http.StatusServiceUnavailable) }

		w, body := do(postChat(`{"message":"hello"}`))

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(body).To(Equal(map[string]any{"error": "智能体服务暂时不可用，请稍后重试"}))
		Expect(calls.Load()).To(BeEquivalentTo(1))
	})

	It("reports a reply without output text as malformed", func() {
		reply = func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{"request_id":"req-2"}`)) }

		w, body := do(postChat(`{"message":"hello"}`))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(body).To(Equal(map[string]any{"error": "响应格式异常"}))
	})

	It("relays the query variant with a debug object", func() {
		w, _ := do(httptest.NewRequest(http.MethodGet, "/api/chat?message=hello&sessionId=S1", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(lastBody).To(HaveKey("debug"))
		Expect(lastBody["input"]).To(HaveKeyWithValue("session_id", "S1"))
	})

	It("echoes a caller supplied correlation id", func() {
		req := postChat(`{"message":"hello"}`)
		req.Header.Set(middleware.CorrelationHeader, "corr-1")

		w, _ := do(req)
		Expect(w.Header().Get(middleware.CorrelationHeader)).To(Equal("corr-1"))
	})

	It("serves the voice link", func() {
		w, body := do(httptest.NewRequest(http.MethodGet, "/api/voice-link", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("url", "https://video.example/aicall"))
	})
})
