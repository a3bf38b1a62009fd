package gatewayclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"huijin-agent/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c, srv
}

func TestNew_EmptyURL(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}

func TestSend_Success(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Correlation-Id"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, map[string]any{"message": "hello"}, body)

		_, _ = w.Write([]byte(`{"message":"hi","sessionId":"S1","success":true}`))
	})

	reply, err := c.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Equal(t, domain.ChatReply{Message: "hi", SessionID: "S1", Success: true}, reply)
}

func TestSend_ForwardsSessionID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req domain.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "S1", req.SessionID)
		_, _ = w.Write([]byte(`{"message":"again","sessionId":"S1","success":true}`))
	})

	_, err := c.Send(context.Background(), "more", "S1")
	require.NoError(t, err)
}

func TestSend_Rejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"智能体服务暂时不可用，请稍后重试"}`))
	})

	_, err := c.Send(context.Background(), "hello", "")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusServiceUnavailable, rejected.StatusCode)
	require.Equal(t, "智能体服务暂时不可用，请稍后重试", rejected.UserMessage())
}

func TestSend_RejectedWithoutMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})

	_, err := c.Send(context.Background(), "hello", "")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, "发送失败，请重试", rejected.UserMessage())
}

func TestSend_UndecodableReply(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := c.Send(context.Background(), "hello", "")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, "网络错误，请检查连接", netErr.UserMessage())
}

func TestSend_Unreachable(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.Send(context.Background(), "hello", "")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestSend_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, "hello", "")
	require.True(t, errors.Is(err, context.Canceled))
}

func TestVoiceLink(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/voice-link", r.URL.Path)
		_, _ = w.Write([]byte(`{"url":"https://video.example/aicall"}`))
	})

	link, err := c.VoiceLink(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://video.example/aicall", link)
}

func TestVoiceLink_NotConfigured(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	link, err := c.VoiceLink(context.Background())
	require.NoError(t, err)
	require.Empty(t, link)
}
