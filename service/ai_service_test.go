package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAIService_Complete(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "你好！"}},
			},
		})
	}))
	defer srv.Close()

	svc := NewAIService(AIConfig{APIURL: srv.URL, APIKey: "test-key", Model: "deepseek-chat"})

	reply, err := svc.Complete(context.Background(), "你是助手", []ChatTurn{
		{Role: "user", Content: "在吗"},
		{Role: "assistant", Content: "在的"},
		{Role: "user", Content: "你好"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "你好！" {
		t.Fatalf("expected 你好！, got %q", reply)
	}

	// system 在最前，历史按序附加
	if len(gotReq.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "你是助手" {
		t.Fatalf("expected system prompt first, got %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[3].Role != "user" || gotReq.Messages[3].Content != "你好" {
		t.Fatalf("expected last user turn, got %+v", gotReq.Messages[3])
	}
	if gotReq.MaxTokens != aiMaxTokens {
		t.Fatalf("expected max_tokens %d, got %d", aiMaxTokens, gotReq.MaxTokens)
	}
}

func TestAIService_Complete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	svc := NewAIService(AIConfig{APIURL: srv.URL, APIKey: "test-key"})
	_, err := svc.Complete(context.Background(), "", []ChatTurn{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error for 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestAIService_Complete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	svc := NewAIService(AIConfig{APIURL: srv.URL, APIKey: "test-key"})
	if _, err := svc.Complete(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestAIService_Complete_MissingKey(t *testing.T) {
	svc := NewAIService(AIConfig{APIURL: "http://127.0.0.1:0", APIKey: ""})
	// 环境变量兜底也可能配了 key，此处直接覆盖
	svc.apiKey = ""
	if _, err := svc.Complete(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error when key missing")
	}
}
