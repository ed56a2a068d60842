package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if r.URL.Path != "/api/chat" || req.Stream || req.Model != "qwen3:8b" || len(req.Messages) != 2 {
			t.Errorf("request=%s %+v", r.URL.Path, req)
		}
		json.NewEncoder(w).Encode(chatResponse{Message: Message{
			Role:    "assistant",
			Content: "<think>도급 관계를 먼저 본다</think>\n\n원청은 책임을 진다.",
		}})
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL, "qwen3:8b")
	got, err := c.Generate(context.Background(), []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "q"}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "원청은 책임을 진다." {
		t.Fatalf("reply=%q", got)
	}
}

func TestGenerate_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewOllamaChat(srv.URL, "m").Generate(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err=%v", err)
	}
}

func TestStripThinking(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"answer":                       "answer",
		"<think>x</think> answer":      "answer",
		"<think>unterminated":          "<think>unterminated",
		"before <think>x</think> tail": "before <think>x</think> tail",
	}
	for in, want := range cases {
		if got := StripThinking(in); got != want {
			t.Errorf("StripThinking(%q)=%q, want %q", in, got, want)
		}
	}
}
