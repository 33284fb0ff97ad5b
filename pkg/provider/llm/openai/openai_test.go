package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/dictanote/pkg/provider/llm"
)

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	for _, role := range []string{"system", "user", "assistant"} {
		t.Run(role, func(t *testing.T) {
			t.Parallel()
			got, err := convertMessage(llm.Message{Role: role, Content: "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch role {
			case "system":
				if got.OfSystem == nil {
					t.Fatal("expected OfSystem to be set")
				}
			case "user":
				if got.OfUser == nil {
					t.Fatal("expected OfUser to be set")
				}
			case "assistant":
				if got.OfAssistant == nil {
					t.Fatal("expected OfAssistant to be set")
				}
			}
		})
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model   string
		context int
		vision  bool
	}{
		{"gpt-4.1-mini", 1_047_576, true},
		{"gpt-4o-mini", 128_000, true},
		{"o4-mini", 200_000, true},
		{"gpt-4-turbo", 128_000, true},
		{"gpt-4", 8_192, false},
		{"gpt-3.5-turbo", 16_385, false},
		{"o3-mini", 200_000, false},
		{"o1", 200_000, true},
		{"my-custom-model", 128_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.context {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.context)
			}
			if caps.SupportsVision != tt.vision {
				t.Errorf("SupportsVision = %v, want %v", caps.SupportsVision, tt.vision)
			}
			if caps.MaxOutputTokens <= 0 {
				t.Error("expected MaxOutputTokens > 0")
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Errorf("unexpected error with valid options: %v", err)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "- milk\n- bread"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Be brief.",
		Messages:     []llm.Message{llm.UserMessage("Summarize")},
		MaxTokens:    64,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "- milk\n- bread" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 17 || resp.Usage.PromptTokens != 12 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if gotBody["model"] != "gpt-4o" {
		t.Errorf("model = %v", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages sent, got %d", len(msgs))
	}
}

func TestComplete_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	p, err := New("sk-bad", "gpt-4o", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("x")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "openai: chat completion") {
		t.Errorf("error = %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "created": 1, "model": "gpt-4o", "choices": []}`)
	}))
	defer srv.Close()

	p, _ := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("x")}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestComplete_TruncatedReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "length",
				"message": {"role": "assistant", "content": "# Groceries\n- mi"}}]
		}`)
	}))
	defer srv.Close()

	p, _ := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("Beautify")}})
	if !errors.Is(err, llm.ErrTruncated) {
		t.Fatalf("Complete() error = %v, want ErrTruncated", err)
	}
	if resp != nil {
		t.Errorf("Complete() returned partial reply %+v", resp)
	}
}
