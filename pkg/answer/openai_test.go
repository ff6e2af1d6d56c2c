package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/videoqa/pkg/retry"
)

func chatServer(t *testing.T, failFirst int, reply string) (*httptest.Server, *atomic.Int32, *openai.ChatCompletionRequest) {
	t.Helper()
	var calls atomic.Int32
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if int(n) <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "  " + reply + "\n"},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &got
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv, calls, got := chatServer(t, 1, "The speaker explains gradients.")

	g, err := NewOpenAIGenerator(OpenAIConfig{
		APIKey:  "test",
		BaseURL: srv.URL + "/v1",
		Model:   "test-model",
		Retry:   retry.Policy{Attempts: 3, InitialDelay: time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}

	ans, err := g.Generate(context.Background(), "What about gradients?", "gradients point uphill")
	if err != nil {
		t.Fatal(err)
	}
	if ans != "The speaker explains gradients." {
		t.Errorf("unexpected answer %q", ans)
	}
	if calls.Load() != 2 {
		t.Errorf("expected a retry after the 503, got %d calls", calls.Load())
	}
	if got.Model != "test-model" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if !strings.Contains(got.Messages[0].Content, NotInContext) {
		t.Error("system prompt should carry the fallback sentence")
	}
	if !strings.Contains(got.Messages[1].Content, "gradients point uphill") {
		t.Error("user message should carry the context")
	}
}

func TestOpenAIGenerator_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIGenerator(OpenAIConfig{Model: "m"}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Q?", "C.")
	if !strings.HasPrefix(p, "Context:\nC.") || !strings.Contains(p, "Question:\nQ?") {
		t.Errorf("unexpected prompt %q", p)
	}
}
