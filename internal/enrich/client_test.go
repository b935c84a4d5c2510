package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeModelAPI scripts chat and embedding responses for tests.
type fakeModelAPI struct {
	chatResponses []string
	chatErrs      []error
	chatCalls     int

	embedFn    func(texts []string) (openai.EmbeddingResponse, error)
	embedCalls int
}

func (f *fakeModelAPI) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := f.chatCalls
	f.chatCalls++
	if i < len(f.chatErrs) && f.chatErrs[i] != nil {
		return openai.ChatCompletionResponse{}, f.chatErrs[i]
	}
	content := ""
	if i < len(f.chatResponses) {
		content = f.chatResponses[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func (f *fakeModelAPI) CreateEmbeddings(_ context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.embedCalls++
	texts := req.Convert().Input.([]string)
	if f.embedFn != nil {
		return f.embedFn(texts)
	}
	data := make([]openai.Embedding, len(texts))
	for i := range texts {
		data[i] = openai.Embedding{Index: i, Embedding: []float32{float32(i)}}
	}
	return openai.EmbeddingResponse{Data: data}, nil
}

func testClient(api ModelAPI) *Client {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	return NewClientWithAPI(api, cfg, testLogger())
}

func TestClientAvailability(t *testing.T) {
	if testClient(&fakeModelAPI{}).Available() != true {
		t.Error("client with an API must be available")
	}
	if NewClientWithAPI(nil, DefaultConfig(), testLogger()).Available() {
		t.Error("client without an API must be unavailable")
	}
}

func TestClientChatJSONReturnsContent(t *testing.T) {
	api := &fakeModelAPI{chatResponses: []string{`{"ok": true}`}}
	content, err := testClient(api).ChatJSON(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if content != `{"ok": true}` {
		t.Errorf("content = %q", content)
	}
}

func TestClientChatWithoutAPIFails(t *testing.T) {
	client := NewClientWithAPI(nil, DefaultConfig(), testLogger())
	if _, err := client.ChatJSON(context.Background(), "prompt"); err == nil {
		t.Error("expected error without a configured API")
	}
}

func TestClientEmbedReordersByIndex(t *testing.T) {
	api := &fakeModelAPI{
		embedFn: func(texts []string) (openai.EmbeddingResponse, error) {
			// Deliver items in reverse of submission order.
			data := make([]openai.Embedding, 0, len(texts))
			for i := len(texts) - 1; i >= 0; i-- {
				data = append(data, openai.Embedding{Index: i, Embedding: []float32{float32(i) + 0.5}})
			}
			return openai.EmbeddingResponse{Data: data}, nil
		},
	}

	vectors, err := testClient(api).Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 1 || v[0] != float32(i)+0.5 {
			t.Errorf("vector %d = %v, not realigned by index", i, v)
		}
	}
}

func TestClientEmbedIgnoresOutOfRangeIndex(t *testing.T) {
	api := &fakeModelAPI{
		embedFn: func(texts []string) (openai.EmbeddingResponse, error) {
			return openai.EmbeddingResponse{Data: []openai.Embedding{
				{Index: 0, Embedding: []float32{1}},
				{Index: 7, Embedding: []float32{2}},
			}}, nil
		},
	}

	vectors, err := testClient(api).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors[0] == nil || vectors[1] != nil {
		t.Errorf("vectors = %v, want only index 0 filled", vectors)
	}
}

func TestClientEmbedEmptyInput(t *testing.T) {
	api := &fakeModelAPI{}
	vectors, err := testClient(api).Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Errorf("empty input: vectors=%v err=%v", vectors, err)
	}
	if api.embedCalls != 0 {
		t.Error("empty input must not hit the API")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"connection failure", &openai.RequestError{HTTPStatusCode: 0, Err: errors.New("dial tcp")}, true},
		{"plain error", fmt.Errorf("schema violation"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{}.normalized()
	if cfg.ChatConcurrency != 1 || cfg.EmbeddingConcurrency != 1 {
		t.Errorf("zero concurrency must normalize to 1, got %+v", cfg)
	}
	if cfg.ChatRetries != 1 || cfg.EmbeddingBatchSize != 1 {
		t.Errorf("zero retries/batch must normalize to 1, got %+v", cfg)
	}
}
