package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// --- mocks ---

type mockAPI struct {
	embedResp openai.EmbeddingResponse
	embedErr  error
	chatResp  openai.ChatCompletionResponse
	chatErr   error
	lastChat  openai.ChatCompletionRequest
}

func (m *mockAPI) CreateEmbeddings(_ context.Context, _ openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return m.embedResp, m.embedErr
}

func (m *mockAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.lastChat = req
	return m.chatResp, m.chatErr
}

func newTestClient(m *mockAPI) *Client {
	c := NewClient(Config{APIKey: "test-key"})
	c.api = m
	return c
}

// --- tests ---

func TestEmbedBatch(t *testing.T) {
	m := &mockAPI{
		embedResp: openai.EmbeddingResponse{
			Data: []openai.Embedding{
				{Embedding: []float32{0.1, 0.2}},
				{Embedding: []float32{0.3, 0.4}},
			},
		},
	}
	c := newTestClient(m)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 || vecs[1][0] != 0.3 {
		t.Fatalf("vecs = %v", vecs)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	m := &mockAPI{
		embedResp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{0.1}}},
		},
	}
	c := newTestClient(m)

	if _, err := c.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestEmbed_MapsAuthError(t *testing.T) {
	m := &mockAPI{
		embedErr: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"},
	}
	c := newTestClient(m)

	_, err := c.Embed(context.Background(), "hi")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEmbed_MapsRateLimit(t *testing.T) {
	m := &mockAPI{
		embedErr: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"},
	}
	c := newTestClient(m)

	_, err := c.Embed(context.Background(), "hi")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestChat(t *testing.T) {
	m := &mockAPI{
		chatResp: openai.ChatCompletionResponse{
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "Try Heat (1995)."}},
			},
			Usage: openai.Usage{TotalTokens: 42},
		},
	}
	c := newTestClient(m)

	reply, err := c.Chat(context.Background(), "system", "recommend a heist movie", 0.3, 256)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Content != "Try Heat (1995)." || reply.TokensUsed != 42 {
		t.Fatalf("reply = %+v", reply)
	}
	if m.lastChat.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("first message role = %s", m.lastChat.Messages[0].Role)
	}
}

func TestChat_NoChoices(t *testing.T) {
	c := newTestClient(&mockAPI{})
	if _, err := c.Chat(context.Background(), "s", "u", 0, 0); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestCallFunction(t *testing.T) {
	m := &mockAPI{
		chatResp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{
					ToolCalls: []openai.ToolCall{
						{Function: openai.FunctionCall{Name: "search_params", Arguments: `{"topic":"heists"}`}},
					},
				}},
			},
		},
	}
	c := newTestClient(m)

	args, err := c.CallFunction(context.Background(), "sys", "user", openai.FunctionDefinition{Name: "search_params"})
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if args != `{"topic":"heists"}` {
		t.Fatalf("args = %s", args)
	}
	if len(m.lastChat.Tools) != 1 {
		t.Fatalf("tools = %v", m.lastChat.Tools)
	}
}

func TestCallFunction_NoToolCall(t *testing.T) {
	m := &mockAPI{
		chatResp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "I refuse"}},
			},
		},
	}
	c := newTestClient(m)

	if _, err := c.CallFunction(context.Background(), "sys", "user", openai.FunctionDefinition{Name: "f"}); err == nil {
		t.Fatal("expected error when model skips the tool call")
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	m := &mockAPI{embedErr: errors.New("upstream down")}
	c := newTestClient(m)

	for i := 0; i < 5; i++ {
		_, _ = c.Embed(context.Background(), "x")
	}
	_, err := c.Embed(context.Background(), "x")
	if err == nil {
		t.Fatal("expected breaker to reject")
	}
}
