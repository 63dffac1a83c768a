// Package openai wraps the OpenAI API client used for embeddings, chat
// completions, and function calling. Outbound calls go through a client-side
// rate limiter and a circuit breaker, and upstream auth/rate-limit failures
// are mapped to sentinel errors the API layer can surface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/llmovies/llmovies/pkg/resilience"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Sentinel errors for upstream failures the caller must distinguish.
var (
	ErrUnauthorized = errors.New("openai: invalid API key")
	ErrRateLimited  = errors.New("openai: rate limited")
)

// DefaultEmbedModel is the embedding model used unless configured otherwise.
const DefaultEmbedModel = string(openai.SmallEmbedding3)

// DefaultEmbedDims is the dimensionality of DefaultEmbedModel vectors.
const DefaultEmbedDims = 1536

// api is the subset of the OpenAI client this package uses.
type api interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures the client.
type Config struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	// RequestsPerSecond limits outbound calls; 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Client is the OpenAI-backed model client.
type Client struct {
	api        api
	embedModel openai.EmbeddingModel
	chatModel  string
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
}

// NewClient creates a Client from config.
func NewClient(cfg Config) *Client {
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		api:        openai.NewClient(cfg.APIKey),
		embedModel: openai.EmbeddingModel(cfg.EmbedModel),
		chatModel:  cfg.ChatModel,
		limiter:    limiter,
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

// EmbedModel returns the configured embedding model name.
func (c *Client) EmbedModel() string { return string(c.embedModel) }

// ChatModel returns the configured chat model name.
func (c *Client) ChatModel() string { return c.chatModel }

// call runs f through the limiter and breaker and maps upstream errors.
func (c *Client) call(ctx context.Context, f func(context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := c.breaker.Call(ctx, f); err != nil {
		return mapErr(err)
	}
	return nil
}

// mapErr converts OpenAI API errors to sentinel errors where relevant.
func mapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
	}
	return err
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one embedding vector per input text, in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: c.embedModel,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed batch: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// ChatReply is the result of a chat completion.
type ChatReply struct {
	Content    string
	Model      string
	TokensUsed int
}

// Chat runs a chat completion with a system prompt and user message.
func (c *Client) Chat(ctx context.Context, system, user string, temperature float32, maxTokens int) (ChatReply, error) {
	var resp openai.ChatCompletionResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.chatModel,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		return err
	})
	if err != nil {
		return ChatReply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatReply{}, errors.New("chat completion: no choices returned")
	}
	return ChatReply{
		Content:    resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// CallFunction forces a single tool call and returns its raw JSON arguments.
// The caller owns the schema and the parsing of the arguments.
func (c *Client) CallFunction(ctx context.Context, system, user string, fn openai.FunctionDefinition) (string, error) {
	var resp openai.ChatCompletionResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Tools: []openai.Tool{
				{Type: openai.ToolTypeFunction, Function: &fn},
			},
			ToolChoice: openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: fn.Name},
			},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("function call %s: %w", fn.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("function call %s: no choices returned", fn.Name)
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return "", fmt.Errorf("function call %s: model did not call the function", fn.Name)
	}
	return calls[0].Function.Arguments, nil
}
