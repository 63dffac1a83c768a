// Package recommend orchestrates the recommendation flow. It accepts a user
// request, extracts search parameters via function calling, embeds the topic,
// runs a filtered vector search, optionally enriches candidates with graph
// context, and asks the chat model to pick the final titles.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/llmovies/llmovies/engine/domain"
	"github.com/llmovies/llmovies/engine/graph"
	"github.com/llmovies/llmovies/engine/semantic"
	"github.com/llmovies/llmovies/pkg/openai"
)

// ErrNoRecommendations means the pipeline completed but nothing in the
// catalog matched the request.
var ErrNoRecommendations = errors.New("recommend: no matching titles")

// Embedder turns the extracted topic into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chatter runs the final recommendation completion.
type Chatter interface {
	Chat(ctx context.Context, system, user string, temperature float32, maxTokens int) (openai.ChatReply, error)
}

// SemanticSearcher abstracts Qdrant vector search.
type SemanticSearcher interface {
	SearchFiltered(ctx context.Context, embedding []float32, topK int, f semantic.Filter) ([]semantic.SearchResult, error)
}

// GraphEnricher optionally attaches related titles to candidates.
type GraphEnricher interface {
	Neighborhoods(ctx context.Context, showIDs []string, perTitle int) []graph.Neighborhood
}

// Options configures the recommendation pipeline behaviour.
type Options struct {
	TopK            int
	MinVoteCount    int
	MaxPicks        int
	Temperature     float32
	MaxTokens       int
	UseGraph        bool
	RelatedPerTitle int
	SearchTimeout   time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            10,
		MinVoteCount:    500,
		MaxPicks:        3,
		Temperature:     0.3,
		MaxTokens:       256,
		UseGraph:        true,
		RelatedPerTitle: 3,
		SearchTimeout:   5 * time.Second,
	}
}

const pickerSystemPrompt = `You are an expert movie recommender system. ` +
	`Your task is to return at most 3 titles from the list of passed titles. ` +
	`Return only the most affine to the user's prompt. ` +
	`You will only respond with a list of the sorted ids separated by commas, and nothing else. ` +
	`You must not add anything else to your answer.`

// Service is the recommendation orchestration service.
type Service struct {
	embed    Embedder
	chat     Chatter
	caller   FunctionCaller
	search   SemanticSearcher
	enricher GraphEnricher
	opts     Options
	logger   *slog.Logger
}

// New creates a recommendation Service.
func New(client *openai.Client, search SemanticSearcher, enricher GraphEnricher, opts Options, logger *slog.Logger) *Service {
	return NewWithClients(client, client, client, search, enricher, opts, logger)
}

// NewWithClients wires the service from individual interfaces. Used in tests.
func NewWithClients(embed Embedder, chat Chatter, caller FunctionCaller, search SemanticSearcher, enricher GraphEnricher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embed:    embed,
		chat:     chat,
		caller:   caller,
		search:   search,
		enricher: enricher,
		opts:     opts,
		logger:   logger,
	}
}

// Answer is the structured response of the recommendation pipeline.
type Answer struct {
	Recommendations []semantic.SearchResult `json:"recommendations"`
	Params          Params                  `json:"params"`
	TokensUsed      int                     `json:"tokens_used"`
	Model           string                  `json:"model"`
}

// candidate is one entry of the JSON list handed to the picker model.
type candidate struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Media       string   `json:"media"`
	Genres      []string `json:"genres"`
	ReleaseYear int      `json:"release_year,omitempty"`
	VoteAverage float64  `json:"vote_average,omitempty"`
	Related     []string `json:"related,omitempty"`
}

type pickerInput struct {
	List       []candidate `json:"list"`
	UserPrompt string      `json:"user_prompt"`
}

// Recommend runs the full pipeline for a user query.
func (s *Service) Recommend(ctx context.Context, q domain.Query) (*Answer, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}
	s.logger.Info("recommend start", "text_len", len(q.Text), "providers", q.Providers)

	// 1. Extract search parameters. A failed extraction degrades to a plain
	// semantic search over the raw text.
	params, err := ExtractParams(ctx, s.caller, q.Text)
	if err != nil {
		s.logger.Warn("recommend: param extraction failed, using raw text", "error", err)
		params = Params{Topic: q.Text, Media: domain.MediaAll}
	}

	// 2. Embed the topic.
	embedding, err := s.embed.Embed(ctx, params.Topic)
	if err != nil {
		return nil, fmt.Errorf("recommend: embed topic: %w", err)
	}

	// 3. Filtered vector search.
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	filter := semantic.Filter{
		Providers:    q.Providers,
		Genres:       params.Genres,
		Media:        string(params.Media),
		MinVoteCount: s.opts.MinVoteCount,
	}
	pool, err := s.search.SearchFiltered(searchCtx, embedding, s.opts.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("recommend: semantic search: %w", err)
	}
	s.logger.Info("recommend search done", "candidates", len(pool))
	if len(pool) == 0 {
		return nil, ErrNoRecommendations
	}

	// 4. Graph enrichment; failures degrade to unenriched candidates.
	related := s.relatedTitles(ctx, pool)

	// 5. Ask the model to pick.
	input := pickerInput{UserPrompt: q.Text}
	for _, r := range pool {
		input.List = append(input.List, candidate{
			ID:          r.ShowID,
			Title:       r.Title,
			Description: r.Description,
			Media:       r.Media,
			Genres:      r.Genres,
			ReleaseYear: r.ReleaseYear,
			VoteAverage: r.VoteAverage,
			Related:     related[r.ShowID],
		})
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("recommend: marshal candidates: %w", err)
	}

	reply, err := s.chat.Chat(ctx, pickerSystemPrompt, string(payload), s.opts.Temperature, s.opts.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("recommend: chat: %w", err)
	}

	// 6. Parse and validate the picked IDs against the pool.
	picks := parsePicks(reply.Content, pool, s.opts.MaxPicks)
	if len(picks) == 0 {
		s.logger.Info("recommend: model picked nothing", "reply", reply.Content)
		return nil, ErrNoRecommendations
	}

	return &Answer{
		Recommendations: picks,
		Params:          params,
		TokensUsed:      reply.TokensUsed,
		Model:           reply.Model,
	}, nil
}

// relatedTitles resolves graph neighbours per candidate. Errors inside the
// enricher are swallowed so the graph being down never fails a request.
func (s *Service) relatedTitles(ctx context.Context, pool []semantic.SearchResult) map[string][]string {
	related := make(map[string][]string)
	if !s.opts.UseGraph || s.enricher == nil {
		return related
	}

	ids := make([]string, len(pool))
	for i, r := range pool {
		ids[i] = r.ShowID
	}
	for _, n := range s.enricher.Neighborhoods(ctx, ids, s.opts.RelatedPerTitle) {
		names := make([]string, 0, len(n.Related))
		for _, t := range n.Related {
			names = append(names, t.Name)
		}
		if len(names) > 0 {
			related[n.ShowID] = names
		}
	}
	return related
}

// parsePicks parses the comma-separated ID reply, keeping only IDs present
// in the candidate pool and preserving the model's ordering.
func parsePicks(reply string, pool []semantic.SearchResult, maxPicks int) []semantic.SearchResult {
	byID := make(map[string]semantic.SearchResult, len(pool))
	for _, r := range pool {
		byID[r.ShowID] = r
	}

	var picks []semantic.SearchResult
	seen := make(map[string]bool)
	for _, part := range strings.Split(reply, ",") {
		id := strings.TrimSpace(part)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if r, ok := byID[id]; ok {
			picks = append(picks, r)
			if maxPicks > 0 && len(picks) == maxPicks {
				break
			}
		}
	}
	return picks
}
