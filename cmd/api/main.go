// Package main implements the LLMovies API server.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/llmovies/llmovies/engine/domain"
	"github.com/llmovies/llmovies/engine/graph"
	"github.com/llmovies/llmovies/engine/recommend"
	"github.com/llmovies/llmovies/engine/semantic"
	met "github.com/llmovies/llmovies/pkg/metrics"
	"github.com/llmovies/llmovies/pkg/mid"
	"github.com/llmovies/llmovies/pkg/openai"
)

//go:embed web
var webFS embed.FS

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	OpenAIKey    string
	EmbedModel   string
	ChatModel    string
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	QdrantURL    string
	Collection   string
	CORSOrigin   string
	TopK         int
	MinVoteCount int
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		EmbedModel:   envOr("OPENAI_EMBED_MODEL", openai.DefaultEmbedModel),
		ChatModel:    os.Getenv("OPENAI_CHAT_MODEL"),
		Neo4jURL:     envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "titles"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		TopK:         envOrInt("RECOMMEND_TOP_K", 10),
		MinVoteCount: envOrInt("RECOMMEND_MIN_VOTES", 500),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var (
	registry         = met.New()
	recommendTotal   = registry.Counter("llmovies_recommend_total", "Recommendation requests")
	recommendEmpty   = registry.Counter("llmovies_recommend_empty_total", "Requests with no matching titles")
	recommendErrors  = registry.Counter("llmovies_recommend_errors_total", "Failed recommendation requests")
	recommendSeconds = registry.Histogram("llmovies_recommend_duration_seconds",
		"Recommendation latency", []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10})
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	// --- OpenAI client ---
	client := openai.NewClient(openai.Config{
		APIKey:            cfg.OpenAIKey,
		EmbedModel:        cfg.EmbedModel,
		ChatModel:         cfg.ChatModel,
		RequestsPerSecond: 5,
		Burst:             10,
	})

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	graphStore := graph.New(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Build recommendation service ---
	opts := recommend.DefaultOptions()
	opts.TopK = cfg.TopK
	opts.MinVoteCount = cfg.MinVoteCount
	svc := recommend.New(client, vectorStore, graphStore, opts, logger)

	registry.CollectRuntime("llmovies", 15*time.Second)

	// --- Build HTTP server ---
	web, err := fs.Sub(webFS, "web")
	if err != nil {
		return fmt.Errorf("embedded web assets: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(web))
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("POST /api/recommend", handleRecommend(svc, logger))
	mux.Handle("GET /api/titles/{id}", handleTitle(graphStore))
	mux.Handle("GET /metrics", registry.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("llmovies-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Recommender is the service surface the handler needs.
type Recommender interface {
	Recommend(ctx context.Context, q domain.Query) (*recommend.Answer, error)
}

// RecommendRequest is the JSON body for POST /api/recommend.
type RecommendRequest struct {
	Text      string   `json:"text"`
	Providers []string `json:"providers,omitempty"`
}

// RecommendResponse is the JSON response for POST /api/recommend.
type RecommendResponse struct {
	Recommendations []semantic.SearchResult `json:"recommendations"`
	Message         string                  `json:"message,omitempty"`
	Model           string                  `json:"model,omitempty"`
	Tokens          int                     `json:"tokens_used,omitempty"`
}

const noMatchMessage = "I couldn't find anything matching that in the catalog. Try rephrasing or loosening the filters!"

func handleRecommend(svc Recommender, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recommendTotal.Inc()
		start := time.Now()
		defer recommendSeconds.Since(start)

		var req RecommendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		answer, err := svc.Recommend(r.Context(), domain.Query{
			Text:      req.Text,
			Providers: req.Providers,
		})
		if err != nil {
			writeRecommendError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RecommendResponse{
			Recommendations: answer.Recommendations,
			Model:           answer.Model,
			Tokens:          answer.TokensUsed,
		})
	}
}

// writeRecommendError maps pipeline errors onto HTTP statuses. An empty
// result is a normal outcome, not an error.
func writeRecommendError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, recommend.ErrNoRecommendations):
		recommendEmpty.Inc()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RecommendResponse{Message: noMatchMessage})
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, openai.ErrUnauthorized):
		recommendErrors.Inc()
		logger.Error("recommend failed", "err", err)
		writeError(w, http.StatusUnauthorized, "upstream API key rejected")
	case errors.Is(err, openai.ErrRateLimited):
		recommendErrors.Inc()
		logger.Warn("recommend rate limited", "err", err)
		writeError(w, http.StatusTooManyRequests, "upstream rate limit, try again shortly")
	default:
		recommendErrors.Inc()
		logger.Error("recommend failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// TitleGetter is the graph surface the title handler needs.
type TitleGetter interface {
	GetTitle(ctx context.Context, showID string) (domain.Title, error)
}

func handleTitle(store TitleGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title, err := store.GetTitle(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "title not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(title)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
