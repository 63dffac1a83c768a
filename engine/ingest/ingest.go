// Package ingest provides the catalog ingestion pipeline that processes
// titles through validation, text composition, embedding, and storage.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/llmovies/llmovies/engine/domain"
	"github.com/llmovies/llmovies/engine/semantic"
	"github.com/llmovies/llmovies/pkg/fn"
)

const (
	// IngestSubject is the NATS subject for incremental title updates.
	IngestSubject = "catalog.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "catalog.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// EmbedBatchSize is the max texts per embedding request.
	EmbedBatchSize = 100
)

// Embedder turns text into vectors. Satisfied by pkg/openai.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedModel() string
}

// VectorWriter stores title vectors. Satisfied by semantic.VectorStore.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// GraphWriter stores title nodes. Satisfied by graph.GraphStore.
type GraphWriter interface {
	SaveBatch(ctx context.Context, titles []domain.Title) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder Embedder
	Vectors  VectorWriter
	Graph    GraphWriter
	Cache    *Cache // optional
	Logger   *slog.Logger
}

// --- Pipeline stages ---

// Validate rejects titles that fail domain validation.
var Validate fn.Stage[domain.Title, domain.Title] = func(_ context.Context, t domain.Title) fn.Result[domain.Title] {
	if err := domain.ValidateTitle(t); err != nil {
		return fn.Err[domain.Title](err)
	}
	return fn.Ok(t)
}

// Compose builds the embedding text for a title.
var Compose fn.Stage[domain.Title, ComposedTitle] = fn.MapStage(func(t domain.Title) ComposedTitle {
	return ComposedTitle{Title: t, Text: ComposeText(t)}
})

// NewEmbed creates an Embed stage that consults the cache before calling
// the embedding API.
func NewEmbed(embedder Embedder, cache *Cache) fn.Stage[ComposedTitle, EmbeddedTitle] {
	return func(ctx context.Context, ct ComposedTitle) fn.Result[EmbeddedTitle] {
		model := embedder.EmbedModel()
		if emb, ok := cache.Get(model, ct.Text); ok {
			return fn.Ok(EmbeddedTitle{ComposedTitle: ct, Embedding: emb, Cached: true})
		}

		emb, err := embedder.Embed(ctx, ct.Text)
		if err != nil {
			return fn.Err[EmbeddedTitle](fmt.Errorf("embed %s: %w", ct.ShowID, err))
		}
		if err := cache.Put(model, ct.Text, emb); err != nil {
			slog.Warn("ingest: cache write failed", "error", err, "show_id", ct.ShowID)
		}
		return fn.Ok(EmbeddedTitle{ComposedTitle: ct, Embedding: emb})
	}
}

// NewStore creates a Store stage that writes to Neo4j and Qdrant.
func NewStore(vectors VectorWriter, graph GraphWriter, model string) fn.Stage[EmbeddedTitle, string] {
	return func(ctx context.Context, et EmbeddedTitle) fn.Result[string] {
		if err := graph.SaveBatch(ctx, []domain.Title{et.Title}); err != nil {
			return fn.Err[string](fmt.Errorf("graph save %s: %w", et.ShowID, err))
		}

		record := semantic.VectorRecord{
			ID:        PointID(et.ShowID, model),
			Embedding: et.Embedding,
			Payload:   titlePayload(et.Title),
		}
		if err := vectors.Upsert(ctx, []semantic.VectorRecord{record}); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert %s: %w", et.ShowID, err))
		}
		return fn.Ok(et.ShowID)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// embedRetry bounds in-process retries of transient embedding failures.
// Message-level redelivery on the ingest subject is handled separately.
var embedRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 250 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
}

// NewPipeline constructs the full ingestion pipeline for a single title.
func NewPipeline(deps Deps) fn.Stage[domain.Title, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[domain.Title]("validate", log), Validate)
	composed := fn.Then(validated, Compose)
	embedded := fn.Then(composed, fn.TracedStage("ingest.embed",
		fn.RetryStage(embedRetry, NewEmbed(deps.Embedder, deps.Cache))))
	stored := fn.Then(embedded, fn.TracedStage("ingest.store",
		NewStore(deps.Vectors, deps.Graph, deps.Embedder.EmbedModel())))

	return stored
}

// BulkResult summarises a batch ingest.
type BulkResult struct {
	Stored   int
	Cached   int
	Failed   int
	FailedBy map[string]error // show_id -> first error
}

// IngestAll runs a full catalog through validation, batched embedding, and
// storage. Titles already in the cache skip the embedding API entirely.
func IngestAll(ctx context.Context, deps Deps, titles []domain.Title) (BulkResult, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	res := BulkResult{FailedBy: make(map[string]error)}
	model := deps.Embedder.EmbedModel()

	// Validate and compose up front so one bad row doesn't waste API calls.
	var composed []ComposedTitle
	for _, t := range titles {
		if err := domain.ValidateTitle(t); err != nil {
			res.Failed++
			res.FailedBy[t.ShowID] = err
			log.Warn("ingest: invalid title", "show_id", t.ShowID, "error", err)
			continue
		}
		composed = append(composed, ComposedTitle{Title: t, Text: ComposeText(t)})
	}

	embedded := make([]EmbeddedTitle, 0, len(composed))
	var pending []ComposedTitle
	for _, ct := range composed {
		if emb, ok := deps.Cache.Get(model, ct.Text); ok {
			embedded = append(embedded, EmbeddedTitle{ComposedTitle: ct, Embedding: emb, Cached: true})
			res.Cached++
			continue
		}
		pending = append(pending, ct)
	}

	for i := 0; i < len(pending); i += EmbedBatchSize {
		end := i + EmbedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[i:end]

		texts := make([]string, len(batch))
		for j, ct := range batch {
			texts[j] = ct.Text
		}
		embs, err := deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return res, fmt.Errorf("ingest: embed batch: %w", err)
		}
		for j, ct := range batch {
			if err := deps.Cache.Put(model, ct.Text, embs[j]); err != nil {
				log.Warn("ingest: cache write failed", "error", err, "show_id", ct.ShowID)
			}
			embedded = append(embedded, EmbeddedTitle{ComposedTitle: ct, Embedding: embs[j]})
		}
	}

	store := NewStore(deps.Vectors, deps.Graph, model)
	for _, et := range embedded {
		if _, err := store(ctx, et).Unwrap(); err != nil {
			res.Failed++
			res.FailedBy[et.ShowID] = err
			log.Error("ingest: store failed", "show_id", et.ShowID, "error", err)
			continue
		}
		res.Stored++
	}
	return res, nil
}

// DLQMessage is published to the DLQ on repeated failure.
type DLQMessage struct {
	Title   domain.Title `json:"title"`
	Error   string       `json:"error"`
	Retries int          `json:"retries"`
}

// publisher is the subset of nats.Conn the consumer uses to republish.
type publisher interface {
	Publish(subject string, data []byte) error
	PublishMsg(msg *nats.Msg) error
}

// handleMsg runs one message through the pipeline. Failures are republished
// with an incremented X-Retry-Count header until MaxRetries, then sent to
// the DLQ subject.
func handleMsg(nc publisher, pipeline fn.Stage[domain.Title, string], log *slog.Logger, msg *nats.Msg) {
	var title domain.Title
	if err := json.Unmarshal(msg.Data, &title); err != nil {
		log.Error("ingest: unmarshal failed", "error", err)
		return
	}

	ctx := context.Background()

	retries := 0
	if msg.Header != nil {
		if v := msg.Header.Get("X-Retry-Count"); v != "" {
			fmt.Sscanf(v, "%d", &retries)
		}
	}

	result := pipeline(ctx, title)
	if result.IsErr() {
		_, pipeErr := result.Unwrap()
		retries++
		log.Error("ingest: pipeline failed",
			"error", pipeErr,
			"show_id", title.ShowID,
			"retry", retries,
		)

		if retries >= MaxRetries {
			dlq := DLQMessage{
				Title:   title,
				Error:   pipeErr.Error(),
				Retries: retries,
			}
			data, _ := json.Marshal(dlq)
			if err := nc.Publish(DLQSubject, data); err != nil {
				log.Error("ingest: DLQ publish failed", "error", err)
			}
		} else {
			retryMsg := nats.NewMsg(IngestSubject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "error", err)
			}
		}
	} else {
		showID, _ := result.Unwrap()
		log.Info("ingest: success", "show_id", showID)
	}

	if msg.Reply != "" {
		_ = msg.Ack()
	}
}

// StartConsumer starts a NATS consumer that runs incremental title updates
// through the ingestion pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		handleMsg(nc, pipeline, log, msg)
	})
}
