// Command ingest loads the CSV catalogs, embeds every title, and stores the
// vectors in Qdrant and the catalog graph in Neo4j. With -consume it also
// subscribes to NATS for incremental title updates.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/llmovies/llmovies/engine/catalog"
	"github.com/llmovies/llmovies/engine/graph"
	"github.com/llmovies/llmovies/engine/ingest"
	"github.com/llmovies/llmovies/engine/semantic"
	"github.com/llmovies/llmovies/pkg/metrics"
	"github.com/llmovies/llmovies/pkg/natsutil"
	"github.com/llmovies/llmovies/pkg/openai"
)

var met = metrics.New()

var (
	mTitlesStored  = met.Counter("llmovies_ingest_titles_total", "Titles stored")
	mTitlesCached  = met.Counter("llmovies_ingest_cache_hits_total", "Embeddings served from cache")
	mTitlesFailed  = met.Counter("llmovies_ingest_failures_total", "Titles that failed ingestion")
	mCatalogSize   = met.Gauge("llmovies_ingest_catalog_size", "Titles loaded from the catalogs")
	mIngestSeconds = met.Histogram("llmovies_ingest_duration_seconds", "Full catalog ingest time", nil)
)

func main() {
	var (
		dataDir     = flag.String("data", "data", "directory holding the catalog CSV files")
		cacheDir    = flag.String("cache", "data/.embed-cache", "embedding cache directory")
		embedModel  = flag.String("embed-model", openai.DefaultEmbedModel, "OpenAI embedding model")
		dims        = flag.Int("dims", openai.DefaultEmbedDims, "embedding dimensions")
		neo4jURL    = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "titles", "Qdrant collection name")
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		consume     = flag.Bool("consume", false, "after the batch load, consume incremental updates from NATS")
		metricsPort = flag.Int("metrics-port", 9091, "metrics listen port")
	)
	flag.Parse()

	met.CollectRuntime("llmovies_ingest", 15*time.Second)
	met.ServeAsync(*metricsPort)

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	// Connect Neo4j
	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Neo4j")

	// Connect Qdrant
	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, *dims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", *dims)

	// OpenAI embedder
	client := openai.NewClient(openai.Config{
		APIKey:            apiKey,
		EmbedModel:        *embedModel,
		RequestsPerSecond: 2,
		Burst:             5,
	})
	log.Info("using OpenAI embeddings", "model", *embedModel)

	cache, err := ingest.NewCache(*cacheDir)
	if err != nil {
		log.Error("embedding cache", "error", err)
		os.Exit(1)
	}

	deps := ingest.Deps{
		Embedder: client,
		Vectors:  vs,
		Graph:    graph.New(driver),
		Cache:    cache,
		Logger:   log,
	}

	// Batch load the catalogs.
	titles, err := catalog.LoadDir(*dataDir)
	if err != nil {
		log.Error("load catalogs", "error", err)
		os.Exit(1)
	}
	mCatalogSize.Set(int64(len(titles)))
	log.Info("catalogs loaded", "titles", len(titles), "dir", *dataDir)

	start := time.Now()
	res, err := ingest.IngestAll(ctx, deps, titles)
	mIngestSeconds.Since(start)
	if err != nil {
		log.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	mTitlesStored.Add(int64(res.Stored))
	mTitlesCached.Add(int64(res.Cached))
	mTitlesFailed.Add(int64(res.Failed))
	log.Info("catalog ingest done",
		"stored", res.Stored,
		"cached", res.Cached,
		"failed", res.Failed,
		"duration", time.Since(start),
	)

	if !*consume {
		return
	}

	// Incremental updates over NATS.
	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		log.Error("nats subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()
	log.Info("consuming incremental updates", "subject", ingest.IngestSubject)

	// Titles that exhausted their retries land on the DLQ.
	dlqSub, err := natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, m ingest.DLQMessage) {
		mTitlesFailed.Inc()
		log.Error("title dead-lettered",
			"show_id", m.Title.ShowID,
			"error", m.Error,
			"retries", m.Retries,
		)
	})
	if err != nil {
		log.Error("dlq subscribe failed", "error", err)
		os.Exit(1)
	}
	defer dlqSub.Unsubscribe()

	<-ctx.Done()
	log.Info("shutting down")
}
