// Command fetch regenerates the catalog CSV files from the TMDB API.
// It discovers popular titles per year for the configured streaming
// services, fetches full details for each, and writes one CSV per service.
// With -publish it also pushes every title onto the ingest subject so a
// running consumer picks the refresh up immediately.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/llmovies/llmovies/engine/catalog"
	"github.com/llmovies/llmovies/engine/domain"
	"github.com/llmovies/llmovies/engine/ingest"
	"github.com/llmovies/llmovies/pkg/fn"
	"github.com/llmovies/llmovies/pkg/natsutil"
)

func main() {
	var (
		outDir    = flag.String("out", "data", "output directory for catalog CSVs")
		fromYear  = flag.Int("from", 2020, "first release year to discover")
		toYear    = flag.Int("to", 2023, "last release year to discover")
		pages     = flag.Int("pages", 1, "discovery pages per year")
		media     = flag.String("media", "movie", "media type: movie or tv")
		providers = flag.String("providers", "netflix,hulu,disney-plus", "comma-separated provider slugs")
		workers   = flag.Int("workers", 10, "concurrent detail fetches")
		publish   = flag.Bool("publish", false, "also publish titles to the ingest subject")
		natsURL   = flag.String("nats", nats.DefaultURL, "NATS server URL (with -publish)")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	token := os.Getenv("TMDB_ACCESS_TOKEN")
	if token == "" {
		log.Error("TMDB_ACCESS_TOKEN is required")
		os.Exit(1)
	}

	slugs := splitSlugs(*providers)
	if len(slugs) == 0 {
		log.Error("no valid provider slugs", "providers", *providers)
		os.Exit(1)
	}

	client := catalog.NewTMDBClient(token)
	mediaType := domain.MediaType(*media)

	// Discover IDs year by year across all requested providers at once.
	seen := make(map[int]bool)
	var ids []int
	for year := *fromYear; year <= *toYear; year++ {
		for page := 1; page <= *pages; page++ {
			found, err := client.Discover(ctx, catalog.DiscoverOpts{
				Media:     mediaType,
				Year:      year,
				Page:      page,
				Providers: slugs,
			})
			if err != nil {
				log.Error("discover failed", "year", year, "page", page, "error", err)
				os.Exit(1)
			}
			for _, id := range found {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	log.Info("discovery done", "titles", len(ids))

	// Fetch details concurrently.
	results := fn.ParMapResult(ids, *workers, func(id int) fn.Result[domain.Title] {
		return fn.FromPair(client.Details(ctx, mediaType, id))
	})

	var titles []domain.Title
	for i, r := range results {
		t, err := r.Unwrap()
		if err != nil {
			log.Warn("details failed", "tmdb_id", ids[i], "error", err)
			continue
		}
		if err := domain.ValidateTitle(t); err != nil {
			log.Warn("skipping invalid title", "tmdb_id", ids[i], "error", err)
			continue
		}
		titles = append(titles, t)
	}
	log.Info("details done", "titles", len(titles))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Error("output dir", "error", err)
		os.Exit(1)
	}

	// One CSV per provider, holding the titles available on it.
	for _, slug := range slugs {
		var onService []domain.Title
		for _, t := range titles {
			for _, p := range t.Providers {
				if p == slug {
					onService = append(onService, t)
					break
				}
			}
		}
		path := filepath.Join(*outDir, slug+".csv")
		if err := catalog.WriteFile(path, onService); err != nil {
			log.Error("write catalog", "path", path, "error", err)
			os.Exit(1)
		}
		log.Info("catalog written", "path", path, "titles", len(onService))
	}

	if *publish {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			log.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()

		published := 0
		for _, t := range titles {
			if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, t); err != nil {
				log.Warn("publish failed", "show_id", t.ShowID, "error", err)
				continue
			}
			published++
		}
		log.Info("titles published", "subject", ingest.IngestSubject, "count", published)
	}
}

func splitSlugs(s string) []string {
	var slugs []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := domain.ProviderBySlug(part); ok {
			slugs = append(slugs, part)
		}
	}
	return slugs
}
