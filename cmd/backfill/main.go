// Command backfill repairs the catalog graph: Title nodes whose genre or
// provider edges are missing (for example after a partial ingest) get their
// IN_GENRE and AVAILABLE_ON relationships rebuilt from the node properties.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/llmovies/llmovies/engine/graph"
)

func main() {
	var (
		neo4jURL  = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass = flag.String("neo4j-pass", "password", "Neo4j password")
		batchSize = flag.Int("batch", 100, "orphans per pass")
		dryRun    = flag.Bool("dry-run", false, "report orphans without fixing them")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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

	gs := graph.New(driver)

	fixed := 0
	for {
		orphans, err := gs.Orphans(ctx, *batchSize)
		if err != nil {
			log.Error("find orphans", "error", err)
			os.Exit(1)
		}
		if len(orphans) == 0 {
			break
		}

		if *dryRun {
			for _, t := range orphans {
				log.Info("orphan", "show_id", t.ShowID, "title", t.Name,
					"genres", t.Genres, "providers", t.Providers)
			}
			fixed += len(orphans)
			break
		}

		if err := gs.SaveBatch(ctx, orphans); err != nil {
			log.Error("relink batch", "error", err)
			os.Exit(1)
		}
		fixed += len(orphans)
		log.Info("relinked", "count", len(orphans))
	}

	stats, err := gs.Stats(ctx)
	if err != nil {
		log.Warn("graph stats", "error", err)
	}
	log.Info("backfill done", "titles_processed", fixed, "stats", stats)
}
