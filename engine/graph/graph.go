package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/llmovies/llmovies/engine/domain"
	"github.com/llmovies/llmovies/pkg/repo"
)

// GraphStore provides graph operations on top of the generic Neo4j repository.
type GraphStore struct {
	driver neo4j.DriverWithContext
	titles *repo.Neo4jRepo[domain.Title, string]
}

// New creates a new GraphStore.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{
		driver: driver,
		titles: newTitleRepo(driver),
	}
}

func newTitleRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.Title, string] {
	return repo.NewNeo4jRepo[domain.Title, string](
		driver,
		"Title",
		titleToMap,
		titleFromRecord,
		repo.WithIDKey[domain.Title, string]("show_id"),
	)
}

// GetTitle returns a title node by show ID.
func (g *GraphStore) GetTitle(ctx context.Context, showID string) (domain.Title, error) {
	return g.titles.Get(ctx, showID)
}

// ListTitles returns title nodes with pagination.
func (g *GraphStore) ListTitles(ctx context.Context, opts repo.ListOpts) ([]domain.Title, error) {
	return g.titles.List(ctx, opts)
}

// SaveTitle creates or updates a title node and its genre and provider edges.
func (g *GraphStore) SaveTitle(ctx context.Context, t domain.Title) error {
	return g.SaveBatch(ctx, []domain.Title{t})
}

// SaveBatch saves multiple titles and their edges in a single transaction.
func (g *GraphStore) SaveBatch(ctx context.Context, titles []domain.Title) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, t := range titles {
			if err := saveTitleTx(ctx, tx, t); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func saveTitleTx(ctx context.Context, tx neo4j.ManagedTransaction, t domain.Title) error {
	cypher := `MERGE (n:Title {show_id: $id}) SET n += $props`
	if _, err := tx.Run(ctx, cypher, map[string]any{
		"id":    t.ShowID,
		"props": titleToMap(t),
	}); err != nil {
		return err
	}

	for _, genre := range t.Genres {
		cypher := `MERGE (g:Genre {name: $genre})
			WITH g
			MATCH (n:Title {show_id: $id})
			MERGE (n)-[:IN_GENRE]->(g)`
		if _, err := tx.Run(ctx, cypher, map[string]any{
			"id":    t.ShowID,
			"genre": genre,
		}); err != nil {
			return err
		}
	}

	for _, slug := range t.Providers {
		p, ok := domain.ProviderBySlug(slug)
		if !ok {
			continue
		}
		cypher := `MERGE (p:Provider {slug: $slug})
			SET p.name = $name, p.tmdb_id = $tmdb_id
			WITH p
			MATCH (n:Title {show_id: $id})
			MERGE (n)-[:AVAILABLE_ON]->(p)`
		if _, err := tx.Run(ctx, cypher, map[string]any{
			"id":      t.ShowID,
			"slug":    p.Slug,
			"name":    p.Name,
			"tmdb_id": p.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTitle removes a title node and all its edges.
func (g *GraphStore) DeleteTitle(ctx context.Context, showID string) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Title {show_id: $id}) DETACH DELETE n`
	_, err := sess.Run(ctx, cypher, map[string]any{"id": showID})
	return err
}

// Related returns titles sharing the most genres with the given title,
// ordered by genre overlap.
func (g *GraphStore) Related(ctx context.Context, showID string, limit int) ([]domain.Title, error) {
	if limit <= 0 {
		limit = 5
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (t:Title {show_id: $id})-[:IN_GENRE]->(g:Genre)<-[:IN_GENRE]-(n:Title)
		WHERE n.show_id <> $id
		RETURN n, count(g) AS shared
		ORDER BY shared DESC, n.vote_count DESC
		LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": showID, "limit": limit})
	if err != nil {
		return nil, err
	}
	return collectTitles(ctx, result)
}

// Neighborhoods resolves the graph context for each show ID. Missing or
// unreachable nodes are skipped rather than failing the whole batch.
func (g *GraphStore) Neighborhoods(ctx context.Context, showIDs []string, perTitle int) []Neighborhood {
	out := make([]Neighborhood, 0, len(showIDs))
	for _, id := range showIDs {
		related, err := g.Related(ctx, id, perTitle)
		if err != nil {
			continue
		}
		out = append(out, Neighborhood{ShowID: id, Related: related})
	}
	return out
}

// TitlesByGenre returns all titles linked to a genre node.
func (g *GraphStore) TitlesByGenre(ctx context.Context, genre string) ([]domain.Title, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Title)-[:IN_GENRE]->(:Genre {name: $genre}) RETURN n`
	result, err := sess.Run(ctx, cypher, map[string]any{"genre": genre})
	if err != nil {
		return nil, err
	}
	return collectTitles(ctx, result)
}

// TitlesByProvider returns all titles available on a streaming service.
func (g *GraphStore) TitlesByProvider(ctx context.Context, slug string) ([]domain.Title, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Title)-[:AVAILABLE_ON]->(:Provider {slug: $slug}) RETURN n`
	result, err := sess.Run(ctx, cypher, map[string]any{"slug": slug})
	if err != nil {
		return nil, err
	}
	return collectTitles(ctx, result)
}

// Orphans returns titles whose node carries genres or providers but has no
// corresponding edges. Used by the backfill command.
func (g *GraphStore) Orphans(ctx context.Context, limit int) ([]domain.Title, error) {
	if limit <= 0 {
		limit = 100
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Title)
		WHERE (size(coalesce(n.genres, [])) > 0 AND NOT (n)-[:IN_GENRE]->())
		   OR (size(coalesce(n.providers, [])) > 0 AND NOT (n)-[:AVAILABLE_ON]->())
		RETURN n LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	return collectTitles(ctx, result)
}

// Stats returns node and edge counts per label.
func (g *GraphStore) Stats(ctx context.Context) (map[string]int64, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (t:Title) WITH count(t) AS titles
		MATCH (g:Genre) WITH titles, count(g) AS genres
		MATCH (p:Provider) WITH titles, genres, count(p) AS providers
		RETURN titles, genres, providers`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		return nil, fmt.Errorf("graph: empty stats result")
	}

	stats := make(map[string]int64, 3)
	rec := result.Record()
	for _, key := range []string{"titles", "genres", "providers"} {
		if v, ok := rec.Get(key); ok {
			if n, ok := v.(int64); ok {
				stats[key] = n
			}
		}
	}
	return stats, nil
}

// collectTitles reads all Title nodes from a result set.
func collectTitles(ctx context.Context, result neo4j.ResultWithContext) ([]domain.Title, error) {
	var items []domain.Title
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, titleFromProps(node.Props))
	}
	return items, nil
}

func titleFromRecord(rec *neo4j.Record) (domain.Title, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Title{}, err
	}
	return titleFromProps(node.Props), nil
}

// titleToMap flattens a Title into Neo4j node properties.
func titleToMap(t domain.Title) map[string]any {
	return map[string]any{
		"show_id":      t.ShowID,
		"title":        t.Name,
		"description":  t.Description,
		"media":        string(t.Media),
		"genres":       t.Genres,
		"providers":    t.Providers,
		"release_year": t.ReleaseYear,
		"runtime":      t.Runtime,
		"vote_average": t.VoteAverage,
		"vote_count":   t.VoteCount,
		"trailer_url":  t.TrailerURL,
		"watch":        t.WatchURL,
	}
}

// titleFromProps constructs a Title from Neo4j node properties.
func titleFromProps(props map[string]any) domain.Title {
	return domain.Title{
		ShowID:      strProp(props, "show_id"),
		Name:        strProp(props, "title"),
		Description: strProp(props, "description"),
		Media:       domain.MediaType(strProp(props, "media")),
		Genres:      strsProp(props, "genres"),
		Providers:   strsProp(props, "providers"),
		ReleaseYear: intProp(props, "release_year"),
		Runtime:     intProp(props, "runtime"),
		VoteAverage: floatProp(props, "vote_average"),
		VoteCount:   intProp(props, "vote_count"),
		TrailerURL:  strProp(props, "trailer_url"),
		WatchURL:    strProp(props, "watch"),
	}
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

// intProp handles both int and the int64 the Neo4j driver returns.
func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// strsProp handles both []string and the []any the Neo4j driver returns.
func strsProp(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
