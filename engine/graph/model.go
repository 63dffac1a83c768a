// Package graph provides Neo4j knowledge graph operations for the title catalog.
//
// The graph holds three node labels:
//
//	(:Title {show_id, title, media, release_year, ...})
//	(:Genre {name})
//	(:Provider {slug, name, tmdb_id})
//
// with (:Title)-[:IN_GENRE]->(:Genre) and (:Title)-[:AVAILABLE_ON]->(:Provider)
// relationships.
package graph

import "github.com/llmovies/llmovies/engine/domain"

// Neighborhood is the graph context around a single title. It is attached to
// recommendation candidates so the model can mention related titles.
type Neighborhood struct {
	ShowID  string         `json:"show_id"`
	Related []domain.Title `json:"related,omitempty"`
}
