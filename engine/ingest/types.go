package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/llmovies/llmovies/engine/domain"
)

// ComposedTitle is a title with its embedding text built.
type ComposedTitle struct {
	domain.Title
	Text string
}

// EmbeddedTitle is a composed title with its vector.
type EmbeddedTitle struct {
	ComposedTitle
	Embedding []float32
	Cached    bool
}

// ComposeText builds the text that gets embedded for a title.
func ComposeText(t domain.Title) string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nGenres: %s",
		t.Name, t.Description, strings.Join(t.Genres, ", "))
}

// PointID derives a deterministic vector point ID from the show ID and the
// embedding model, so re-ingesting with the same model overwrites in place
// and switching models produces new points.
func PointID(showID, model string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(showID+"|"+model)).String()
}

// titlePayload flattens a title into the vector point payload.
func titlePayload(t domain.Title) map[string]any {
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
