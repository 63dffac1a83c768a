package graph

import (
	"testing"

	"github.com/llmovies/llmovies/engine/domain"
)

func TestTitleToMap(t *testing.T) {
	title := domain.Title{
		ShowID:      "603",
		Name:        "The Matrix",
		Description: "A hacker discovers reality is a simulation.",
		Media:       domain.MediaMovie,
		Genres:      []string{"Action", "Science Fiction"},
		Providers:   []string{"netflix", "max"},
		ReleaseYear: 1999,
		Runtime:     136,
		VoteAverage: 8.2,
		VoteCount:   24000,
		WatchURL:    "https://www.themoviedb.org/movie/603/watch",
	}

	m := titleToMap(title)
	if m["show_id"] != "603" {
		t.Fatal("missing show_id")
	}
	if m["title"] != "The Matrix" {
		t.Fatal("missing title")
	}
	if m["media"] != "movie" {
		t.Fatalf("media = %v", m["media"])
	}
	if m["vote_count"] != 24000 {
		t.Fatalf("vote_count = %v", m["vote_count"])
	}
}

func TestTitleFromProps(t *testing.T) {
	// The Neo4j driver returns int64 for integers and []any for lists.
	props := map[string]any{
		"show_id":      "1396",
		"title":        "Breaking Bad",
		"description":  "A chemistry teacher turns to crime.",
		"media":        "tv",
		"genres":       []any{"Drama", "Crime"},
		"providers":    []any{"netflix"},
		"release_year": int64(2008),
		"runtime":      int64(47),
		"vote_average": 8.9,
		"vote_count":   int64(12000),
	}

	title := titleFromProps(props)
	if title.ShowID != "1396" {
		t.Fatalf("show_id = %s", title.ShowID)
	}
	if title.Media != domain.MediaTV {
		t.Fatalf("media = %s", title.Media)
	}
	if len(title.Genres) != 2 || title.Genres[1] != "Crime" {
		t.Fatalf("genres = %v", title.Genres)
	}
	if title.ReleaseYear != 2008 {
		t.Fatalf("release_year = %d", title.ReleaseYear)
	}
	if title.VoteAverage != 8.9 {
		t.Fatalf("vote_average = %v", title.VoteAverage)
	}
}

func TestTitleRoundTrip(t *testing.T) {
	in := domain.Title{
		ShowID:      "603",
		Name:        "The Matrix",
		Description: "A hacker discovers reality is a simulation.",
		Media:       domain.MediaMovie,
		Genres:      []string{"Action"},
		Providers:   []string{"netflix"},
		ReleaseYear: 1999,
		Runtime:     136,
		VoteAverage: 8.2,
		VoteCount:   24000,
	}

	out := titleFromProps(titleToMap(in))
	if out.ShowID != in.ShowID || out.Name != in.Name || out.VoteCount != in.VoteCount {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if len(out.Genres) != 1 || out.Genres[0] != "Action" {
		t.Fatalf("genres = %v", out.Genres)
	}
}

func TestPropHelpers(t *testing.T) {
	props := map[string]any{
		"n_int64":   int64(7),
		"n_int":     3,
		"n_float":   2.5,
		"s":         "hello",
		"list_any":  []any{"a", 1, "b"},
		"list_strs": []string{"x"},
	}

	if got := intProp(props, "n_int64"); got != 7 {
		t.Fatalf("intProp int64 = %d", got)
	}
	if got := intProp(props, "n_int"); got != 3 {
		t.Fatalf("intProp int = %d", got)
	}
	if got := intProp(props, "missing"); got != 0 {
		t.Fatalf("intProp missing = %d", got)
	}
	if got := floatProp(props, "n_float"); got != 2.5 {
		t.Fatalf("floatProp = %v", got)
	}
	if got := floatProp(props, "n_int64"); got != 7 {
		t.Fatalf("floatProp int64 = %v", got)
	}
	if got := strProp(props, "s"); got != "hello" {
		t.Fatalf("strProp = %q", got)
	}
	if got := strsProp(props, "list_any"); len(got) != 2 || got[1] != "b" {
		t.Fatalf("strsProp []any = %v", got)
	}
	if got := strsProp(props, "list_strs"); len(got) != 1 || got[0] != "x" {
		t.Fatalf("strsProp []string = %v", got)
	}
}

func TestNewGraphStore(t *testing.T) {
	// Verify construction with nil driver (no actual Neo4j needed).
	gs := New(nil)
	if gs == nil {
		t.Fatal("expected non-nil GraphStore")
	}
}
