// Package domain defines core domain types, vocabularies, and validation for
// the LLMovies engine. It acts as the validation gate at pipeline entry points.
package domain

// MediaType distinguishes movies from TV shows.
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
	// MediaAll means no media-type filter.
	MediaAll MediaType = ""
)

// Title represents a single catalog entry: one movie or TV show on one or
// more streaming services. Loaded once from CSV, read-only afterwards.
type Title struct {
	ShowID      string    `json:"show_id"`
	Name        string    `json:"title"`
	Description string    `json:"description"`
	Media       MediaType `json:"media"`
	Genres      []string  `json:"genres"`
	ReleaseYear int       `json:"release_year"`
	Runtime     int       `json:"runtime"` // minutes
	VoteAverage float64   `json:"vote_average"`
	VoteCount   int       `json:"vote_count"`
	TrailerURL  string    `json:"trailer_url,omitempty"`
	WatchURL    string    `json:"watch,omitempty"`
	Providers   []string  `json:"providers"`
}

// Query represents a user recommendation request.
type Query struct {
	Text      string   `json:"text"`
	Providers []string `json:"providers"`
}

// Provider is a streaming service titles can be watched on.
// IDs follow the TMDB watch-provider numbering the catalogs were built from.
type Provider struct {
	ID   int    `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Providers enumerates the supported streaming services.
var Providers = []Provider{
	{ID: 8, Slug: "netflix", Name: "Netflix"},
	{ID: 9, Slug: "amazon-prime-video", Name: "Amazon Prime Video"},
	{ID: 15, Slug: "hulu", Name: "Hulu"},
	{ID: 337, Slug: "disney-plus", Name: "Disney+"},
	{ID: 1899, Slug: "max", Name: "Max"},
}

// ProviderBySlug looks up a provider by its slug.
func ProviderBySlug(slug string) (Provider, bool) {
	for _, p := range Providers {
		if p.Slug == slug {
			return p, true
		}
	}
	return Provider{}, false
}

// Genres is the genre vocabulary used across the catalogs and by the
// query-parameter extractor.
var Genres = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary",
	"Drama", "Family", "Fantasy", "History", "Horror", "Music", "Mystery",
	"Romance", "Science Fiction", "Thriller", "TV Movie", "War", "Western",
}

// validGenres is the membership set for Genres.
var validGenres = func() map[string]bool {
	m := make(map[string]bool, len(Genres))
	for _, g := range Genres {
		m[g] = true
	}
	return m
}()

// ValidGenre reports whether g is in the genre vocabulary.
func ValidGenre(g string) bool { return validGenres[g] }
