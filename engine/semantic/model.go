package semantic

// VectorRecord is a single title vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // show_id, title, description, media, genres, ...
}

// SearchResult is a single vector search hit with its title payload.
type SearchResult struct {
	ID          string   `json:"id"`
	Score       float32  `json:"score"`
	ShowID      string   `json:"show_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Media       string   `json:"media"`
	Genres      []string `json:"genres"`
	Providers   []string `json:"providers"`
	ReleaseYear int      `json:"release_year"`
	Runtime     int      `json:"runtime"`
	VoteAverage float64  `json:"vote_average"`
	VoteCount   int      `json:"vote_count"`
	TrailerURL  string   `json:"trailer_url,omitempty"`
	WatchURL    string   `json:"watch,omitempty"`
}

// Filter narrows a similarity search. Zero values mean "no constraint".
type Filter struct {
	// Providers restricts hits to titles available on any of these services.
	Providers []string
	// Genres restricts hits to titles tagged with any of these genres.
	Genres []string
	// Media restricts hits to "movie" or "tv".
	Media string
	// MinVoteCount drops titles with fewer votes.
	MinVoteCount int
}

// IsZero reports whether the filter imposes no constraints.
func (f Filter) IsZero() bool {
	return len(f.Providers) == 0 && len(f.Genres) == 0 && f.Media == "" && f.MinVoteCount == 0
}
