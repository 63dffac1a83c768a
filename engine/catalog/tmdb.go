package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/llmovies/llmovies/engine/domain"
)

// ErrTMDBRateLimited indicates TMDB returned 429. Callers may retry later.
var ErrTMDBRateLimited = errors.New("catalog: tmdb rate limited")

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDBClient fetches title metadata from the TMDB API.
type TMDBClient struct {
	token   string
	baseURL string
	limiter *rate.Limiter
	http    *http.Client
}

// NewTMDBClient creates a client with the given bearer token.
func NewTMDBClient(token string) *TMDBClient {
	return &TMDBClient{
		token:   token,
		baseURL: tmdbBaseURL,
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// DiscoverOpts narrows a discovery request.
type DiscoverOpts struct {
	Media     domain.MediaType
	Year      int
	Page      int
	Providers []string // provider slugs
}

// Discover returns TMDB IDs of popular titles for a year and provider set.
func (c *TMDBClient) Discover(ctx context.Context, opts DiscoverOpts) ([]int, error) {
	media := opts.Media
	if media == "" {
		media = domain.MediaMovie
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}

	params := url.Values{
		"sort_by":      {"popularity.desc"},
		"watch_region": {"US"},
		"page":         {strconv.Itoa(page)},
	}
	if opts.Year > 0 {
		if media == domain.MediaTV {
			params.Set("first_air_date_year", strconv.Itoa(opts.Year))
		} else {
			params.Set("year", strconv.Itoa(opts.Year))
		}
	}
	if ids := providerIDs(opts.Providers); len(ids) > 0 {
		params.Set("with_watch_providers", strings.Join(ids, "|"))
	}

	var resp discoverResponse
	path := fmt.Sprintf("/discover/%s", media)
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Details fetches full metadata for one title, including trailer videos and
// US watch providers, and maps it into a Title record.
func (c *TMDBClient) Details(ctx context.Context, media domain.MediaType, id int) (domain.Title, error) {
	if media == "" {
		media = domain.MediaMovie
	}

	params := url.Values{
		"append_to_response": {"videos,watch/providers"},
		"language":           {"en-US"},
	}

	var d detailsResponse
	path := fmt.Sprintf("/%s/%d", media, id)
	if err := c.get(ctx, path, params, &d); err != nil {
		return domain.Title{}, err
	}
	return d.toTitle(media), nil
}

func (c *TMDBClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrTMDBRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog: tmdb %s: status %d: %s", path, resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

type discoverResponse struct {
	Results []struct {
		ID int `json:"id"`
	} `json:"results"`
}

type detailsResponse struct {
	ID             int     `json:"id"`
	Title          string  `json:"title"`
	Name           string  `json:"name"` // tv uses name instead of title
	Overview       string  `json:"overview"`
	ReleaseDate    string  `json:"release_date"`
	FirstAirDate   string  `json:"first_air_date"`
	Runtime        int     `json:"runtime"`
	EpisodeRunTime []int   `json:"episode_run_time"`
	VoteAverage    float64 `json:"vote_average"`
	VoteCount      int     `json:"vote_count"`
	Genres         []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
	WatchProviders struct {
		Results map[string]struct {
			Link     string `json:"link"`
			Flatrate []struct {
				ProviderID int `json:"provider_id"`
			} `json:"flatrate"`
		} `json:"results"`
	} `json:"watch/providers"`
}

func (d detailsResponse) toTitle(media domain.MediaType) domain.Title {
	t := domain.Title{
		ShowID:      strconv.Itoa(d.ID),
		Name:        d.Title,
		Description: d.Overview,
		Media:       media,
		Runtime:     d.Runtime,
		VoteAverage: d.VoteAverage,
		VoteCount:   d.VoteCount,
	}
	if t.Name == "" {
		t.Name = d.Name
	}
	if t.Runtime == 0 && len(d.EpisodeRunTime) > 0 {
		t.Runtime = d.EpisodeRunTime[0]
	}

	date := d.ReleaseDate
	if date == "" {
		date = d.FirstAirDate
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			t.ReleaseYear = y
		}
	}

	for _, g := range d.Genres {
		t.Genres = append(t.Genres, normalizeGenres(g.Name)...)
	}

	for _, v := range d.Videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" {
			t.TrailerURL = "https://www.youtube.com/watch?v=" + v.Key
			break
		}
	}

	if us, ok := d.WatchProviders.Results["US"]; ok {
		t.WatchURL = us.Link
		for _, fr := range us.Flatrate {
			if slug, ok := providerSlugByID(fr.ProviderID); ok {
				t.Providers = append(t.Providers, slug)
			}
		}
	}
	return t
}

// tvGenreSplits maps combined TMDB TV genre names onto the movie genre
// vocabulary used everywhere else.
var tvGenreSplits = map[string][]string{
	"Action & Adventure": {"Action", "Adventure"},
	"Sci-Fi & Fantasy":   {"Science Fiction", "Fantasy"},
	"War & Politics":     {"War"},
}

func normalizeGenres(name string) []string {
	if split, ok := tvGenreSplits[name]; ok {
		return split
	}
	if domain.ValidGenre(name) {
		return []string{name}
	}
	return nil
}

func providerIDs(slugs []string) []string {
	ids := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if p, ok := domain.ProviderBySlug(slug); ok {
			ids = append(ids, strconv.Itoa(p.ID))
		}
	}
	return ids
}

func providerSlugByID(id int) (string, bool) {
	for _, p := range domain.Providers {
		if p.ID == id {
			return p.Slug, true
		}
	}
	return "", false
}
