package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llmovies/llmovies/engine/domain"
)

const sampleCSV = `show_id,title,description,media,genres,providers,release_year,runtime,vote_average,vote_count,trailer_url,watch
603,The Matrix,A hacker discovers reality is a simulation.,movie,Action|Science Fiction,netflix|max,1999,136,8.2,24000,https://www.youtube.com/watch?v=m8e-FF8MsqU,https://www.themoviedb.org/movie/603/watch
1396,Breaking Bad,A chemistry teacher turns to crime.,tv,Drama|Crime,netflix,2008,47,8.9,12000,,
`

func TestRead(t *testing.T) {
	titles, err := Read(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("got %d titles", len(titles))
	}

	m := titles[0]
	if m.ShowID != "603" || m.Name != "The Matrix" {
		t.Fatalf("first title = %+v", m)
	}
	if m.Media != domain.MediaMovie {
		t.Fatalf("media = %s", m.Media)
	}
	if len(m.Genres) != 2 || m.Genres[1] != "Science Fiction" {
		t.Fatalf("genres = %v", m.Genres)
	}
	if len(m.Providers) != 2 || m.Providers[1] != "max" {
		t.Fatalf("providers = %v", m.Providers)
	}
	if m.ReleaseYear != 1999 || m.Runtime != 136 || m.VoteCount != 24000 {
		t.Fatalf("numbers = %+v", m)
	}
	if m.VoteAverage != 8.2 {
		t.Fatalf("vote_average = %v", m.VoteAverage)
	}

	tv := titles[1]
	if tv.Media != domain.MediaTV {
		t.Fatalf("tv media = %s", tv.Media)
	}
	if tv.TrailerURL != "" {
		t.Fatalf("trailer = %q", tv.TrailerURL)
	}
}

func TestRead_UnknownColumn(t *testing.T) {
	_, err := Read(strings.NewReader("show_id,title,description,rating\n1,a,b,5\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown column") {
		t.Fatalf("got %v", err)
	}
}

func TestRead_MissingRequiredColumn(t *testing.T) {
	_, err := Read(strings.NewReader("show_id,title\n1,a\n"))
	if err == nil || !strings.Contains(err.Error(), "description") {
		t.Fatalf("got %v", err)
	}
}

func TestRead_BadNumber(t *testing.T) {
	csv := "show_id,title,description,release_year\n1,a,b,not-a-year\n"
	if _, err := Read(strings.NewReader(csv)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	in := []domain.Title{
		{
			ShowID:      "603",
			Name:        "The Matrix",
			Description: "A hacker discovers reality is a simulation.",
			Media:       domain.MediaMovie,
			Genres:      []string{"Action", "Science Fiction"},
			Providers:   []string{"netflix"},
			ReleaseYear: 1999,
			Runtime:     136,
			VoteAverage: 8.2,
			VoteCount:   24000,
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d titles", len(out))
	}
	if out[0].ShowID != in[0].ShowID || out[0].VoteAverage != in[0].VoteAverage {
		t.Fatalf("round trip mismatch: %+v", out[0])
	}
	if len(out[0].Genres) != 2 {
		t.Fatalf("genres = %v", out[0].Genres)
	}
}

func TestLoadDir_MergesProviders(t *testing.T) {
	dir := t.TempDir()

	netflix := []domain.Title{{
		ShowID: "603", Name: "The Matrix", Description: "d",
		Media: domain.MediaMovie, Providers: []string{"netflix"},
	}}
	hulu := []domain.Title{
		{
			ShowID: "603", Name: "The Matrix", Description: "d",
			Media: domain.MediaMovie, Providers: []string{"hulu"},
		},
		{
			ShowID: "680", Name: "Pulp Fiction", Description: "d",
			Media: domain.MediaMovie, Providers: []string{"hulu"},
		},
	}
	if err := WriteFile(filepath.Join(dir, "netflix.csv"), netflix); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(filepath.Join(dir, "hulu.csv"), hulu); err != nil {
		t.Fatal(err)
	}

	titles, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("got %d titles: %+v", len(titles), titles)
	}

	byID := map[string]domain.Title{}
	for _, title := range titles {
		byID[title.ShowID] = title
	}
	matrix := byID["603"]
	if len(matrix.Providers) != 2 {
		t.Fatalf("merged providers = %v", matrix.Providers)
	}
}

func TestLoadDir_Empty(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v", err)
	}
}
