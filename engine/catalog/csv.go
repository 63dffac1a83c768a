// Package catalog loads title catalogs from CSV files and regenerates them
// from the TMDB API.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/llmovies/llmovies/engine/domain"
)

// csvHeader is the column order for catalog CSV files. Written by cmd/fetch,
// read back here.
var csvHeader = []string{
	"show_id", "title", "description", "media", "genres", "providers",
	"release_year", "runtime", "vote_average", "vote_count",
	"trailer_url", "watch",
}

// listSep joins multi-valued columns (genres, providers) inside a CSV cell.
const listSep = "|"

// LoadFile reads one catalog CSV into Title records.
func LoadFile(path string) ([]domain.Title, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	titles, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return titles, nil
}

// LoadDir reads every .csv file in a directory and merges the results.
// The same title appearing in multiple catalogs keeps the union of its
// providers.
func LoadDir(dir string) ([]domain.Title, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("catalog: glob %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("catalog: no csv files in %s", dir)
	}
	sort.Strings(paths)

	byID := make(map[string]*domain.Title)
	var order []string
	for _, path := range paths {
		titles, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, t := range titles {
			existing, ok := byID[t.ShowID]
			if !ok {
				t := t
				byID[t.ShowID] = &t
				order = append(order, t.ShowID)
				continue
			}
			existing.Providers = mergeStrings(existing.Providers, t.Providers)
		}
	}

	merged := make([]domain.Title, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byID[id])
	}
	return merged, nil
}

// Read parses catalog CSV rows from a reader. The first row must be the
// header; unknown columns are rejected.
func Read(r io.Reader) ([]domain.Title, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var titles []domain.Title
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t, err := rowToTitle(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		titles = append(titles, t)
	}
	return titles, nil
}

// Write serialises titles as catalog CSV.
func Write(w io.Writer, titles []domain.Title) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range titles {
		row := []string{
			t.ShowID,
			t.Name,
			t.Description,
			string(t.Media),
			strings.Join(t.Genres, listSep),
			strings.Join(t.Providers, listSep),
			strconv.Itoa(t.ReleaseYear),
			strconv.Itoa(t.Runtime),
			strconv.FormatFloat(t.VoteAverage, 'f', -1, 64),
			strconv.Itoa(t.VoteCount),
			t.TrailerURL,
			t.WatchURL,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes titles to a catalog CSV file.
func WriteFile(path string, titles []domain.Title) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("catalog: create %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, titles); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}

func headerIndex(header []string) (map[string]int, error) {
	known := make(map[string]bool, len(csvHeader))
	for _, col := range csvHeader {
		known[col] = true
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if !known[col] {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		idx[col] = i
	}
	for _, col := range []string{"show_id", "title", "description"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return idx, nil
}

func rowToTitle(row []string, idx map[string]int) (domain.Title, error) {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	t := domain.Title{
		ShowID:      cell("show_id"),
		Name:        cell("title"),
		Description: cell("description"),
		Media:       domain.MediaType(cell("media")),
		Genres:      splitList(cell("genres")),
		Providers:   splitList(cell("providers")),
		TrailerURL:  cell("trailer_url"),
		WatchURL:    cell("watch"),
	}
	if t.Media == "" {
		t.Media = domain.MediaMovie
	}

	var err error
	if t.ReleaseYear, err = intCell(cell("release_year")); err != nil {
		return t, fmt.Errorf("release_year: %w", err)
	}
	if t.Runtime, err = intCell(cell("runtime")); err != nil {
		return t, fmt.Errorf("runtime: %w", err)
	}
	if t.VoteCount, err = intCell(cell("vote_count")); err != nil {
		return t, fmt.Errorf("vote_count: %w", err)
	}
	if v := cell("vote_average"); v != "" {
		if t.VoteAverage, err = strconv.ParseFloat(v, 64); err != nil {
			return t, fmt.Errorf("vote_average: %w", err)
		}
	}
	return t, nil
}

func intCell(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, listSep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mergeStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := a
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
