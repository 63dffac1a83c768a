package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/llmovies/llmovies/engine/domain"
	"github.com/llmovies/llmovies/engine/recommend"
	"github.com/llmovies/llmovies/engine/semantic"
	"github.com/llmovies/llmovies/pkg/openai"
)

type mockRecommender struct {
	answer *recommend.Answer
	err    error
	gotQ   domain.Query
}

func (m *mockRecommender) Recommend(_ context.Context, q domain.Query) (*recommend.Answer, error) {
	m.gotQ = q
	return m.answer, m.err
}

func postRecommend(t *testing.T, svc Recommender, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleRecommend(svc, slog.Default())(rec, req)
	return rec
}

func TestHandleRecommend(t *testing.T) {
	svc := &mockRecommender{answer: &recommend.Answer{
		Recommendations: []semantic.SearchResult{{ShowID: "603", Title: "The Matrix"}},
		Model:           "gpt-4o-mini",
		TokensUsed:      42,
	}}

	rec := postRecommend(t, svc, `{"text": "hacker movies", "providers": ["netflix"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	if svc.gotQ.Text != "hacker movies" || len(svc.gotQ.Providers) != 1 {
		t.Fatalf("query = %+v", svc.gotQ)
	}

	var resp RecommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].Title != "The Matrix" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Model != "gpt-4o-mini" || resp.Tokens != 42 {
		t.Fatalf("resp meta = %+v", resp)
	}
}

func TestHandleRecommend_BadBody(t *testing.T) {
	rec := postRecommend(t, &mockRecommender{}, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleRecommend_MissingText(t *testing.T) {
	rec := postRecommend(t, &mockRecommender{}, `{"providers": ["netflix"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleRecommend_NoMatchesIs200(t *testing.T) {
	svc := &mockRecommender{err: recommend.ErrNoRecommendations}
	rec := postRecommend(t, svc, `{"text": "anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp RecommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message == "" || len(resp.Recommendations) != 0 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHandleRecommend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("text", "x", domain.ErrQueryTooShort), http.StatusBadRequest},
		{"auth", openai.ErrUnauthorized, http.StatusUnauthorized},
		{"rate limit", openai.ErrRateLimited, http.StatusTooManyRequests},
		{"other", errors.New("qdrant down"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postRecommend(t, &mockRecommender{err: tc.err}, `{"text": "anything fun"}`)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

type mockTitleGetter struct {
	title domain.Title
	err   error
}

func (m *mockTitleGetter) GetTitle(_ context.Context, _ string) (domain.Title, error) {
	return m.title, m.err
}

func TestHandleTitle(t *testing.T) {
	store := &mockTitleGetter{title: domain.Title{ShowID: "603", Name: "The Matrix"}}
	mux := http.NewServeMux()
	mux.Handle("GET /api/titles/{id}", handleTitle(store))

	req := httptest.NewRequest(http.MethodGet, "/api/titles/603", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var title domain.Title
	if err := json.Unmarshal(rec.Body.Bytes(), &title); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if title.Name != "The Matrix" {
		t.Fatalf("title = %+v", title)
	}
}

func TestHandleTitle_NotFound(t *testing.T) {
	store := &mockTitleGetter{err: errors.New("Title not found")}
	mux := http.NewServeMux()
	mux.Handle("GET /api/titles/{id}", handleTitle(store))

	req := httptest.NewRequest(http.MethodGet, "/api/titles/999", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port == "" || cfg.Collection == "" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TopK != 10 || cfg.MinVoteCount != 500 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
