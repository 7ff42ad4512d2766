package semanticscholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"verifai/config"
	"verifai/models"
)

func newTestFetcher(baseURL string) *Fetcher {
	return NewFetcher(&config.Config{
		SemanticScholarBaseURL: baseURL,
		SemanticScholarAPIKey:  "test-key",
		SourceMaxResults:       3,
	}, zap.NewNop())
}

func TestSearchByDOIUsesDirectLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/paper/DOI:") {
			t.Errorf("expected DOI lookup path, got %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paperId":"p1","title":"A Paper","year":2020,"externalIds":{"DOI":"10.1000/x"}}`))
	}))
	defer server.Close()

	hits, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{DOI: "10.1000/x"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	hit := hits[0]
	if hit.PaperID != "p1" || hit.Title != "A Paper" || hit.Year != 2020 || hit.DOI != "10.1000/x" {
		t.Fatalf("unexpected hit mapping: %+v", hit)
	}
}

func TestSearchByDOINotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	hits, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{DOI: "10.1000/missing"})
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if hits != nil {
		t.Fatalf("404 must yield no hits, got %+v", hits)
	}
}

func TestSearchByTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/paper/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "Curcumin" {
			t.Errorf("unexpected query: %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("unexpected limit: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":2,"data":[
			{"paperId":"p1","title":"Curcumin I","year":2019},
			{"paperId":"p2","title":"Curcumin II","year":2021,"externalIds":{"DOI":"10.1000/c2"}}
		]}`))
	}))
	defer server.Close()

	hits, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{Title: "Curcumin"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[1].DOI != "10.1000/c2" {
		t.Fatalf("unexpected second hit: %+v", hits[1])
	}
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{Title: "X"}); err == nil {
		t.Fatal("a 429 must surface as error")
	}
}

func TestDetailsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	details, err := newTestFetcher(server.URL).Details(context.Background(), "10.1000/missing")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if details != nil {
		t.Fatalf("404 must yield nil details, got %+v", details)
	}
}

func TestDetailsParsesAuthorsAndAbstract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fields"); !strings.Contains(got, "authors") {
			t.Errorf("details lookup must request authors, got fields=%q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paperId":"p1","title":"A Paper","year":2020,"abstract":"Some abstract.","authors":[{"name":"John Doe"},{"name":"Jane Roe"}]}`))
	}))
	defer server.Close()

	details, err := newTestFetcher(server.URL).Details(context.Background(), "10.1000/x")
	if err != nil {
		t.Fatalf("details failed: %v", err)
	}
	if details.Abstract != "Some abstract." {
		t.Fatalf("unexpected abstract: %q", details.Abstract)
	}
	if len(details.Authors) != 2 || details.Authors[0].Name != "John Doe" {
		t.Fatalf("unexpected authors: %+v", details.Authors)
	}
}
