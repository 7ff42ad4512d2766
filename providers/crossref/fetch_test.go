package crossref

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
		CrossrefBaseURL:  baseURL,
		ContactEmail:     "test@example.org",
		SourceMaxResults: 3,
	}, zap.NewNop())
}

func TestSearchByTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query.bibliographic"); got != "Curcumin Revisited" {
			t.Errorf("unexpected bibliographic query: %q", got)
		}
		if got := r.URL.Query().Get("rows"); got != "3" {
			t.Errorf("unexpected rows: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"items":[
			{"title":["Curcumin Revisited"],"DOI":"10.1000/curcumin","publisher":"Example Press","issued":{"date-parts":[[2021,3]]}}
		]}}`))
	}))
	defer server.Close()

	hits, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{Title: "Curcumin Revisited"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	hit := hits[0]
	if hit.Title != "Curcumin Revisited" || hit.DOI != "10.1000/curcumin" || hit.Publisher != "Example Press" || hit.Year != 2021 {
		t.Fatalf("unexpected hit mapping: %+v", hit)
	}
}

func TestSearchByDOIResolvesWork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/works/") {
			t.Errorf("expected single-work lookup, got path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"title":["A Paper"],"DOI":"10.1000/x","published-print":{"date-parts":[[2019]]}}}`))
	}))
	defer server.Close()

	hits, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{DOI: "https://doi.org/10.1000/x"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].DOI != "10.1000/x" || hits[0].Year != 2019 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestWorksNotFoundIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	work, err := newTestFetcher(server.URL).Works(context.Background(), "10.1000/missing")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if work != nil {
		t.Fatalf("404 must yield a nil work, got %+v", work)
	}
}

func TestWorksUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := newTestFetcher(server.URL).Works(context.Background(), "10.1000/x"); err == nil {
		t.Fatal("a 500 must surface as error")
	}
}

func TestSearchWithoutTitleOrDOI(t *testing.T) {
	hits, err := newTestFetcher("http://127.0.0.1:0").Search(context.Background(), &models.Reference{})
	if err != nil {
		t.Fatalf("empty reference must not error, got %v", err)
	}
	if hits != nil {
		t.Fatalf("empty reference must yield no hits, got %+v", hits)
	}
}

func TestNormalizeDOI(t *testing.T) {
	cases := map[string]string{
		"https://doi.org/10.1000/x": "10.1000/x",
		"http://doi.org/10.1000/x":  "10.1000/x",
		"doi:10.1000/x":             "10.1000/x",
		"  10.1000/x  ":             "10.1000/x",
	}
	for input, want := range cases {
		if got := NormalizeDOI(input); got != want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", input, got, want)
		}
	}
}
