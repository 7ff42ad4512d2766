package arxiv

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

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is
 All You Need</title>
    <published>2017-06-12T17:57:34Z</published>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func newTestFetcher(baseURL string) *Fetcher {
	return NewFetcher(&config.Config{
		ArxivBaseURL:     baseURL,
		SourceMaxResults: 3,
	}, zap.NewNop())
}

func TestSearchParsesAtomFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("search_query"); !strings.HasPrefix(q, "ti:") {
			t.Errorf("expected title query, got %q", q)
		}
		if got := r.URL.Query().Get("max_results"); got != "3" {
			t.Errorf("unexpected max_results: %q", got)
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	hits, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{Title: "Attention Is All You Need"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	hit := hits[0]
	if hit.Title != "Attention Is All You Need" {
		t.Fatalf("feed title whitespace must be collapsed, got %q", hit.Title)
	}
	if hit.Link != "http://arxiv.org/abs/1706.03762v7" {
		t.Fatalf("expected the alternate link, got %q", hit.Link)
	}
	if hit.Year != 2017 {
		t.Fatalf("expected year from published date, got %d", hit.Year)
	}
}

func TestSearchEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer server.Close()

	hits, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{Title: "Nothing"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestSearchWithoutTitle(t *testing.T) {
	hits, err := newTestFetcher("http://127.0.0.1:0").Search(context.Background(), &models.Reference{DOI: "10.1000/x"})
	if err != nil {
		t.Fatalf("title-less reference must not error, got %v", err)
	}
	if hits != nil {
		t.Fatalf("title-less reference must yield no hits, got %+v", hits)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := newTestFetcher(server.URL).Search(context.Background(), &models.Reference{Title: "X"}); err == nil {
		t.Fatal("a 503 must surface as error")
	}
}

func TestEntryToHitFallsBackToID(t *testing.T) {
	e := entry{
		ID:        "http://arxiv.org/abs/2101.00001v1",
		Title:     "Some Paper",
		Published: "2021-01-01T00:00:00Z",
	}
	hit := entryToHit(&e)
	if hit.Link != e.ID {
		t.Fatalf("without an alternate link the entry id must be used, got %q", hit.Link)
	}
}
