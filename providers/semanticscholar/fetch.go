package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"verifai/config"
	"verifai/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher implementiert das Source-Interface für die Semantic Scholar Graph-API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Semantic-Scholar-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "semantic_scholar"
}

// Search sucht Treffer über die Paper-Suche. Mit DOI wird das Paper direkt
// über DOI:<doi> aufgelöst, sonst über den Titel gesucht.
func (f *Fetcher) Search(ctx context.Context, ref *models.Reference) ([]models.SourceHit, error) {
	if doi := strings.TrimSpace(ref.DOI); doi != "" {
		paper, err := f.byDOI(ctx, doi)
		if err != nil {
			return nil, err
		}
		if paper == nil {
			return nil, nil
		}
		return []models.SourceHit{paperToHit(paper)}, nil
	}

	title := strings.TrimSpace(ref.Title)
	if title == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("query", title)
	q.Set("limit", strconv.Itoa(f.Config.SourceMaxResults))
	q.Set("fields", "title,year,externalIds")

	searchURL := fmt.Sprintf("%s/paper/search?%s", f.Config.SemanticScholarBaseURL, q.Encode())
	f.Logger.Debug("Rufe Semantic Scholar Suche auf", zap.String("url", searchURL))

	var result searchResponse
	if err := f.getJSON(ctx, searchURL, &result); err != nil {
		return nil, err
	}

	hits := make([]models.SourceHit, 0, len(result.Data))
	for i := range result.Data {
		hits = append(hits, paperToHit(&result.Data[i]))
	}
	return hits, nil
}

// byDOI löst einen DOI direkt auf. 404 bedeutet "nicht vorhanden".
func (f *Fetcher) byDOI(ctx context.Context, doi string) (*Paper, error) {
	paperURL := fmt.Sprintf("%s/paper/DOI:%s?fields=title,year,externalIds",
		f.Config.SemanticScholarBaseURL, url.PathEscape(doi))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paperURL, nil)
	if err != nil {
		return nil, err
	}
	f.setHeaders(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic scholar: status %d", resp.StatusCode)
	}

	var paper Paper
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// Details lädt die erweiterten Metadaten zu einem DOI für die Paper-Analyse.
// 404 bedeutet "nicht vorhanden" und ist kein Fehler.
func (f *Fetcher) Details(ctx context.Context, doi string) (*PaperDetails, error) {
	paperURL := fmt.Sprintf("%s/paper/DOI:%s?fields=title,year,abstract,authors",
		f.Config.SemanticScholarBaseURL, url.PathEscape(doi))
	f.Logger.Debug("Rufe Semantic Scholar Details auf", zap.String("url", paperURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paperURL, nil)
	if err != nil {
		return nil, err
	}
	f.setHeaders(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic scholar: status %d", resp.StatusCode)
	}

	var details PaperDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	f.setHeaders(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("semantic scholar: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (f *Fetcher) setHeaders(req *http.Request) {
	if f.Config.SemanticScholarAPIKey != "" {
		req.Header.Set("x-api-key", f.Config.SemanticScholarAPIKey)
	}
}

// paperToHit konvertiert ein Semantic-Scholar-Paper in unseren Quellen-Treffer.
func paperToHit(p *Paper) models.SourceHit {
	return models.SourceHit{
		Title:   p.Title,
		Year:    p.Year,
		DOI:     p.ExternalIDs.DOI,
		PaperID: p.PaperID,
	}
}
