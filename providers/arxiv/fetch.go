package arxiv

import (
	"context"
	"encoding/xml"
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

// Fetcher implementiert das Source-Interface für die arXiv-API (Atom).
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen arXiv-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "arxiv"
}

// Search sucht Titel-Treffer auf arXiv. Referenzen ohne Titel können hier
// nicht gesucht werden und liefern eine leere Liste.
func (f *Fetcher) Search(ctx context.Context, ref *models.Reference) ([]models.SourceHit, error) {
	title := strings.TrimSpace(ref.Title)
	if title == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("search_query", fmt.Sprintf("ti:%q", title))
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(f.Config.SourceMaxResults))

	searchURL := fmt.Sprintf("%s?%s", f.Config.ArxivBaseURL, q.Encode())
	f.Logger.Debug("Rufe arXiv-API auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv: status %d", resp.StatusCode)
	}

	var result feed
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	hits := make([]models.SourceHit, 0, len(result.Entries))
	for _, e := range result.Entries {
		hits = append(hits, entryToHit(&e))
	}
	return hits, nil
}

// entryToHit konvertiert einen Atom-Eintrag in unseren Quellen-Treffer.
func entryToHit(e *entry) models.SourceHit {
	hit := models.SourceHit{
		// Atom-Titel kommen mit Zeilenumbrüchen aus der API.
		Title: strings.Join(strings.Fields(e.Title), " "),
		Link:  e.ID,
	}
	for _, l := range e.Links {
		if l.Rel == "alternate" {
			hit.Link = l.Href
			break
		}
	}
	if len(e.Published) >= 4 {
		if y, err := strconv.Atoi(e.Published[:4]); err == nil {
			hit.Year = y
		}
	}
	return hit
}
