package retractionwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"verifai/config"
	"verifai/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher implementiert das Source-Interface für Retraction-Watch-Daten.
// Die Daten kommen über die CrossRef-API mit dem Filter type:retraction;
// ein Treffer hier ist ein Warnsignal, kein regulärer bibliographischer Fund.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Retraction-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "retracted"
}

type listResponse struct {
	Message struct {
		Items []struct {
			Title []string `json:"title"`
			DOI   string   `json:"DOI"`
		} `json:"items"`
	} `json:"message"`
}

// Search sucht Retraction-Einträge zum Titel der Referenz.
func (f *Fetcher) Search(ctx context.Context, ref *models.Reference) ([]models.SourceHit, error) {
	title := strings.TrimSpace(ref.Title)
	if title == "" {
		title = strings.TrimSpace(ref.Unstructured)
	}
	if title == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("query.title", title)
	q.Set("filter", "type:retraction")
	q.Set("mailto", f.Config.ContactEmail)

	searchURL := fmt.Sprintf("%s/works?%s", f.Config.CrossrefBaseURL, q.Encode())
	f.Logger.Debug("Rufe Retraction-Suche auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fmt.Sprintf("VerifAI/1.0 (mailto:%s)", f.Config.ContactEmail))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retraction search: status %d", resp.StatusCode)
	}

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	var hits []models.SourceHit
	for _, item := range result.Message.Items {
		hit := models.SourceHit{DOI: item.DOI}
		if len(item.Title) > 0 {
			hit.Title = item.Title[0]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
