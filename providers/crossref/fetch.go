package crossref

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

// Fetcher implementiert das Source-Interface für CrossRef und liefert
// zusätzlich die Werk-Metadaten für die Paper-Analyse.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen CrossRef-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "crossref"
}

// NormalizeDOI entfernt URL-Präfixe und Whitespace aus einem DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.TrimSpace(doi)
}

// Search sucht Kandidaten für eine Referenz. Mit DOI wird das Werk direkt
// aufgelöst, sonst bibliographisch über den Titel gesucht.
func (f *Fetcher) Search(ctx context.Context, ref *models.Reference) ([]models.SourceHit, error) {
	if doi := NormalizeDOI(ref.DOI); doi != "" {
		work, err := f.Works(ctx, doi)
		if err != nil {
			return nil, err
		}
		if work == nil {
			return nil, nil
		}
		return []models.SourceHit{workToHit(work)}, nil
	}

	title := strings.TrimSpace(ref.Title)
	if title == "" {
		title = strings.TrimSpace(ref.Unstructured)
	}
	if title == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("query.bibliographic", title)
	q.Set("rows", strconv.Itoa(f.Config.SourceMaxResults))
	q.Set("mailto", f.Config.ContactEmail)

	searchURL := fmt.Sprintf("%s/works?%s", f.Config.CrossrefBaseURL, q.Encode())
	f.Logger.Debug("Rufe CrossRef-Suche auf", zap.String("url", searchURL))

	var list listResponse
	if err := f.getJSON(ctx, searchURL, &list); err != nil {
		return nil, err
	}

	hits := make([]models.SourceHit, 0, len(list.Message.Items))
	for i := range list.Message.Items {
		hits = append(hits, workToHit(&list.Message.Items[i]))
	}
	return hits, nil
}

// Works löst einen DOI zu den vollen Werk-Metadaten auf. Ein 404 ist kein
// Fehler, sondern "nicht vorhanden" (nil, nil).
func (f *Fetcher) Works(ctx context.Context, doi string) (*Work, error) {
	worksURL := fmt.Sprintf("%s/works/%s?mailto=%s",
		f.Config.CrossrefBaseURL, url.PathEscape(NormalizeDOI(doi)), url.QueryEscape(f.Config.ContactEmail))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, worksURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent(f.Config))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crossref works: status %d", resp.StatusCode)
	}

	var wr worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, err
	}
	return &wr.Message, nil
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent(f.Config))

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("crossref: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func userAgent(cfg *config.Config) string {
	return fmt.Sprintf("VerifAI/1.0 (mailto:%s)", cfg.ContactEmail)
}

// workToHit konvertiert ein CrossRef-Werk in unseren Quellen-Treffer.
func workToHit(w *Work) models.SourceHit {
	hit := models.SourceHit{
		Publisher: w.Publisher,
		DOI:       w.DOI,
	}
	if len(w.Title) > 0 {
		hit.Title = w.Title[0]
	}
	if y := w.PublishedPrint.Year(); y != 0 {
		hit.Year = y
	} else {
		hit.Year = w.Issued.Year()
	}
	return hit
}
