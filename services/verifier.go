package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"verifai/config"
	"verifai/models"
	"verifai/providers"
)

// Verifier prüft einzelne Referenzen gegen alle konfigurierten Quellen.
// Die Quellen werden parallel abgefragt; der Ausfall einer Quelle blockiert
// oder invalidiert die übrigen nicht.
type Verifier struct {
	Config  *config.Config
	Logger  *zap.Logger
	Sources []providers.Source

	mu       sync.Mutex
	inflight map[models.RefKey]*verifyCall
	results  map[models.RefKey]*models.VerificationResult
}

// verifyCall repräsentiert eine laufende Prüfung, auf die sich parallele
// Aufrufer für dieselbe Referenz-Identität draufhängen.
type verifyCall struct {
	done chan struct{}
	res  *models.VerificationResult
}

// NewVerifier erstellt einen neuen Verifier über den gegebenen Quellen.
func NewVerifier(cfg *config.Config, logger *zap.Logger, sources []providers.Source) *Verifier {
	return &Verifier{
		Config:   cfg,
		Logger:   logger,
		Sources:  sources,
		inflight: make(map[models.RefKey]*verifyCall),
		results:  make(map[models.RefKey]*models.VerificationResult),
	}
}

// Verify prüft eine Referenz gegen alle Quellen und leitet den Gesamtstatus
// ab. Läuft für dieselbe Referenz-Identität (Titel+DOI) bereits eine Prüfung,
// wird deren Ergebnis mitbenutzt statt doppelt zu suchen. Ein erneuter Aufruf
// nach Abschluss stößt die Prüfung neu an.
func (v *Verifier) Verify(ctx context.Context, ref *models.Reference) *models.VerificationResult {
	key := ref.RefKey()

	v.mu.Lock()
	if call, ok := v.inflight[key]; ok {
		v.mu.Unlock()
		select {
		case <-call.done:
			return call.res
		case <-ctx.Done():
			return &models.VerificationResult{Reference: *ref, Status: models.StatusFailed, Results: emptyResults()}
		}
	}
	call := &verifyCall{done: make(chan struct{})}
	v.inflight[key] = call
	v.mu.Unlock()

	res := v.verify(ctx, ref)

	v.mu.Lock()
	call.res = res
	v.results[key] = res
	delete(v.inflight, key)
	v.mu.Unlock()
	close(call.done)

	return res
}

// LastResult gibt das zuletzt berechnete Ergebnis für eine Referenz-Identität
// zurück, falls vorhanden.
func (v *Verifier) LastResult(key models.RefKey) (*models.VerificationResult, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	res, ok := v.results[key]
	return res, ok
}

type sourceOutcome struct {
	name string
	hits []models.SourceHit
	err  error
}

// verify fragt alle Quellen parallel ab und wartet, bis jede fertig ist
// (Erfolg oder Fehler), bevor der Status abgeleitet wird.
func (v *Verifier) verify(ctx context.Context, ref *models.Reference) *models.VerificationResult {
	log := v.Logger.With(zap.String("title", ref.Title), zap.String("doi", ref.DOI))
	log.Info("Starte Referenz-Verifikation", zap.Int("sources", len(v.Sources)))

	outcomes := make([]sourceOutcome, len(v.Sources))
	var wg sync.WaitGroup
	for i, src := range v.Sources {
		wg.Add(1)
		go func(i int, src providers.Source) {
			defer wg.Done()
			hits, err := src.Search(ctx, ref)
			outcomes[i] = sourceOutcome{name: src.Name(), hits: hits, err: err}
		}(i, src)
	}
	wg.Wait()

	results := emptyResults()
	sourceErrors := 0
	for _, out := range outcomes {
		if out.err != nil {
			// Eine ausgefallene Quelle ist ein isolierter Fehler; sie trägt
			// schlicht keine Treffer bei.
			log.Warn("Quelle nicht erreichbar", zap.String("source", out.name), zap.Error(out.err))
			sourceErrors++
			continue
		}
		switch out.name {
		case "crossref":
			results.Crossref = append(results.Crossref, out.hits...)
		case "arxiv":
			results.Arxiv = append(results.Arxiv, out.hits...)
		case "semantic_scholar":
			results.SemanticScholar = append(results.SemanticScholar, out.hits...)
		case "retracted":
			results.Retracted = append(results.Retracted, out.hits...)
		default:
			log.Warn("Unbekannte Quelle im Ergebnis", zap.String("source", out.name))
		}
	}

	status := deriveStatus(&results, sourceErrors)
	log.Info("Referenz-Verifikation abgeschlossen",
		zap.String("status", status),
		zap.Int("source_errors", sourceErrors))

	return &models.VerificationResult{Reference: *ref, Status: status, Results: results}
}

// deriveStatus leitet den Gesamtstatus ab. Status und Retraction-Treffer sind
// zwei getrennte Signale: Treffer in regulären Quellen ergeben verified, auch
// wenn zusätzlich Retraction-Treffer vorliegen.
func deriveStatus(results *models.SourceResults, sourceErrors int) string {
	switch {
	case results.HasBibliographicHit():
		return models.StatusVerified
	case len(results.Retracted) > 0:
		return models.StatusRetracted
	case sourceErrors > 0:
		return models.StatusFailed
	default:
		return models.StatusNotFound
	}
}

// emptyResults liefert leere (nicht nil) Trefferlisten, damit der Client
// immer Arrays sieht.
func emptyResults() models.SourceResults {
	return models.SourceResults{
		Crossref:        []models.SourceHit{},
		Arxiv:           []models.SourceHit{},
		SemanticScholar: []models.SourceHit{},
		Retracted:       []models.SourceHit{},
	}
}
