package services

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"verifai/models"
)

// ErrSummarizeRunning wird zurückgegeben, wenn bereits eine Stapel-Prüfung
// läuft. Pro Engine läuft immer höchstens eine.
var ErrSummarizeRunning = errors.New("summarize already running")

// maxConcurrentVerifications begrenzt die parallelen Referenz-Prüfungen
// innerhalb eines Stapels, damit die Quellen nicht mit Anfragen geflutet
// werden.
const maxConcurrentVerifications = 5

// StatsEngine prüft ganze Referenzlisten und fasst das Ergebnis zu einer
// Statistik zusammen. Das letzte Stapel-Ergebnis bleibt erhalten, damit die
// verifizierte Teilmenge später abgefragt werden kann.
type StatsEngine struct {
	Verifier *Verifier
	Logger   *zap.Logger

	mu      sync.Mutex
	running bool
	last    []*models.VerificationResult
}

// NewStatsEngine erstellt eine neue Statistik-Engine über dem Verifier.
func NewStatsEngine(verifier *Verifier, logger *zap.Logger) *StatsEngine {
	return &StatsEngine{Verifier: verifier, Logger: logger}
}

// Summarize prüft alle Referenzen parallel (begrenzt über ein Semaphor) und
// zählt die Ergebnisse in Eingabereihenfolge zusammen. Läuft bereits ein
// Stapel, kommt ErrSummarizeRunning zurück.
func (s *StatsEngine) Summarize(ctx context.Context, refs []models.Reference) (*models.VerificationStats, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSummarizeRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.Logger.Info("Starte Stapel-Verifikation", zap.Int("references", len(refs)))

	results := make([]*models.VerificationResult, len(refs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentVerifications)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.Verifier.Verify(ctx, &refs[i])
		}(i)
	}
	wg.Wait()

	stats := &models.VerificationStats{
		Total:            len(refs),
		UnverifiableRefs: []models.Reference{},
	}
	for _, res := range results {
		switch res.Status {
		case models.StatusVerified:
			stats.Verified++
		case models.StatusNotFound, models.StatusFailed:
			stats.Unverifiable++
			stats.UnverifiableRefs = append(stats.UnverifiableRefs, res.Reference)
		default:
			stats.NotVerified++
		}
	}

	s.mu.Lock()
	s.last = results
	s.mu.Unlock()

	s.Logger.Info("Stapel-Verifikation abgeschlossen",
		zap.Int("verified", stats.Verified),
		zap.Int("not_verified", stats.NotVerified),
		zap.Int("unverifiable", stats.Unverifiable))

	return stats, nil
}

// VerifiedSubset gibt die Referenzen des letzten Stapels zurück, die als
// verified eingestuft wurden, in Eingabereihenfolge.
func (s *StatsEngine) VerifiedSubset() []models.Reference {
	s.mu.Lock()
	defer s.mu.Unlock()

	subset := []models.Reference{}
	for _, res := range s.last {
		if res != nil && res.Status == models.StatusVerified {
			subset = append(subset, res.Reference)
		}
	}
	return subset
}
