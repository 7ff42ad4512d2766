package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"verifai/models"
)

func TestSummarizeEmptyList(t *testing.T) {
	engine := NewStatsEngine(newTestVerifier(&fakeSource{name: "crossref"}), zap.NewNop())

	stats, err := engine.Summarize(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 0 || stats.Verified != 0 || stats.NotVerified != 0 || stats.Unverifiable != 0 {
		t.Fatalf("expected all-zero stats, got %+v", stats)
	}
	if stats.UnverifiableRefs == nil {
		t.Fatal("unverifiable list must be non-nil")
	}
}

func TestSummarizeClassification(t *testing.T) {
	// Treffer nur für Paper A; Paper B bleibt ohne Fund.
	src := &titleSource{name: "crossref", known: "Paper A"}
	engine := NewStatsEngine(newTestVerifier(src), zap.NewNop())

	refs := []models.Reference{
		{Title: "Paper A"},
		{Title: "Paper B"},
	}
	stats, err := engine.Summarize(context.Background(), refs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Total != 2 {
		t.Fatalf("expected total 2, got %d", stats.Total)
	}
	if stats.Verified != 1 {
		t.Fatalf("expected 1 verified, got %d", stats.Verified)
	}
	if stats.Unverifiable != 1 {
		t.Fatalf("expected 1 unverifiable, got %d", stats.Unverifiable)
	}
	if len(stats.UnverifiableRefs) != 1 || stats.UnverifiableRefs[0].Title != "Paper B" {
		t.Fatalf("expected Paper B in unverifiable list, got %+v", stats.UnverifiableRefs)
	}
}

func TestVerifiedSubsetPreservesOrder(t *testing.T) {
	src := &titleSource{name: "crossref", known: "Paper A", alsoKnown: "Paper C"}
	engine := NewStatsEngine(newTestVerifier(src), zap.NewNop())

	refs := []models.Reference{
		{Title: "Paper A"},
		{Title: "Paper B"},
		{Title: "Paper C"},
	}
	if _, err := engine.Summarize(context.Background(), refs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subset := engine.VerifiedSubset()
	if len(subset) != 2 {
		t.Fatalf("expected 2 verified references, got %d", len(subset))
	}
	if subset[0].Title != "Paper A" || subset[1].Title != "Paper C" {
		t.Fatalf("subset must preserve input order, got %+v", subset)
	}
}

func TestVerifiedSubsetWithoutRun(t *testing.T) {
	engine := NewStatsEngine(newTestVerifier(&fakeSource{name: "crossref"}), zap.NewNop())
	if subset := engine.VerifiedSubset(); len(subset) != 0 {
		t.Fatalf("expected empty subset before any run, got %d entries", len(subset))
	}
}

func TestSummarizeRejectsConcurrentRun(t *testing.T) {
	src := &fakeSource{name: "crossref", block: make(chan struct{})}
	engine := NewStatsEngine(newTestVerifier(src), zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.Summarize(context.Background(), []models.Reference{{Title: "Paper A"}})
	}()

	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := engine.Summarize(context.Background(), []models.Reference{{Title: "Paper B"}}); err != ErrSummarizeRunning {
		t.Fatalf("expected ErrSummarizeRunning, got %v", err)
	}

	close(src.block)
	<-done

	// Nach Abschluss ist ein neuer Lauf wieder möglich.
	if _, err := engine.Summarize(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error after first run finished: %v", err)
	}
}

// titleSource liefert nur für bestimmte Titel Treffer.
type titleSource struct {
	name      string
	known     string
	alsoKnown string
}

func (s *titleSource) Name() string { return s.name }

func (s *titleSource) Search(ctx context.Context, ref *models.Reference) ([]models.SourceHit, error) {
	if ref.Title == s.known || (s.alsoKnown != "" && ref.Title == s.alsoKnown) {
		return []models.SourceHit{{Title: ref.Title}}, nil
	}
	return nil, nil
}
