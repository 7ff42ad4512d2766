package services

import (
	"testing"

	"go.uber.org/zap"
)

const sampleDocument = `Curcumin and Neuroinflammation: A Systematic Review
John Doe, Jane Roe

Abstract
This review considers the evidence for curcumin in neuroinflammatory disease.
doi: 10.1000/j.example.2020.01.001

Introduction
Much has been written about curcumin (Doe et al., 2018).

References
1. Doe, J. (2018). Curcumin in the brain. Journal of Examples, 12(3): 45-67.
2. Roe, J. (2019). Turmeric revisited. https://doi.org/10.1000/j.example.2019.9.999
Some stray line that is not a reference
3. Poe, E. (2017). Bioavailability of curcuminoids. Example Press, pp. 101-120.
`

func TestExtractFindsReferences(t *testing.T) {
	extractor := NewDocumentExtractor(zap.NewNop())

	analysis := extractor.Extract("paper.pdf", []byte(sampleDocument))

	if analysis.Title != "Curcumin and Neuroinflammation: A Systematic Review" {
		t.Fatalf("unexpected title: %q", analysis.Title)
	}
	if analysis.DOI != "10.1000/j.example.2020.01.001" {
		t.Fatalf("unexpected document DOI: %q", analysis.DOI)
	}
	if len(analysis.References) != 3 {
		t.Fatalf("expected 3 references, got %d: %+v", len(analysis.References), analysis.References)
	}
}

func TestExtractParsesReferenceFields(t *testing.T) {
	extractor := NewDocumentExtractor(zap.NewNop())

	analysis := extractor.Extract("paper.pdf", []byte(sampleDocument))
	if len(analysis.References) < 2 {
		t.Fatalf("expected at least 2 references, got %d", len(analysis.References))
	}

	first := analysis.References[0]
	if first.Key != "1" {
		t.Fatalf("expected key 1, got %q", first.Key)
	}
	if first.Year != 2018 {
		t.Fatalf("expected year 2018, got %d", first.Year)
	}
	if first.Unstructured == "" {
		t.Fatal("unstructured line must be preserved")
	}

	second := analysis.References[1]
	if second.DOI != "10.1000/j.example.2019.9.999" {
		t.Fatalf("expected DOI from reference line, got %q", second.DOI)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	extractor := NewDocumentExtractor(zap.NewNop())

	analysis := extractor.Extract("empty.txt", nil)
	if analysis.Title != "empty.txt" {
		t.Fatalf("expected filename fallback title, got %q", analysis.Title)
	}
	if len(analysis.References) != 0 {
		t.Fatalf("expected no references, got %d", len(analysis.References))
	}
	if analysis.References == nil {
		t.Fatal("reference list must be non-nil")
	}
}

func TestNormalizeTextJoinsHyphenation(t *testing.T) {
	text := normalizeText([]byte("neuro-\ninflammation"))
	if text != "neuroinflammation" {
		t.Fatalf("expected hyphenation joined, got %q", text)
	}
}

func TestIsValidReferenceRejectsShortLines(t *testing.T) {
	if isValidReference("too short") {
		t.Fatal("short lines must not count as references")
	}
	if !isValidReference("Doe, J. (2018). Curcumin in the brain. Journal of Examples, 12(3): 45-67.") {
		t.Fatal("author-year line must count as reference")
	}
}
