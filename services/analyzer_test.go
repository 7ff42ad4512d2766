package services

import (
	"testing"

	"verifai/models"
	"verifai/providers/crossref"
)

func TestAnalysisFromWork(t *testing.T) {
	work := &crossref.Work{
		Title:          []string{"Curcumin Revisited"},
		DOI:            "10.1000/curcumin",
		ContainerTitle: []string{"Journal of Examples"},
		Abstract:       "<jats:p>Some abstract.</jats:p>",
		Author: []crossref.Author{
			{Given: "John", Family: "Doe"},
			{Given: "", Family: "Roe"},
		},
		Issued: &crossref.DateParts{DateParts: [][]int{{2021, 3}}},
		Reference: []crossref.Reference{
			{Key: "ref1", ArticleTitle: "Earlier Work", Author: "Doe, Roe", Year: "2019", DOI: "10.1000/earlier"},
			{Key: "ref2", Unstructured: "Doe, J. (2017). Unparsed reference line."},
		},
	}

	analysis := analysisFromWork(work)

	if analysis.Title != "Curcumin Revisited" {
		t.Fatalf("unexpected title: %q", analysis.Title)
	}
	if analysis.Journal != "Journal of Examples" {
		t.Fatalf("unexpected journal: %q", analysis.Journal)
	}
	if analysis.PublicationDate != "2021" {
		t.Fatalf("unexpected publication date: %q", analysis.PublicationDate)
	}
	if analysis.Abstract != "Some abstract." {
		t.Fatalf("JATS tags must be stripped, got %q", analysis.Abstract)
	}
	if len(analysis.Authors) != 2 || analysis.Authors[0] != "John Doe" || analysis.Authors[1] != "Roe" {
		t.Fatalf("unexpected authors: %+v", analysis.Authors)
	}
	if len(analysis.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(analysis.References))
	}
	first := analysis.References[0]
	if first.Title != "Earlier Work" || first.Year != 2019 || first.DOI != "10.1000/earlier" {
		t.Fatalf("unexpected first reference: %+v", first)
	}
	if len(first.Authors) != 2 {
		t.Fatalf("author field must be split, got %+v", first.Authors)
	}
}

func TestDOIPattern(t *testing.T) {
	for _, doi := range []string{"10.1000/abc", "10.123456/j.some.thing-1"} {
		if !doiPattern.MatchString(doi) {
			t.Fatalf("%q must be recognized as DOI", doi)
		}
	}
	for _, input := range []string{"Curcumin and the brain", "10.1000", "ISBN 978-3"} {
		if doiPattern.MatchString(input) {
			t.Fatalf("%q must not be recognized as DOI", input)
		}
	}
}

func TestMatchesPaper(t *testing.T) {
	analysis := &models.PaperAnalysis{Title: "Curcumin  Revisited", DOI: "10.1000/curcumin"}

	byDOI := models.SourceHit{Title: "Retraction: something", DOI: "10.1000/CURCUMIN"}
	if !matchesPaper(&byDOI, analysis) {
		t.Fatal("DOI match must count, case-insensitively")
	}

	byTitle := models.SourceHit{Title: "curcumin revisited"}
	if !matchesPaper(&byTitle, analysis) {
		t.Fatal("whitespace-normalized title match must count")
	}

	unrelated := models.SourceHit{Title: "Another Paper", DOI: "10.1000/other"}
	if matchesPaper(&unrelated, analysis) {
		t.Fatal("unrelated hit must not match")
	}
}
