package models

import "strings"

// Reference repräsentiert eine einzelne Literaturangabe aus einem analysierten Paper
// oder Dokument. Reine Wertestruktur, wird nicht persistiert.
type Reference struct {
	Key          string   `json:"key,omitempty"`
	Title        string   `json:"title,omitempty"`
	Authors      []string `json:"authors,omitempty"`
	Year         int      `json:"year,omitempty"`
	DOI          string   `json:"doi,omitempty"`
	Unstructured string   `json:"unstructured,omitempty"`
}

// DisplayTitle gibt den anzeigbaren Titel zurück, mit Fallback auf den Rohtext.
func (r *Reference) DisplayTitle() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	if strings.TrimSpace(r.Unstructured) != "" {
		return r.Unstructured
	}
	return "Untitled Reference"
}

// RefKey ist die strukturelle Identität einer Referenz (Titel+DOI).
// Zwei Referenzen mit identischem Titel und DOI werden bewusst zusammengefasst.
type RefKey struct {
	Title string
	DOI   string
}

// Key liefert die strukturelle Identität der Referenz.
func (r *Reference) RefKey() RefKey {
	return RefKey{Title: r.Title, DOI: r.DOI}
}

// PaperAnalysis ist das Ergebnis der Paper-Analyse über CrossRef/Semantic Scholar.
type PaperAnalysis struct {
	Title            string      `json:"title"`
	DOI              string      `json:"doi,omitempty"`
	PublicationDate  string      `json:"publication_date,omitempty"`
	Journal          string      `json:"journal,omitempty"`
	Authors          []string    `json:"authors,omitempty"`
	Abstract         string      `json:"abstract,omitempty"`
	RetractionNotice string      `json:"retraction_notice,omitempty"`
	References       []Reference `json:"references"`
}

// DocumentAnalysis ist das Ergebnis einer Dokument-Extraktion nach Upload.
type DocumentAnalysis struct {
	Title      string      `json:"title,omitempty"`
	DOI        string      `json:"doi,omitempty"`
	Authors    []string    `json:"authors,omitempty"`
	S3Link     string      `json:"s3_link,omitempty"`
	References []Reference `json:"references"`
}
