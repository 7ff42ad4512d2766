package models

// Verifikationsstatus einer Referenz. Terminal sind verified, not_found,
// failed und retracted; pending/in_progress sind Übergangszustände.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusVerified   = "verified"
	StatusNotFound   = "not_found"
	StatusFailed     = "failed"
	StatusRetracted  = "retracted"
)

// SourceHit ist ein einzelner Treffer einer bibliographischen Quelle.
// Die Felder sind quellenspezifisch belegt (CrossRef: Publisher/Year/DOI,
// arXiv: Link, Semantic Scholar: PaperID).
type SourceHit struct {
	Title     string `json:"title"`
	Publisher string `json:"publisher,omitempty"`
	Year      int    `json:"year,omitempty"`
	DOI       string `json:"doi,omitempty"`
	Link      string `json:"link,omitempty"`
	PaperID   string `json:"paperId,omitempty"`
}

// SourceResults bündelt die Trefferlisten aller Quellen für eine Referenz.
type SourceResults struct {
	Crossref        []SourceHit `json:"crossref"`
	Arxiv           []SourceHit `json:"arxiv"`
	SemanticScholar []SourceHit `json:"semantic_scholar"`
	Retracted       []SourceHit `json:"retracted"`
}

// HasBibliographicHit meldet, ob mindestens eine reguläre Quelle einen
// Treffer geliefert hat (Retraction-Treffer zählen nicht dazu).
func (s *SourceResults) HasBibliographicHit() bool {
	return len(s.Crossref) > 0 || len(s.Arxiv) > 0 || len(s.SemanticScholar) > 0
}

// VerificationResult ist das abgeleitete Prüfergebnis für eine Referenz.
// Status und Retracted-Liste sind zwei unabhängige Signale: eine verifizierte
// Referenz kann zusätzlich Retraction-Treffer tragen.
type VerificationResult struct {
	Reference Reference     `json:"reference"`
	Status    string        `json:"verification_status"`
	Results   SourceResults `json:"results"`
}

// VerificationStats ist die Aggregation über eine Referenzliste.
// Wird bei jedem Lauf vollständig neu berechnet und nicht persistiert.
type VerificationStats struct {
	Total            int         `json:"total"`
	Verified         int         `json:"verified"`
	NotVerified      int         `json:"not_verified"`
	Unverifiable     int         `json:"unverifiable"`
	UnverifiableRefs []Reference `json:"unverifiable_refs"`
}
