package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"verifai/models"
)

// DocumentExtractor extrahiert Metadaten und das Literaturverzeichnis aus
// hochgeladenen Dokumenten. Die Extraktion arbeitet heuristisch auf dem
// Textinhalt; Binärreste aus dem Upload werden vorher verworfen.
type DocumentExtractor struct {
	Logger *zap.Logger
}

// NewDocumentExtractor erstellt einen neuen Dokument-Extraktor.
func NewDocumentExtractor(logger *zap.Logger) *DocumentExtractor {
	return &DocumentExtractor{Logger: logger}
}

var docDOIPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s"'<>]+`)

// refSections sind die Abschnittsnamen, unter denen Literaturverzeichnisse
// üblicherweise stehen.
var refSections = []string{
	"References",
	"Bibliography",
	"Literature",
	"Works Cited",
	"Literaturverzeichnis",
	"Literatur",
	"Quellen",
	"Sources",
}

// Extract analysiert ein Dokument und liefert Titel, DOI und die erkannten
// Referenzen. Referenzen starten im Status pending; die eigentliche Prüfung
// übernimmt der Verifier. Die Extraktion arbeitet rein lokal.
func (de *DocumentExtractor) Extract(filename string, data []byte) *models.DocumentAnalysis {
	text := normalizeText(data)

	de.Logger.Info("Starte Dokument-Extraktion",
		zap.String("filename", filename),
		zap.Int("text_length", len(text)))

	analysis := &models.DocumentAnalysis{
		Title:      guessTitle(text, filename),
		References: []models.Reference{},
	}
	if doi := docDOIPattern.FindString(text); doi != "" {
		analysis.DOI = strings.TrimRight(doi, ".,;)")
	}

	for _, line := range referenceLines(text) {
		analysis.References = append(analysis.References, parseReferenceLine(line))
	}

	de.Logger.Info("Dokument-Extraktion abgeschlossen",
		zap.String("doi", analysis.DOI),
		zap.Int("references", len(analysis.References)))

	return analysis
}

// normalizeText macht aus den Rohdaten durchsuchbaren Text: NFC-Normalform,
// nicht druckbare Zeichen raus, Trennstriche am Zeilenende zusammengezogen.
func normalizeText(data []byte) string {
	text := norm.NFC.String(string(data))

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	// Silbentrennung über Zeilenumbrüche hinweg auflösen.
	text = strings.ReplaceAll(text, "-\n", "")
	return text
}

// guessTitle nimmt die erste plausible Textzeile als Titel; der Dateiname ist
// der Rückfallwert.
func guessTitle(text, filename string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) >= 10 && len(line) <= 250 && !docDOIPattern.MatchString(line) {
			return line
		}
	}
	return filename
}

// referenceLines liefert die Zeilen des Literaturverzeichnisses, die wie
// Referenzen aussehen. Ohne erkennbaren Abschnitt wird das ganze Dokument
// durchsucht.
func referenceLines(text string) []string {
	lines := strings.Split(text, "\n")
	start := findReferenceSection(lines)

	var refs []string
	for _, line := range lines[start:] {
		line = strings.TrimSpace(line)
		if line == "" || isHeaderLine(line) {
			continue
		}
		if isValidReference(line) {
			refs = append(refs, line)
		}
	}
	return refs
}

// findReferenceSection sucht die Startzeile des Literaturverzeichnisses.
func findReferenceSection(lines []string) int {
	for _, section := range refSections {
		patterns := []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*` + section + `\s*$`),
			regexp.MustCompile(`(?i)^##?\s*` + section + `\s*$`),
			regexp.MustCompile(`(?i)^[0-9]+\.?\s*` + section + `\s*$`),
		}
		for _, pattern := range patterns {
			for i, line := range lines {
				if pattern.MatchString(strings.TrimSpace(line)) {
					return i
				}
			}
		}
	}
	return 0
}

// isHeaderLine prüft ob eine Zeile eine Überschrift ist.
func isHeaderLine(line string) bool {
	headerPatterns := []*regexp.Regexp{
		regexp.MustCompile(`^#{1,6}\s+.*$`),
		regexp.MustCompile(`^[A-Z\s]+$`),
	}
	for _, pattern := range headerPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	for _, section := range refSections {
		if strings.EqualFold(strings.TrimSpace(line), section) {
			return true
		}
	}
	return false
}

// isValidReference prüft ob eine Zeile eine gültige Referenz ist.
func isValidReference(line string) bool {
	if len(line) < 15 {
		return false
	}

	referencePatterns := []*regexp.Regexp{
		regexp.MustCompile(`[A-Z][a-zA-Z\s,&]+\s*\(\d{4}[a-z]?\)`), // Autor (Jahr)
		regexp.MustCompile(`[A-Z][a-zA-Z\s,&]+\.\s*\d{4}[a-z]?`),   // Autor. Jahr
		regexp.MustCompile(`\d+\(\d+\):\s*\d+[-–]\d+`),             // Vol(Issue): Seiten
		regexp.MustCompile(`(?i)doi:\s*10\.\d+[^\s]*`),
		regexp.MustCompile(`10\.\d{4,9}/[^\s]+`),
		regexp.MustCompile(`(?i)isbn:\s*[\d-]+`),
		regexp.MustCompile(`(?i)arxiv:\s*[\d.v]+`),
		regexp.MustCompile(`https?://[^\s]+`),
		regexp.MustCompile(`pp?\.\s*\d+[-–]\d+`),
		regexp.MustCompile(`^\d+\.\s+[A-Z]`),   // 1. Autor
		regexp.MustCompile(`^\[\d+\]\s+[A-Z]`), // [1] Autor
	}

	for _, pattern := range referencePatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

var refYearPattern = regexp.MustCompile(`\((\d{4})[a-z]?\)`)
var refKeyPattern = regexp.MustCompile(`^\[?(\d{1,3})[\].]\s+`)

// parseReferenceLine baut aus einer Verzeichniszeile eine Referenz. Titel und
// Autoren lassen sich aus Freitext nicht verlässlich trennen; die Zeile bleibt
// als unstrukturierter Text erhalten und DOI, Jahr und Nummer werden
// herausgezogen, wo sie erkennbar sind.
func parseReferenceLine(line string) models.Reference {
	ref := models.Reference{Unstructured: line}

	if m := refKeyPattern.FindStringSubmatch(line); m != nil {
		ref.Key = m[1]
	}
	if doi := docDOIPattern.FindString(line); doi != "" {
		ref.DOI = strings.TrimRight(doi, ".,;)")
	}
	if m := refYearPattern.FindStringSubmatch(line); m != nil {
		ref.Year, _ = strconv.Atoi(m[1])
	}
	return ref
}
