package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"verifai/config"
	"verifai/models"
	"verifai/providers"
	"verifai/providers/crossref"
	"verifai/providers/semanticscholar"
)

// doiPattern erkennt nackte DOIs nach der Normalisierung.
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// Analyzer löst einen Identifier (Titel oder DOI) zu vollen Paper-Metadaten
// auf. CrossRef ist die Primärquelle; Semantic Scholar ergänzt und korrigiert
// die Metadaten, wo es die besseren Daten hat.
type Analyzer struct {
	Config     *config.Config
	Logger     *zap.Logger
	Crossref   *crossref.Fetcher
	Semantic   *semanticscholar.Fetcher
	Retraction providers.Source
}

// NewAnalyzer erstellt einen neuen Analyzer.
func NewAnalyzer(cfg *config.Config, logger *zap.Logger, cr *crossref.Fetcher, ss *semanticscholar.Fetcher, retraction providers.Source) *Analyzer {
	return &Analyzer{Config: cfg, Logger: logger, Crossref: cr, Semantic: ss, Retraction: retraction}
}

// AnalyzeIdentifier analysiert ein Paper anhand eines DOI oder Titels.
// Kann der Identifier nicht aufgelöst werden, kommt ein Fehler zurück,
// den der Aufrufer als Chat-Antwort rendern kann.
func (a *Analyzer) AnalyzeIdentifier(ctx context.Context, identifier string) (*models.PaperAnalysis, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("kein Identifier angegeben")
	}

	doi := crossref.NormalizeDOI(identifier)
	if !doiPattern.MatchString(doi) {
		resolved, err := a.resolveTitle(ctx, identifier)
		if err != nil {
			return nil, err
		}
		doi = resolved
	}

	a.Logger.Info("Analysiere Paper", zap.String("doi", doi))

	work, err := a.Crossref.Works(ctx, doi)
	if err != nil {
		return nil, fmt.Errorf("crossref-metadaten: %w", err)
	}
	if work == nil {
		return nil, fmt.Errorf("kein Werk zu DOI %s gefunden", doi)
	}

	analysis := analysisFromWork(work)
	a.mergeSemanticScholar(ctx, analysis)
	a.attachRetractionNotice(ctx, analysis)

	return analysis, nil
}

// resolveTitle sucht den DOI zum besten bibliographischen Treffer eines Titels.
func (a *Analyzer) resolveTitle(ctx context.Context, title string) (string, error) {
	hits, err := a.Crossref.Search(ctx, &models.Reference{Title: title})
	if err != nil {
		return "", fmt.Errorf("titelsuche: %w", err)
	}
	for _, hit := range hits {
		if hit.DOI != "" {
			a.Logger.Debug("Titel zu DOI aufgelöst",
				zap.String("title", title), zap.String("doi", hit.DOI))
			return hit.DOI, nil
		}
	}
	return "", fmt.Errorf("kein Paper zu %q gefunden", title)
}

// analysisFromWork baut die Analyse aus den CrossRef-Metadaten auf.
func analysisFromWork(w *crossref.Work) *models.PaperAnalysis {
	analysis := &models.PaperAnalysis{
		DOI:      w.DOI,
		Abstract: stripJATS(w.Abstract),
	}
	if len(w.Title) > 0 {
		analysis.Title = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 {
		analysis.Journal = w.ContainerTitle[0]
	}
	if y := w.PublishedPrint.Year(); y != 0 {
		analysis.PublicationDate = strconv.Itoa(y)
	} else if y := w.Issued.Year(); y != 0 {
		analysis.PublicationDate = strconv.Itoa(y)
	}
	for _, au := range w.Author {
		name := strings.TrimSpace(au.Given + " " + au.Family)
		if name != "" {
			analysis.Authors = append(analysis.Authors, name)
		}
	}
	for _, ref := range w.Reference {
		analysis.References = append(analysis.References, models.Reference{
			Key:          ref.Key,
			Title:        ref.ArticleTitle,
			Authors:      splitAuthors(ref.Author),
			Year:         atoiOrZero(ref.Year),
			DOI:          ref.DOI,
			Unstructured: ref.Unstructured,
		})
	}
	return analysis
}

// mergeSemanticScholar ergänzt die Analyse um Semantic-Scholar-Daten.
// Regeln: der längere Titel gewinnt, die Autorenliste nur bei mindestens
// gleich vielen Einträgen, Abstract und Jahr füllen nur Lücken.
func (a *Analyzer) mergeSemanticScholar(ctx context.Context, analysis *models.PaperAnalysis) {
	details, err := a.Semantic.Details(ctx, analysis.DOI)
	if err != nil {
		// Die Analyse steht auch ohne Semantic Scholar; nur protokollieren.
		a.Logger.Warn("Semantic Scholar nicht erreichbar", zap.Error(err))
		return
	}
	if details == nil {
		return
	}

	if len(details.Title) > len(analysis.Title) {
		analysis.Title = details.Title
	}
	if len(details.Authors) >= len(analysis.Authors) && len(details.Authors) > 0 {
		authors := make([]string, 0, len(details.Authors))
		for _, au := range details.Authors {
			if au.Name != "" {
				authors = append(authors, au.Name)
			}
		}
		if len(authors) >= len(analysis.Authors) {
			analysis.Authors = authors
		}
	}
	if analysis.Abstract == "" {
		analysis.Abstract = details.Abstract
	}
	if analysis.PublicationDate == "" && details.Year != 0 {
		analysis.PublicationDate = strconv.Itoa(details.Year)
	}
}

// attachRetractionNotice prüft, ob zum Paper selbst eine Retraction-Meldung
// vorliegt. Gezählt werden nur Treffer, die per DOI oder exakt per Titel zum
// Paper passen; bloße Titelähnlichkeit reicht nicht.
func (a *Analyzer) attachRetractionNotice(ctx context.Context, analysis *models.PaperAnalysis) {
	if a.Retraction == nil || analysis.Title == "" {
		return
	}
	hits, err := a.Retraction.Search(ctx, &models.Reference{Title: analysis.Title, DOI: analysis.DOI})
	if err != nil {
		a.Logger.Warn("Retraction-Prüfung nicht möglich", zap.Error(err))
		return
	}
	for _, hit := range hits {
		if matchesPaper(&hit, analysis) {
			analysis.RetractionNotice = fmt.Sprintf(
				"Retraction notice found: %s (DOI: %s)", hit.Title, hit.DOI)
			return
		}
	}
}

func matchesPaper(hit *models.SourceHit, analysis *models.PaperAnalysis) bool {
	if hit.DOI != "" && strings.EqualFold(hit.DOI, analysis.DOI) {
		return true
	}
	return hit.Title != "" && strings.EqualFold(normalizeTitle(hit.Title), normalizeTitle(analysis.Title))
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// splitAuthors zerlegt das CrossRef-Autorenfeld einer Referenz, das als ein
// einzelner String kommt.
func splitAuthors(raw string) []string {
	var authors []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			authors = append(authors, part)
		}
	}
	return authors
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

var jatsTag = regexp.MustCompile(`</?jats:[^>]+>`)

// stripJATS entfernt die JATS-Markup-Tags, mit denen CrossRef Abstracts
// ausliefert.
func stripJATS(s string) string {
	return strings.TrimSpace(jatsTag.ReplaceAllString(s, ""))
}
