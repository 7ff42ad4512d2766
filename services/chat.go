package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"verifai/codec"
	"verifai/models"
	"verifai/store"
)

// resetKeywords setzen die aktive Session zurück statt eine Analyse zu starten.
var resetKeywords = map[string]bool{
	"clear": true,
	"reset": true,
}

// ChatOrchestrator verbindet Nutzereingaben mit Analyse und Persistenz. Er
// hält pro Nutzer die aktive Session; Nutzer ohne ID bekommen die Analyse
// ohne jede Persistenz.
type ChatOrchestrator struct {
	Logger    *zap.Logger
	Store     *store.SessionStore
	Analyzer  *Analyzer
	Extractor *DocumentExtractor

	mu     sync.Mutex
	active map[string]uuid.UUID
}

// NewChatOrchestrator erstellt einen neuen Orchestrator.
func NewChatOrchestrator(logger *zap.Logger, st *store.SessionStore, analyzer *Analyzer, extractor *DocumentExtractor) *ChatOrchestrator {
	return &ChatOrchestrator{
		Logger:    logger,
		Store:     st,
		Analyzer:  analyzer,
		Extractor: extractor,
		active:    make(map[string]uuid.UUID),
	}
}

// ActiveSession gibt die aktive Session eines Nutzers zurück, falls gesetzt.
func (c *ChatOrchestrator) ActiveSession(userID string) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.active[userID]
	return id, ok
}

// SetActiveSession wechselt die aktive Session eines Nutzers.
func (c *ChatOrchestrator) SetActiveSession(userID string, sessionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[userID] = sessionID
}

// SessionDeleted wählt nach dem Löschen einer Session deterministisch die
// Nachfolgerin: die erste der verbleibenden Liste. Bleibt keine übrig, wird
// die nächste Eingabe eine frische Session anlegen.
func (c *ChatOrchestrator) SessionDeleted(userID string, deleted uuid.UUID, remaining []models.ChatSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[userID] != deleted {
		return
	}
	if len(remaining) > 0 {
		c.active[userID] = remaining[0].ID
		return
	}
	delete(c.active, userID)
}

// IsReset prüft, ob eine Eingabe die Session zurücksetzen soll.
func IsReset(input string) bool {
	return resetKeywords[strings.ToLower(strings.TrimSpace(input))]
}

// HandleInput verarbeitet eine Chat-Eingabe: Reset-Schlüsselwörter setzen die
// Session zurück, alles andere wird als Paper-Identifier analysiert. Der
// Nutzer-Turn wird vor der Analyse persistiert; eine fehlgeschlagene Analyse
// wird zur Bot-Antwort, nicht zum Fehler.
func (c *ChatOrchestrator) HandleInput(ctx context.Context, userID, input string) (*models.Message, error) {
	input = strings.TrimSpace(input)

	if userID == "" {
		// Ohne Nutzer keine Persistenz, aber volle Analyse.
		return c.analyzeOnly(ctx, input), nil
	}

	sessionID, err := c.ensureActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if IsReset(input) {
		return c.Store.ResetMessages(ctx, sessionID)
	}

	if _, err := c.Store.AppendMessage(ctx, sessionID, models.MessageTypeUser, input); err != nil {
		return nil, err
	}

	payload := c.analysisPayload(ctx, input)

	// Hat der Nutzer die Session inzwischen gewechselt oder gelöscht, wird
	// das Ergebnis verworfen statt in die falsche Session zu schreiben.
	if current, ok := c.ActiveSession(userID); !ok || current != sessionID {
		c.Logger.Info("Analyse-Ergebnis verworfen, Session nicht mehr aktiv",
			zap.String("session_id", sessionID.String()))
		return &models.Message{Type: models.MessageTypeBot, Payload: payload, Timestamp: time.Now()}, nil
	}

	return c.Store.AppendMessage(ctx, sessionID, models.MessageTypeBot, payload)
}

// HandleDocument verarbeitet ein hochgeladenes Dokument: Referenzen
// extrahieren, Bericht rendern, beide Turns persistieren. s3Link ist der
// Ablageort des Originals.
func (c *ChatOrchestrator) HandleDocument(ctx context.Context, userID, filename string, data []byte, s3Link string) (*models.DocumentAnalysis, *models.Message, error) {
	analysis := c.Extractor.Extract(filename, data)
	analysis.S3Link = s3Link

	payload := codec.Markup{HTML: renderDocumentReport(analysis)}

	if userID == "" {
		return analysis, &models.Message{Type: models.MessageTypeBot, Payload: payload, Timestamp: time.Now()}, nil
	}

	sessionID, err := c.ensureActive(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := c.Store.AppendMessage(ctx, sessionID, models.MessageTypeUser, fmt.Sprintf("Uploaded document: %s", filename)); err != nil {
		return nil, nil, err
	}
	msg, err := c.Store.AppendMessage(ctx, sessionID, models.MessageTypeBot, payload)
	if err != nil {
		return nil, nil, err
	}
	return analysis, msg, nil
}

// ensureActive liefert die aktive Session des Nutzers und legt bei Bedarf
// eine an. Eine gemerkte, aber inzwischen gelöschte Session wird verworfen.
func (c *ChatOrchestrator) ensureActive(ctx context.Context, userID string) (uuid.UUID, error) {
	if id, ok := c.ActiveSession(userID); ok {
		if _, err := c.Store.GetSession(ctx, id); err == nil {
			return id, nil
		}
	}
	session, err := c.Store.EnsureInitialSession(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	c.SetActiveSession(userID, session.ID)
	return session.ID, nil
}

// analyzeOnly liefert die Bot-Antwort ohne jede Persistenz.
func (c *ChatOrchestrator) analyzeOnly(ctx context.Context, input string) *models.Message {
	return &models.Message{
		Type:      models.MessageTypeBot,
		Payload:   c.analysisPayload(ctx, input),
		Timestamp: time.Now(),
	}
}

// analysisPayload analysiert die Eingabe und rendert den Bericht. Fehler
// werden zur Klartext-Antwort.
func (c *ChatOrchestrator) analysisPayload(ctx context.Context, input string) any {
	analysis, err := c.Analyzer.AnalyzeIdentifier(ctx, input)
	if err != nil {
		c.Logger.Warn("Analyse fehlgeschlagen", zap.String("input", input), zap.Error(err))
		return fmt.Sprintf("Sorry, I could not analyze %q. Please check the title or DOI and try again.", input)
	}
	return codec.Markup{HTML: renderPaperReport(analysis)}
}

// renderPaperReport baut den HTML-Bericht einer Paper-Analyse. Alle Werte
// werden escaped; der Bericht enthält keine Client-Eingaben im Rohformat.
func renderPaperReport(a *models.PaperAnalysis) string {
	var b strings.Builder
	b.WriteString("<div class=\"paper-report\">")
	title := a.Title
	if title == "" {
		title = "Untitled Paper"
	}
	fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(title))
	if len(a.Authors) > 0 {
		fmt.Fprintf(&b, "<p class=\"authors\">%s</p>", html.EscapeString(strings.Join(a.Authors, ", ")))
	}
	if a.Journal != "" || a.PublicationDate != "" {
		fmt.Fprintf(&b, "<p class=\"venue\">%s %s</p>",
			html.EscapeString(a.Journal), html.EscapeString(a.PublicationDate))
	}
	if a.DOI != "" {
		fmt.Fprintf(&b, "<p class=\"doi\">DOI: <a href=\"https://doi.org/%s\">%s</a></p>",
			html.EscapeString(a.DOI), html.EscapeString(a.DOI))
	}
	if a.RetractionNotice != "" {
		fmt.Fprintf(&b, "<p class=\"retraction-warning\">⚠️ %s</p>", html.EscapeString(a.RetractionNotice))
	}
	if a.Abstract != "" {
		fmt.Fprintf(&b, "<p class=\"abstract\">%s</p>", html.EscapeString(a.Abstract))
	}
	fmt.Fprintf(&b, "<p class=\"ref-count\">%d references found.</p>", len(a.References))
	b.WriteString("</div>")
	return b.String()
}

// renderDocumentReport baut den HTML-Bericht einer Dokument-Analyse.
func renderDocumentReport(a *models.DocumentAnalysis) string {
	var b strings.Builder
	b.WriteString("<div class=\"document-report\">")
	fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(a.Title))
	if a.DOI != "" {
		fmt.Fprintf(&b, "<p class=\"doi\">DOI: %s</p>", html.EscapeString(a.DOI))
	}
	fmt.Fprintf(&b, "<p class=\"ref-count\">%d references extracted.</p>", len(a.References))
	b.WriteString("</div>")
	return b.String()
}
