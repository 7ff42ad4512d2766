// Package codec kodiert Nachrichten-Payloads in eine Text-Form, die der
// Message-Store ablegen kann, und stellt sie beim Laden wieder her.
//
// Reiner Text passiert den Codec unverändert. Alles andere wird in einen
// getaggten Envelope {"kind": ..., "body": ...} verpackt: gerenderte
// Markup-Inhalte als statischer HTML-String (verlustfrei in der Darstellung,
// die ursprüngliche Interaktivität wird bewusst nicht rekonstruiert),
// beliebige strukturierte Werte als JSON (verlustfrei).
package codec

import (
	"encoding/json"
	"strings"
)

// Envelope-Tags. Der Typ eines gespeicherten Payloads wird ausschließlich
// über das kind-Feld erkannt, nie über die Form des Inhalts.
const (
	KindMarkup = "markup"
	KindObject = "object"
)

// Markup ist ein render-fertiger, statischer HTML-Inhalt. Beim Dekodieren
// eines markup-Envelopes entsteht wieder ein Markup-Wert, der das gespeicherte
// HTML unverändert trägt.
type Markup struct {
	HTML string `json:"html"`
}

type envelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// Encode wandelt ein Payload in die speicherbare String-Form um.
// Strings passieren unverändert (Fast Path ohne Envelope).
func Encode(payload any) (string, error) {
	switch v := payload.(type) {
	case string:
		return v, nil
	case Markup:
		return encodeEnvelope(KindMarkup, v.HTML)
	case *Markup:
		return encodeEnvelope(KindMarkup, v.HTML)
	default:
		return encodeEnvelope(KindObject, payload)
	}
}

func encodeEnvelope(kind string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(envelope{Kind: kind, Body: raw})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decode stellt das ursprüngliche Payload aus der gespeicherten Form wieder
// her. Alles, was kein erkennbarer Envelope ist (Parse-Fehler eingeschlossen),
// wird unverändert als Text zurückgegeben; Decode schlägt nie fehl.
func Decode(stored string) any {
	trimmed := strings.TrimSpace(stored)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return stored
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return stored
	}

	switch env.Kind {
	case KindMarkup:
		var html string
		if err := json.Unmarshal(env.Body, &html); err != nil {
			return stored
		}
		return Markup{HTML: html}
	case KindObject:
		var value any
		if err := json.Unmarshal(env.Body, &value); err != nil {
			return stored
		}
		return value
	default:
		// Zufällig JSON-förmiger Klartext, z.B. Altdaten.
		return stored
	}
}
