package providers

import (
	"context"

	"verifai/models"
)

// Source ist das Interface, das jede bibliographische Quelle (z.B. CrossRef,
// arXiv) implementieren muss. Quellen sind unabhängig und dürfen einzeln
// fehlschlagen, ohne die übrigen zu beeinflussen.
type Source interface {
	// Search sucht Kandidaten-Treffer für eine Referenz und gibt sie in
	// Quellen-Reihenfolge zurück. Eine leere Liste ist kein Fehler.
	Search(ctx context.Context, ref *models.Reference) ([]models.SourceHit, error)

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "crossref").
	Name() string
}
