package codec

import (
	"reflect"
	"testing"
)

func TestEncodePlainTextUnchanged(t *testing.T) {
	for _, s := range []string{
		"",
		"Hello! Enter a paper title, DOI, or ISBN to get started.",
		"multi\nline\ntext",
		`{"looks":"like json"}`,
	} {
		got, err := Encode(s)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		if got != s {
			t.Fatalf("Encode(%q) = %q, want unchanged", s, got)
		}
	}
}

func TestRoundTripPlainText(t *testing.T) {
	in := "Error analyzing paper: not found. Please try again."
	stored, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	if got := Decode(stored); got != in {
		t.Fatalf("Decode(Encode(%q)) = %v", in, got)
	}
}

func TestRoundTripObject(t *testing.T) {
	in := map[string]any{
		"title":   "Paper A",
		"doi":     "10.1/x",
		"year":    float64(2020),
		"authors": []any{"Smith J", "Doe A"},
		"nested":  map[string]any{"ok": true},
	}
	stored, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}

	got := Decode(stored)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("object round trip mismatch:\n got %#v\nwant %#v", got, in)
	}
}

func TestRoundTripMarkup(t *testing.T) {
	in := Markup{HTML: `<div class="bot-response"><h3>Paper Information</h3></div>`}
	stored, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := Decode(stored).(Markup)
	if !ok {
		t.Fatalf("Decode returned %T, want Markup", Decode(stored))
	}
	if got.HTML != in.HTML {
		t.Fatalf("markup html = %q, want %q", got.HTML, in.HTML)
	}
}

func TestDecodeMalformedNeverRaises(t *testing.T) {
	for _, s := range []string{
		"{not valid json",
		"{}",
		`{"kind":"unknown","body":"x"}`,
		`{"kind":"markup"}`,
		`{"body":"missing kind"}`,
		"plain text",
		"",
	} {
		got := Decode(s)
		str, ok := got.(string)
		if !ok || str != s {
			t.Fatalf("Decode(%q) = %#v, want input unchanged", s, got)
		}
	}
}

func TestDecodeLegacyEnvelopeBodyMismatch(t *testing.T) {
	// kind passt, body hat die falsche Form: muss als Klartext degradieren.
	s := `{"kind":"markup","body":{"oops":1}}`
	if got := Decode(s); got != s {
		t.Fatalf("Decode(%q) = %#v, want input unchanged", s, got)
	}
}
