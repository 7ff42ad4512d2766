package arxiv

// feed ist der Atom-Feed, den die arXiv-API zurückliefert.
type feed struct {
	Entries []entry `xml:"entry"`
}

// entry ist ein einzelner Treffer im Atom-Feed.
type entry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Links     []link `xml:"link"`
}

type link struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}
