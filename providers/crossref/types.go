package crossref

// worksResponse ist die Antwort von /works/{doi}.
type worksResponse struct {
	Message Work `json:"message"`
}

// listResponse ist die Antwort von /works mit Query-Parametern.
type listResponse struct {
	Message struct {
		Items []Work `json:"items"`
	} `json:"message"`
}

// Work ist ein einzelnes CrossRef-Werk mit den Feldern, die wir auswerten.
type Work struct {
	Title          []string    `json:"title"`
	DOI            string      `json:"DOI"`
	Publisher      string      `json:"publisher"`
	ContainerTitle []string    `json:"container-title"`
	Abstract       string      `json:"abstract"`
	Author         []Author    `json:"author"`
	PublishedPrint *DateParts  `json:"published-print"`
	Issued         *DateParts  `json:"issued"`
	Reference      []Reference `json:"reference"`
}

// Author ist ein CrossRef-Autor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

// DateParts ist das CrossRef-Datumsformat [[Jahr, Monat, Tag]].
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year gibt das Jahr aus den date-parts zurück, 0 falls nicht vorhanden.
func (d *DateParts) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Reference ist ein Eintrag aus dem Literaturverzeichnis eines Werks.
type Reference struct {
	Key          string `json:"key"`
	DOI          string `json:"DOI"`
	ArticleTitle string `json:"article-title"`
	Author       string `json:"author"`
	Year         string `json:"year"`
	Unstructured string `json:"unstructured"`
}
