package semanticscholar

// searchResponse ist die Antwort von /paper/search.
type searchResponse struct {
	Total int     `json:"total"`
	Data  []Paper `json:"data"`
}

// Paper ist ein Semantic-Scholar-Treffer mit den angefragten Feldern.
type Paper struct {
	PaperID     string `json:"paperId"`
	Title       string `json:"title"`
	Year        int    `json:"year"`
	ExternalIDs struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
}

// PaperDetails sind die erweiterten Metadaten eines Papers für die
// Paper-Analyse (inklusive Autoren und Abstract).
type PaperDetails struct {
	PaperID  string `json:"paperId"`
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Abstract string `json:"abstract"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
}
