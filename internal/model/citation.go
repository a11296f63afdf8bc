package model

// Highlight is a region of a chunk's text confirmed to be quoted by an answer.
// Start and End are byte offsets into Chunk.Text.
type Highlight struct {
	ChunkID string  `json:"chunk_id"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Text    string  `json:"text"`
	Quote   string  `json:"quote"`
	Score   float64 `json:"score"`
	Exact   bool    `json:"exact"`
}

type Citation struct {
	Index           int         `json:"index"`
	ChunkID         string      `json:"chunk_id"`
	DocumentID      string      `json:"document_id"`
	Title           string      `json:"title"`
	URL             string      `json:"url,omitempty"`
	Label           string      `json:"label"`
	Span            Span        `json:"span"`
	SimilarityScore float64     `json:"similarity_score"`
	HighlightedText []string    `json:"highlighted_text,omitempty"`
	Highlights      []Highlight `json:"highlights,omitempty"`
}
