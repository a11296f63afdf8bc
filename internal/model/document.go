package model

const (
	DocumentKindVideo    = "video"
	DocumentKindPDF      = "pdf"
	DocumentKindMarkdown = "markdown"
)

// SourceDocument is one ingest input file.
type SourceDocument struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	Segments   []Segment `json:"segments"`
	Content    string    `json:"content"`
}

// Segment is a transcript cue (Start/End in seconds) or a page of text (Page).
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Page  int     `json:"page"`
	Text  string  `json:"text"`
}
