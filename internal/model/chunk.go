package model

const (
	SpanKindTime = "time"
	SpanKindPage = "page"
)

// Span locates a chunk inside its source: seconds for time-based media,
// 1-based page numbers for paged media.
type Span struct {
	Kind  string  `json:"kind"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type Chunk struct {
	ChunkID     string    `json:"chunk_id"`
	DocumentID  string    `json:"document_id"`
	Text        string    `json:"text"`
	Position    int       `json:"position"`
	Span        Span      `json:"span"`
	SourceTitle string    `json:"source_title"`
	SourceURL   string    `json:"source_url,omitempty"`
	Embedding   []float32 `json:"-"`
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
}
