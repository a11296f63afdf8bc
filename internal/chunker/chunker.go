package chunker

import (
	"fmt"
	"strings"

	"github.com/xxxsen/groundqa/internal/model"
)

// SpanMapper maps an inclusive word range back to its source location.
type SpanMapper interface {
	Span(firstWord, lastWord int) model.Span
}

type Document struct {
	ID    string
	Title string
	URL   string
	Words []string
	Spans SpanMapper
}

type Chunker struct {
	chunkSize int
	overlap   int
	minWords  int
}

func New(chunkSize, overlap, minWords int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d)", chunkSize)
	}
	if minWords < 1 || minWords > chunkSize {
		return nil, fmt.Errorf("min words must be in [1, %d]", chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap, minWords: minWords}, nil
}

func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s:%d", documentID, position)
}

// Chunk slides a chunkSize window over the document words, advancing by
// chunkSize-overlap. A trailing window shorter than minWords is dropped.
func (c *Chunker) Chunk(doc Document) []model.Chunk {
	total := len(doc.Words)
	if total == 0 {
		return nil
	}
	step := c.chunkSize - c.overlap
	var chunks []model.Chunk
	for start := 0; start < total; start += step {
		end := start + c.chunkSize
		if end > total {
			end = total
		}
		if end-start < c.minWords {
			break
		}
		position := len(chunks)
		chunk := model.Chunk{
			ChunkID:     ChunkID(doc.ID, position),
			DocumentID:  doc.ID,
			Text:        strings.Join(doc.Words[start:end], " "),
			Position:    position,
			SourceTitle: doc.Title,
			SourceURL:   doc.URL,
		}
		if doc.Spans != nil {
			chunk.Span = doc.Spans.Span(start, end-1)
		}
		chunks = append(chunks, chunk)
		if end == total {
			break
		}
	}
	return chunks
}
