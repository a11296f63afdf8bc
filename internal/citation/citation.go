package citation

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/xxxsen/groundqa/internal/model"
)

// Label renders a span for display: "mm:ss" or "hh:mm:ss" for time spans,
// "p.N" or "p.N-M" for page spans.
func Label(span model.Span) string {
	switch span.Kind {
	case model.SpanKindTime:
		return clock(int(span.Start))
	case model.SpanKindPage:
		start, end := int(span.Start), int(span.End)
		if end <= start {
			return fmt.Sprintf("p.%d", start)
		}
		return fmt.Sprintf("p.%d-%d", start, end)
	default:
		return ""
	}
}

func clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Link deep-links time spans by setting t=<start seconds>. Other spans and
// unparsable URLs are returned unchanged.
func Link(rawURL string, span model.Span) string {
	if rawURL == "" || span.Kind != model.SpanKindTime {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("t", strconv.Itoa(int(span.Start)))
	u.RawQuery = q.Encode()
	return u.String()
}

// Compose pairs every retrieved chunk with its highlights. Citations keep the
// chunk order used in the prompt, so Index matches the "[Doc N]" references.
func Compose(chunks []model.ScoredChunk, highlights []model.Highlight) []model.Citation {
	byChunk := make(map[string][]model.Highlight, len(highlights))
	for _, h := range highlights {
		byChunk[h.ChunkID] = append(byChunk[h.ChunkID], h)
	}
	out := make([]model.Citation, 0, len(chunks))
	for i, sc := range chunks {
		c := sc.Chunk
		item := model.Citation{
			Index:           i + 1,
			ChunkID:         c.ChunkID,
			DocumentID:      c.DocumentID,
			Title:           c.SourceTitle,
			URL:             Link(c.SourceURL, c.Span),
			Label:           Label(c.Span),
			Span:            c.Span,
			SimilarityScore: sc.Score,
		}
		for _, h := range byChunk[c.ChunkID] {
			item.Highlights = append(item.Highlights, h)
			item.HighlightedText = append(item.HighlightedText, h.Text)
		}
		out = append(out, item)
	}
	return out
}
