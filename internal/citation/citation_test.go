package citation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/model"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		span model.Span
		want string
	}{
		{model.Span{Kind: model.SpanKindTime, Start: 75.9, End: 90}, "01:15"},
		{model.Span{Kind: model.SpanKindTime, Start: 3725, End: 3800}, "01:02:05"},
		{model.Span{Kind: model.SpanKindPage, Start: 3, End: 3}, "p.3"},
		{model.Span{Kind: model.SpanKindPage, Start: 3, End: 5}, "p.3-5"},
		{model.Span{}, ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Label(tt.span))
	}
}

func TestLink(t *testing.T) {
	time := model.Span{Kind: model.SpanKindTime, Start: 42.7}
	require.Equal(t, "https://www.youtube.com/watch?t=42&v=abc", Link("https://www.youtube.com/watch?v=abc", time))
	require.Equal(t, "https://youtu.be/abc?t=42", Link("https://youtu.be/abc?t=10", time))
	require.Equal(t, "https://x/paper.pdf", Link("https://x/paper.pdf", model.Span{Kind: model.SpanKindPage, Start: 2}))
	require.Equal(t, "", Link("", time))
}

func TestCompose(t *testing.T) {
	chunks := []model.ScoredChunk{
		{Chunk: model.Chunk{ChunkID: "a:0", DocumentID: "a", SourceTitle: "A", Span: model.Span{Kind: model.SpanKindTime, Start: 5}}, Score: 0.9},
		{Chunk: model.Chunk{ChunkID: "b:3", DocumentID: "b", SourceTitle: "B", Span: model.Span{Kind: model.SpanKindPage, Start: 2, End: 2}}, Score: 0.7},
	}
	highlights := []model.Highlight{
		{ChunkID: "b:3", Start: 0, End: 4, Text: "near"},
		{ChunkID: "b:3", Start: 10, End: 15, Text: "money"},
	}
	got := Compose(chunks, highlights)
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].Index)
	require.Equal(t, "a", got[0].DocumentID)
	require.Equal(t, "00:05", got[0].Label)
	require.Empty(t, got[0].HighlightedText)
	require.Equal(t, 2, got[1].Index)
	require.Equal(t, []string{"near", "money"}, got[1].HighlightedText)
	require.InDelta(t, 0.7, got[1].SimilarityScore, 1e-9)

	require.NotNil(t, Compose(nil, nil))
}
