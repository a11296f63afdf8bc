package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/model"
)

func history(n int) []model.Message {
	out := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		out = append(out, model.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	return out
}

func TestAssemble_BoundsTurns(t *testing.T) {
	a := NewAssembler(10, 1000)
	for _, n := range []int{0, 3, 10, 11, 57} {
		ctx := a.Assemble(nil, history(n))
		require.LessOrEqual(t, len(ctx.Turns), 10)
		if n > 0 {
			require.Equal(t, fmt.Sprintf("m%d", n-1), ctx.Turns[len(ctx.Turns)-1].Content)
		}
	}
	ctx := a.Assemble(nil, history(12))
	require.Equal(t, "m2", ctx.Turns[0].Content)
}

func TestAssemble_TruncatesAndSanitizes(t *testing.T) {
	a := NewAssembler(10, 5)
	ctx := a.Assemble(nil, []model.Message{
		{Role: model.RoleUser, Content: "**héllo** world"},
		{Role: model.RoleAssistant, Content: "**bold**"},
	})
	require.Equal(t, "**hél...", ctx.Turns[0].Content)
	require.Equal(t, "bold", ctx.Turns[1].Content)
}

func TestCompose(t *testing.T) {
	a := NewAssembler(10, 1000)
	chunks := []model.ScoredChunk{
		{Chunk: model.Chunk{ChunkID: "v:0", SourceTitle: "Options 101", Text: "gamma is highest near the money", Span: model.Span{Kind: model.SpanKindTime, Start: 65}}},
		{Chunk: model.Chunk{ChunkID: "p:2", SourceTitle: "Paper", Text: "vega measures volatility", Span: model.Span{Kind: model.SpanKindPage, Start: 4, End: 5}}},
	}
	ctx := a.Assemble(chunks, []model.Message{
		{Role: model.RoleUser, Content: "what is delta?"},
		{Role: model.RoleAssistant, Content: "delta is price sensitivity"},
	})
	p := Compose(ctx, " where is gamma highest? ")
	require.Contains(t, p.System, "[Doc 2]")
	want := strings.Join([]string{
		"Conversation so far:",
		"User: what is delta?",
		"Assistant: delta is price sensitivity",
		"",
		"Sources:",
		"[Doc 1] Options 101 (01:05)",
		"gamma is highest near the money",
		"",
		"[Doc 2] Paper (p.4-5)",
		"vega measures volatility",
		"",
		"Question: where is gamma highest?",
	}, "\n")
	require.Equal(t, want, p.User)
}

func TestCompose_NoSources(t *testing.T) {
	p := Compose(NewAssembler(10, 100).Assemble(nil, nil), "q")
	require.Equal(t, "Sources:\n(none)\n\nQuestion: q", p.User)
}
