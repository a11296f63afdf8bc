package prompt

import (
	"fmt"
	"strings"

	"github.com/xxxsen/groundqa/internal/citation"
	"github.com/xxxsen/groundqa/internal/model"
	"github.com/xxxsen/groundqa/internal/pkg/textutil"
)

const truncationMarker = "..."

// Source is a retrieved chunk with the 1-based index the prompt refers to it by.
type Source struct {
	Index int
	Chunk model.ScoredChunk
}

// Context is the bounded grounding material for one question.
type Context struct {
	Turns   []model.Message
	Sources []Source
}

// Assembler bounds history by message count first, then by per-message
// length, so prompt size is independent of conversation length.
type Assembler struct {
	maxTurns int
	maxChars int
}

func NewAssembler(maxTurns, maxChars int) *Assembler {
	return &Assembler{maxTurns: maxTurns, maxChars: maxChars}
}

func (a *Assembler) Assemble(chunks []model.ScoredChunk, history []model.Message) *Context {
	if a.maxTurns >= 0 && len(history) > a.maxTurns {
		history = history[len(history)-a.maxTurns:]
	}
	turns := make([]model.Message, 0, len(history))
	for _, m := range history {
		content := m.Content
		if m.Role == model.RoleAssistant {
			content = sanitize(content)
		}
		m.Content = truncate(content, a.maxChars)
		turns = append(turns, m)
	}
	sources := make([]Source, 0, len(chunks))
	for i, c := range chunks {
		sources = append(sources, Source{Index: i + 1, Chunk: c})
	}
	return &Context{Turns: turns, Sources: sources}
}

// sanitize strips markup a previous answer may carry so it reads as prose.
func sanitize(content string) string {
	return textutil.MarkdownToText(content)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + truncationMarker
}

func (c *Context) RenderHistory() string {
	var sb strings.Builder
	for _, m := range c.Turns {
		speaker := "User"
		if m.Role == model.RoleAssistant {
			speaker = "Assistant"
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Context) RenderSources() string {
	blocks := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		chunk := s.Chunk.Chunk
		header := fmt.Sprintf("[Doc %d] %s", s.Index, chunk.SourceTitle)
		if label := citation.Label(chunk.Span); label != "" {
			header += " (" + label + ")"
		}
		blocks = append(blocks, header+"\n"+chunk.Text)
	}
	return strings.Join(blocks, "\n\n")
}
