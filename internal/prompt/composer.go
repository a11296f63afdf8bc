package prompt

import "strings"

const systemInstruction = `You answer questions using only the numbered sources provided.
Rules:
- Cite every claim with the index of its source, for example [Doc 2].
- When you rely on a source, quote its exact words in double quotes instead of paraphrasing.
- Do not alter quoted text: keep wording, numbers and filler words as they appear in the source.
- If the sources do not contain the answer, say so plainly.`

type Prompt struct {
	System string
	User   string
}

// Compose renders a generation request from the assembled context and the
// user's question.
func Compose(ctx *Context, query string) Prompt {
	var sb strings.Builder
	if history := ctx.RenderHistory(); history != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(history)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Sources:\n")
	if sources := ctx.RenderSources(); sources != "" {
		sb.WriteString(sources)
	} else {
		sb.WriteString("(none)")
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(strings.TrimSpace(query))
	return Prompt{System: systemInstruction, User: sb.String()}
}
