package chunker

import (
	"strings"

	"github.com/xxxsen/groundqa/internal/model"
	"github.com/xxxsen/groundqa/internal/pkg/textutil"
)

type wordLocator struct {
	start float64
	end   float64
	page  int
}

type segmentMapper struct {
	kind     string
	locators []wordLocator
}

func (m *segmentMapper) Span(firstWord, lastWord int) model.Span {
	if len(m.locators) == 0 {
		return model.Span{}
	}
	if firstWord < 0 {
		firstWord = 0
	}
	if lastWord >= len(m.locators) {
		lastWord = len(m.locators) - 1
	}
	first, last := m.locators[firstWord], m.locators[lastWord]
	if m.kind == model.SpanKindPage {
		return model.Span{Kind: model.SpanKindPage, Start: float64(first.page), End: float64(last.page)}
	}
	return model.Span{Kind: model.SpanKindTime, Start: first.start, End: last.end}
}

// FromSource flattens a source document into words, carrying each word's
// segment locator so chunk spans can be recovered.
func FromSource(src model.SourceDocument) Document {
	doc := Document{ID: src.DocumentID, Title: src.Title, URL: src.URL}
	if src.Kind == model.DocumentKindMarkdown {
		doc.Words = strings.Fields(textutil.MarkdownToText(src.Content))
		return doc
	}
	if len(src.Segments) == 0 {
		doc.Words = strings.Fields(src.Content)
		return doc
	}
	kind := model.SpanKindTime
	if src.Kind == model.DocumentKindPDF {
		kind = model.SpanKindPage
	}
	mapper := &segmentMapper{kind: kind}
	for _, seg := range src.Segments {
		for _, word := range strings.Fields(seg.Text) {
			doc.Words = append(doc.Words, word)
			mapper.locators = append(mapper.locators, wordLocator{start: seg.Start, end: seg.End, page: seg.Page})
		}
	}
	doc.Spans = mapper
	return doc
}
