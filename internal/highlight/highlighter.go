package highlight

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/model"
)

// Candidates outside [minFuzzyTokens, maxFuzzyTokens] only match exactly or
// after normalization.
const (
	minFuzzyTokens = 3
	maxFuzzyTokens = 64
)

type Config struct {
	MinQuoteChars int
	MaxQuotes     int
	Threshold     float64
	Scorer        Scorer
}

// Highlighter finds the source regions an answer quotes.
type Highlighter struct {
	cfg       Config
	extracted atomic.Int64
	matched   atomic.Int64
}

func New(cfg Config) *Highlighter {
	if cfg.Scorer == nil {
		cfg.Scorer = EditScorer{}
	}
	return &Highlighter{cfg: cfg}
}

// Stats reports the running totals of extracted and matched quotes.
func (h *Highlighter) Stats() (extracted int64, matched int64) {
	return h.extracted.Load(), h.matched.Load()
}

type preparedChunk struct {
	chunk  *model.Chunk
	norm   *normText
	tokens []token
}

// Highlight extracts quotes from answer and resolves each onto the first chunk
// that contains it: exact matches across all chunks are preferred over
// normalized ones, which are preferred over fuzzy ones. Unmatched quotes are
// dropped. A cancelled ctx stops matching and returns what was resolved so
// far.
func (h *Highlighter) Highlight(ctx context.Context, answer string, chunks []model.ScoredChunk) []model.Highlight {
	quotes := Extract(answer, h.cfg.MinQuoteChars, h.cfg.MaxQuotes)
	prepared := make([]*preparedChunk, len(chunks))
	for i := range chunks {
		prepared[i] = &preparedChunk{chunk: &chunks[i].Chunk}
	}
	out := make([]model.Highlight, 0, len(quotes))
	for _, q := range quotes {
		if ctx.Err() != nil {
			break
		}
		if hl, ok := h.resolve(ctx, q, prepared); ok {
			out = append(out, hl)
		}
	}
	h.extracted.Add(int64(len(quotes)))
	h.matched.Add(int64(len(out)))

	logger := logutil.GetLogger(ctx).With(zap.Int("quotes_extracted", len(quotes)), zap.Int("quotes_matched", len(out)))
	if err := ctx.Err(); err != nil {
		logger.Warn("quote highlighting interrupted", zap.Error(err))
	} else if len(quotes) > 0 && len(out) == 0 {
		logger.Warn("no quoted text matched any source chunk")
	} else {
		logger.Info("quote highlighting finished")
	}
	return out
}

func (h *Highlighter) resolve(ctx context.Context, quote string, chunks []*preparedChunk) (model.Highlight, bool) {
	for _, c := range chunks {
		if idx := strings.Index(c.chunk.Text, quote); idx >= 0 {
			return h.build(c.chunk, quote, idx, idx+len(quote), 1, true), true
		}
	}
	nq := normalize(quote)
	for _, c := range chunks {
		if c.norm == nil {
			c.norm = normalize(c.chunk.Text)
			c.tokens = c.norm.tokens()
		}
		if start, end, ok := c.norm.find(nq.text); ok {
			return h.build(c.chunk, quote, start, end, 1, false), true
		}
	}
	qTokens := tokenTexts(nq.tokens())
	if len(qTokens) < minFuzzyTokens || len(qTokens) > maxFuzzyTokens {
		return model.Highlight{}, false
	}
	for _, c := range chunks {
		if ctx.Err() != nil {
			return model.Highlight{}, false
		}
		if start, end, score, ok := h.fuzzy(qTokens, c.tokens); ok {
			return h.build(c.chunk, quote, start, end, score, false), true
		}
	}
	return model.Highlight{}, false
}

// fuzzy slides windows of roughly the candidate's length over the chunk
// tokens and keeps the best one at or above the threshold. Earlier windows win
// ties. A window is only scored when the scorer's bound, computed from the
// running token overlap, can still reach the threshold and the best so far.
func (h *Highlighter) fuzzy(candidate []string, tokens []token) (int, int, float64, bool) {
	n := len(candidate)
	slack := max(1, n/5)
	texts := tokenTexts(tokens)
	need := make(map[string]int, n)
	for _, t := range candidate {
		need[t]++
	}
	bestScore := -1.0
	bestStart, bestEnd := 0, 0
	for size := max(1, n-slack); size <= n+slack && size <= len(texts); size++ {
		have := make(map[string]int, n)
		shared := 0
		add := func(t string) {
			if have[t] < need[t] {
				shared++
			}
			have[t]++
		}
		remove := func(t string) {
			have[t]--
			if have[t] < need[t] {
				shared--
			}
		}
		for j := 0; j < size; j++ {
			add(texts[j])
		}
		for i := 0; i+size <= len(texts); i++ {
			if i > 0 {
				remove(texts[i-1])
				add(texts[i+size-1])
			}
			bound := h.cfg.Scorer.Bound(shared, n, size)
			if bound < h.cfg.Threshold || bound < bestScore {
				continue
			}
			score := h.cfg.Scorer.Score(candidate, texts[i:i+size])
			if score > bestScore || (score == bestScore && tokens[i].start < bestStart) {
				bestScore = score
				bestStart, bestEnd = tokens[i].start, tokens[i+size-1].end
			}
		}
	}
	if bestScore < h.cfg.Threshold {
		return 0, 0, 0, false
	}
	return bestStart, bestEnd, bestScore, true
}

func (h *Highlighter) build(c *model.Chunk, quote string, start, end int, score float64, exact bool) model.Highlight {
	return model.Highlight{
		ChunkID: c.ChunkID,
		Start:   start,
		End:     end,
		Text:    c.Text[start:end],
		Quote:   quote,
		Score:   score,
		Exact:   exact,
	}
}
