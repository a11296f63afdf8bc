package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/ai"
	"github.com/xxxsen/groundqa/internal/index"
	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

// Searcher is the serving index, usually an *index.Holder.
type Searcher interface {
	Query(vector []float32, k int) ([]index.Hit, error)
	Len() int
}

type Retriever struct {
	embedder ai.IEmbedder
	index    Searcher
}

func New(embedder ai.IEmbedder, idx Searcher) *Retriever {
	return &Retriever{embedder: embedder, index: idx}
}

// Retrieve returns up to k chunks closest to query. An empty index yields no
// chunks without calling the embedder; an embedding failure is an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]model.ScoredChunk, error) {
	logger := logutil.GetLogger(ctx)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", appErr.ErrInvalid)
	}
	if r.index.Len() == 0 {
		logger.Warn("retrieval skipped, index is empty")
		return nil, nil
	}
	vector, err := r.embedder.Embed(ctx, query, model.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrEmbeddingFailure, err)
	}
	hits, err := r.index.Query(vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrRetrievalUnavailable, err)
	}
	out := make([]model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		out = append(out, model.ScoredChunk{
			Chunk:    hit.Chunk,
			Distance: hit.Distance,
			Score:    index.Similarity(hit.Distance),
		})
	}
	logger.Debug("retrieved chunks", zap.Int("k", k), zap.Int("hits", len(out)))
	return out, nil
}
