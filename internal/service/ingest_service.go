package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xxxsen/groundqa/internal/ai"
	"github.com/xxxsen/groundqa/internal/chunker"
	"github.com/xxxsen/groundqa/internal/model"
)

// ChunkSink persists the chunks of one ingest run.
type ChunkSink interface {
	Write(ctx context.Context, buildID string, docs []DocumentChunks) error
}

type DocumentChunks struct {
	DocumentID string
	Chunks     []model.Chunk
}

type IngestConfig struct {
	Concurrency       int
	RequestsPerSecond float64
}

type IngestStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Embedded  int `json:"embedded"`
	Skipped   int `json:"skipped"`
}

type IngestService struct {
	chunker  *chunker.Chunker
	embedder ai.IEmbedder
	sink     ChunkSink
	cfg      IngestConfig
}

func NewIngestService(c *chunker.Chunker, embedder ai.IEmbedder, sink ChunkSink, cfg IngestConfig) *IngestService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &IngestService{chunker: c, embedder: embedder, sink: sink, cfg: cfg}
}

// LoadDocuments reads every *.json source document under dir, in name order.
// Unreadable files are logged and skipped.
func LoadDocuments(ctx context.Context, dir string) ([]model.SourceDocument, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	logger := logutil.GetLogger(ctx)
	docs := make([]model.SourceDocument, 0, len(files))
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			logger.Warn("read source document failed", zap.String("file", file), zap.Error(err))
			continue
		}
		var doc model.SourceDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.Warn("decode source document failed", zap.String("file", file), zap.Error(err))
			continue
		}
		if strings.TrimSpace(doc.DocumentID) == "" {
			doc.DocumentID = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ingest chunks and embeds docs, then hands the result to the sink. A chunk
// that fails to embed is logged and left out; only cancellation or a sink
// failure aborts the run.
func (s *IngestService) Ingest(ctx context.Context, buildID string, docs []model.SourceDocument) (*IngestStats, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("build_id", buildID))
	limit := rate.Inf
	if s.cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(s.cfg.RequestsPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	stats := &IngestStats{Documents: len(docs)}
	var skipped atomic.Int64
	results := make([]DocumentChunks, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, src := range docs {
		chunks := s.chunker.Chunk(chunker.FromSource(src))
		stats.Chunks += len(chunks)
		results[i] = DocumentChunks{DocumentID: src.DocumentID, Chunks: chunks}
		for j := range chunks {
			chunk := &results[i].Chunks[j]
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				vec, err := s.embedder.Embed(gctx, chunk.Text, model.TaskTypeDocument)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					skipped.Add(1)
					logger.Warn("embed chunk failed, skipped", zap.String("chunk_id", chunk.ChunkID), zap.Error(err))
					return nil
				}
				chunk.Embedding = vec
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	for i := range results {
		kept := results[i].Chunks[:0]
		for _, c := range results[i].Chunks {
			if len(c.Embedding) > 0 {
				kept = append(kept, c)
			}
		}
		results[i].Chunks = kept
		stats.Embedded += len(kept)
	}
	stats.Skipped = int(skipped.Load())
	if err := s.sink.Write(ctx, buildID, results); err != nil {
		return nil, fmt.Errorf("write chunks: %w", err)
	}
	logger.Info("ingest finished",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("embedded", stats.Embedded),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}
