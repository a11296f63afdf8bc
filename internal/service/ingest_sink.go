package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/index"
	"github.com/xxxsen/groundqa/internal/model"
)

type snapshotSink struct {
	snapshot *index.Snapshot
}

// NewSnapshotSink writes one full snapshot build per ingest run.
func NewSnapshotSink(snapshot *index.Snapshot) ChunkSink {
	return &snapshotSink{snapshot: snapshot}
}

func (s *snapshotSink) Write(ctx context.Context, buildID string, docs []DocumentChunks) error {
	var all []model.Chunk
	for _, d := range docs {
		all = append(all, d.Chunks...)
	}
	manifest, err := s.snapshot.Write(ctx, buildID, all)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("snapshot written",
		zap.String("build_id", manifest.BuildID),
		zap.Int("count", manifest.Count),
		zap.Int("dimension", manifest.Dimension),
	)
	return nil
}

// ChunkReplacer is implemented by repo.ChunkRepo.
type ChunkReplacer interface {
	ReplaceDocument(ctx context.Context, documentID string, chunks []model.Chunk) error
}

type repoSink struct {
	repo ChunkReplacer
}

// NewRepoSink replaces each ingested document's rows in the chunk table.
func NewRepoSink(repo ChunkReplacer) ChunkSink {
	return &repoSink{repo: repo}
}

func (s *repoSink) Write(ctx context.Context, buildID string, docs []DocumentChunks) error {
	logger := logutil.GetLogger(ctx).With(zap.String("build_id", buildID))
	for _, d := range docs {
		if len(d.Chunks) == 0 {
			logger.Warn("document has no embedded chunks, keeping stored rows", zap.String("document_id", d.DocumentID))
			continue
		}
		if err := s.repo.ReplaceDocument(ctx, d.DocumentID, d.Chunks); err != nil {
			return err
		}
	}
	return nil
}
