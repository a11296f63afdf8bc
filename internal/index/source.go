package index

import (
	"context"
	"fmt"

	"github.com/xxxsen/groundqa/internal/model"
)

// ChunkSource lists every persisted chunk together with its embedding.
type ChunkSource interface {
	ListChunks(ctx context.Context) ([]model.Chunk, error)
}

type sourceLoader struct {
	source ChunkSource
}

// NewSourceLoader adapts a database-backed chunk table to a Loader. It has no
// cheap version marker, so every reload rebuilds.
func NewSourceLoader(source ChunkSource) Loader {
	return &sourceLoader{source: source}
}

func (l *sourceLoader) Version(ctx context.Context) (string, error) {
	return "", nil
}

func (l *sourceLoader) Load(ctx context.Context) (*FlatIndex, string, error) {
	chunks, err := l.source.ListChunks(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list chunks: %w", err)
	}
	idx, err := Build(chunks)
	if err != nil {
		return nil, "", err
	}
	return idx, "", nil
}
