package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/xxxsen/groundqa/internal/model"
)

type Hit struct {
	Chunk    model.Chunk
	Distance float64
}

// FlatIndex is an exhaustive Euclidean (L2) index over chunk embeddings.
// It is immutable once built and safe for concurrent queries.
type FlatIndex struct {
	dim    int
	chunks []model.Chunk
}

func Build(chunks []model.Chunk) (*FlatIndex, error) {
	idx := &FlatIndex{chunks: make([]model.Chunk, 0, len(chunks))}
	seen := make(map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %s has no embedding", chunk.ChunkID)
		}
		if i == 0 {
			idx.dim = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != idx.dim {
			return nil, fmt.Errorf("chunk %s dimension %d, want %d", chunk.ChunkID, len(chunk.Embedding), idx.dim)
		}
		if _, ok := seen[chunk.ChunkID]; ok {
			return nil, fmt.Errorf("duplicate chunk id %s", chunk.ChunkID)
		}
		seen[chunk.ChunkID] = struct{}{}
		idx.chunks = append(idx.chunks, chunk)
	}
	return idx, nil
}

func (x *FlatIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.chunks)
}

func (x *FlatIndex) Dimension() int {
	if x == nil {
		return 0
	}
	return x.dim
}

// Chunks returns the indexed chunks in insertion order.
func (x *FlatIndex) Chunks() []model.Chunk {
	if x == nil {
		return nil
	}
	return x.chunks
}

// Query returns at most k hits by increasing distance; equal distances keep
// insertion order. An empty index yields no hits and no error.
func (x *FlatIndex) Query(vector []float32, k int) ([]Hit, error) {
	if x.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(vector), x.dim)
	}
	hits := make([]Hit, len(x.chunks))
	for i := range x.chunks {
		hits[i] = Hit{Chunk: x.chunks[i], Distance: l2(vector, x.chunks[i].Embedding)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity maps an L2 distance onto (0, 1], 1 meaning identical.
func Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
