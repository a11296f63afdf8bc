package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/model"
)

func chunkWith(id string, vec ...float32) model.Chunk {
	return model.Chunk{ChunkID: id, DocumentID: "doc", Text: "text " + id, Embedding: vec}
}

func TestBuild_Validation(t *testing.T) {
	_, err := Build([]model.Chunk{chunkWith("a", 1, 2), chunkWith("b", 1)})
	require.Error(t, err)
	_, err = Build([]model.Chunk{chunkWith("a", 1, 2), chunkWith("a", 3, 4)})
	require.Error(t, err)
	_, err = Build([]model.Chunk{{ChunkID: "a"}})
	require.Error(t, err)

	idx, err := Build(nil)
	require.NoError(t, err)
	require.Equal(t, 0, idx.Len())
}

func TestQuery_OrderingAndLimit(t *testing.T) {
	idx, err := Build([]model.Chunk{
		chunkWith("far", 10, 10),
		chunkWith("near", 1, 0),
		chunkWith("exact", 0, 0),
		chunkWith("mid", 3, 4),
	})
	require.NoError(t, err)

	hits, err := idx.Query([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "exact", hits[0].Chunk.ChunkID)
	require.InDelta(t, 0, hits[0].Distance, 1e-9)
	require.Equal(t, "near", hits[1].Chunk.ChunkID)
	require.Equal(t, "mid", hits[2].Chunk.ChunkID)
	require.InDelta(t, 5, hits[2].Distance, 1e-9)
	for i := 1; i < len(hits); i++ {
		require.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}

	hits, err = idx.Query([]float32{0, 0}, 100)
	require.NoError(t, err)
	require.Len(t, hits, 4)
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	var chunks []model.Chunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, chunkWith(fmt.Sprintf("c%d", i), 1, 1))
	}
	idx, err := Build(chunks)
	require.NoError(t, err)
	hits, err := idx.Query([]float32{0, 0}, 5)
	require.NoError(t, err)
	for i, hit := range hits {
		require.Equal(t, fmt.Sprintf("c%d", i), hit.Chunk.ChunkID)
	}
}

func TestQuery_EmptyAndInvalid(t *testing.T) {
	var nilIdx *FlatIndex
	hits, err := nilIdx.Query([]float32{1}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)

	idx, err := Build([]model.Chunk{chunkWith("a", 1, 2)})
	require.NoError(t, err)
	hits, err = idx.Query([]float32{1, 2}, 0)
	require.NoError(t, err)
	require.Empty(t, hits)

	_, err = idx.Query([]float32{1, 2, 3}, 1)
	require.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	require.Equal(t, 1.0, Similarity(0))
	require.InDelta(t, 0.5, Similarity(1), 1e-9)
	require.Greater(t, Similarity(0.1), Similarity(0.2))
	require.Equal(t, 1.0, Similarity(-1))
}
