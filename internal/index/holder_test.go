package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/model"
)

type stubSource struct {
	chunks []model.Chunk
	err    error
	calls  int
}

func (s *stubSource) ListChunks(ctx context.Context) ([]model.Chunk, error) {
	s.calls++
	return s.chunks, s.err
}

func TestHolder_EmptyByDefault(t *testing.T) {
	h := NewHolder(nil, "")
	require.Equal(t, 0, h.Len())
	hits, err := h.Query([]float32{1, 2}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestHolder_ReloadSnapshotSwapsOnNewBuild(t *testing.T) {
	ctx := context.Background()
	snap := NewSnapshot(newLocalStore(t), "index")
	h := NewHolder(nil, "")

	swapped, err := h.Reload(ctx, snap)
	require.NoError(t, err)
	require.True(t, swapped)
	require.Equal(t, 0, h.Len())

	_, err = snap.Write(ctx, "b1", sampleChunks())
	require.NoError(t, err)
	swapped, err = h.Reload(ctx, snap)
	require.NoError(t, err)
	require.True(t, swapped)
	require.Equal(t, 2, h.Len())
	require.Equal(t, "b1", h.Version())

	swapped, err = h.Reload(ctx, snap)
	require.NoError(t, err)
	require.False(t, swapped)
}

func TestHolder_SourceLoaderAlwaysReloads(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{chunks: sampleChunks()}
	h := NewHolder(nil, "")
	loader := NewSourceLoader(src)
	for i := 0; i < 2; i++ {
		swapped, err := h.Reload(ctx, loader)
		require.NoError(t, err)
		require.True(t, swapped)
	}
	require.Equal(t, 2, src.calls)

	src.err = errors.New("db down")
	_, err := h.Reload(ctx, loader)
	require.Error(t, err)
	require.Equal(t, 2, h.Len())
}

func TestHolder_ConcurrentQueryDuringSwap(t *testing.T) {
	idx, err := Build(sampleChunks())
	require.NoError(t, err)
	h := NewHolder(idx, "a")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hits, err := h.Query([]float32{0.1, 0.2, 0.3}, 1)
				assert.NoError(t, err)
				assert.Len(t, hits, 1)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		h.Swap(idx, "b")
	}
	wg.Wait()
}
