package index

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/config"
	"github.com/xxxsen/groundqa/internal/filestore"
	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

func newLocalStore(t *testing.T) filestore.Store {
	t.Helper()
	store, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	return store
}

func sampleChunks() []model.Chunk {
	return []model.Chunk{
		{
			ChunkID: "vid:0", DocumentID: "vid", Text: "gamma is highest near the money", Position: 0,
			Span:        model.Span{Kind: model.SpanKindTime, Start: 12, End: 95.5},
			SourceTitle: "Options Greeks", SourceURL: "https://www.youtube.com/watch?v=abc",
			Embedding: []float32{0.1, 0.2, 0.3},
		},
		{
			ChunkID: "paper:0", DocumentID: "paper", Text: "volatility smile", Position: 0,
			Span:        model.Span{Kind: model.SpanKindPage, Start: 3, End: 4},
			SourceTitle: "Smile Dynamics",
			Embedding:   []float32{-1, 0, 2.5},
		},
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	snap := NewSnapshot(newLocalStore(t), "index")

	manifest, err := snap.Write(ctx, "build-1", sampleChunks())
	require.NoError(t, err)
	require.Equal(t, 2, manifest.Count)
	require.Equal(t, 3, manifest.Dimension)

	version, err := snap.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, "build-1", version)

	idx, loaded, err := snap.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "build-1", loaded)
	require.Equal(t, sampleChunks(), idx.Chunks())
}

func TestSnapshot_MissingIsEmpty(t *testing.T) {
	ctx := context.Background()
	snap := NewSnapshot(newLocalStore(t), "index")
	idx, version, err := snap.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "", version)
	require.Equal(t, 0, idx.Len())

	version, err = snap.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, "", version)
}

func TestSnapshot_TruncatedMetadata(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)
	snap := NewSnapshot(store, "index")
	_, err := snap.Write(ctx, "b1", sampleChunks())
	require.NoError(t, err)

	idx, err := Build(sampleChunks()[:1])
	require.NoError(t, err)
	var meta bytes.Buffer
	require.NoError(t, EncodeChunks(&meta, idx))
	require.NoError(t, store.Save(ctx, "index/builds/b1/chunks.jsonl", bytes.NewReader(meta.Bytes()), int64(meta.Len())))

	_, _, err = snap.Load(ctx)
	require.ErrorIs(t, err, appErr.ErrSnapshotMismatch)
}

func TestDecode_Mismatches(t *testing.T) {
	idx, err := Build(sampleChunks())
	require.NoError(t, err)
	var emb, meta bytes.Buffer
	require.NoError(t, EncodeEmbeddings(&emb, idx))
	require.NoError(t, EncodeChunks(&meta, idx))

	_, err = Decode(bytes.NewReader(emb.Bytes()), bytes.NewReader(meta.Bytes()), 3)
	require.ErrorIs(t, err, appErr.ErrSnapshotMismatch)

	truncated := emb.Bytes()[:emb.Len()-4]
	_, err = Decode(bytes.NewReader(truncated), bytes.NewReader(meta.Bytes()), 2)
	require.ErrorIs(t, err, appErr.ErrSnapshotMismatch)

	extra := append(append([]byte{}, emb.Bytes()...), 0, 0, 0, 0)
	_, err = Decode(bytes.NewReader(extra), bytes.NewReader(meta.Bytes()), 2)
	require.ErrorIs(t, err, appErr.ErrSnapshotMismatch)

	bad := append([]byte("XXXX"), emb.Bytes()[4:]...)
	_, err = Decode(bytes.NewReader(bad), bytes.NewReader(meta.Bytes()), 2)
	require.ErrorIs(t, err, appErr.ErrSnapshotMismatch)

	got, err := Decode(bytes.NewReader(emb.Bytes()), bytes.NewReader(meta.Bytes()), 2)
	require.NoError(t, err)
	require.Equal(t, idx.Chunks(), got.Chunks())
}
