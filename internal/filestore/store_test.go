package filestore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/config"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

func TestLocalStore_SaveOpen(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	require.Equal(t, "local", store.Type())

	ctx := context.Background()
	body := []byte(`{"build_id":"b1"}`)
	require.NoError(t, store.Save(ctx, "index/manifest.json", bytes.NewReader(body), int64(len(body))))

	rc, err := store.Open(ctx, "index/manifest.json")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, body, got)

	_, err = store.Open(ctx, "index/missing.json")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	err = store.Save(context.Background(), "../escape", bytes.NewReader(nil), 0)
	require.Error(t, err)
	_, err = store.Open(context.Background(), "a/../../b")
	require.Error(t, err)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.FileStoreConfig{})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "ftp", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{"endpoint": "minio:9000"}})
	require.Error(t, err)
}

func TestNormalizeEndpoint(t *testing.T) {
	require.Equal(t, "https://minio:9000", normalizeEndpoint("minio:9000", true))
	require.Equal(t, "http://minio:9000", normalizeEndpoint("minio:9000/", false))
	require.Equal(t, "https://s3.example.com", normalizeEndpoint("https://s3.example.com/", false))
}
