package embedcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/model"
)

type countingEmbedder struct {
	calls int32
	delay time.Duration
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	atomic.AddInt32(&c.calls, 1)
	time.Sleep(c.delay)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string {
	return "fake/model"
}

type memStore struct {
	mu      sync.Mutex
	items   map[string][]float32
	failGet bool
}

func (m *memStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("db down")
	}
	v, ok := m.items[modelName+taskType+contentHash]
	return v, ok, nil
}

func (m *memStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item.Embedding
	return nil
}

func TestWrapLRU_CachesAndClones(t *testing.T) {
	next := &countingEmbedder{}
	e := WrapLRU(next, 16, time.Minute)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "hello", model.TaskTypeQuery)
	require.NoError(t, err)
	v1[0] = 99
	v2, err := e.Embed(ctx, "hello", model.TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, float32(5), v2[0])
	require.EqualValues(t, 1, next.calls)

	_, err = e.Embed(ctx, "hello", model.TaskTypeDocument)
	require.NoError(t, err)
	require.EqualValues(t, 2, next.calls)
	require.Equal(t, "fake/model", e.ModelName())
}

func TestWrapLRU_CollapsesConcurrentMisses(t *testing.T) {
	next := &countingEmbedder{delay: 20 * time.Millisecond}
	e := WrapLRU(next, 16, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Embed(context.Background(), "same", model.TaskTypeQuery)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, atomic.LoadInt32(&next.calls), int32(2))
}

func TestWrapLRU_ErrorsNotCached(t *testing.T) {
	next := &countingEmbedder{err: errors.New("boom")}
	e := WrapLRU(next, 16, time.Minute)
	_, err := e.Embed(context.Background(), "x", "")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "x", "")
	require.Error(t, err)
	require.EqualValues(t, 2, next.calls)
}

func TestWrapLRU_Disabled(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WrapLRU(next, 0, time.Minute))
}

func TestWrapDB(t *testing.T) {
	next := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}}
	e := WrapDB(next, store)
	ctx := context.Background()

	_, err := e.Embed(ctx, "chunk text", model.TaskTypeDocument)
	require.NoError(t, err)
	_, err = e.Embed(ctx, "chunk text", model.TaskTypeDocument)
	require.NoError(t, err)
	require.EqualValues(t, 1, next.calls)

	store.failGet = true
	_, err = e.Embed(ctx, "chunk text", model.TaskTypeDocument)
	require.NoError(t, err)
	require.EqualValues(t, 2, next.calls)
}

func TestBuildCacheKey(t *testing.T) {
	a := buildCacheKey("", "T", "x")
	require.Equal(t, "unknown", a.modelName)
	require.Contains(t, a.full, "embed:unknown:T:")
	require.NotEqual(t, a.full, buildCacheKey("m", "T", "x").full)
}
