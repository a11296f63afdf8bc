package index

import (
	"context"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Loader produces a complete index from persisted artifacts.
type Loader interface {
	// Version identifies what Load would currently return. An empty version
	// means unknown, so callers should always reload.
	Version(ctx context.Context) (string, error)
	Load(ctx context.Context) (*FlatIndex, string, error)
}

type state struct {
	index   *FlatIndex
	version string
}

// Holder serves the current index and swaps in rebuilt ones on completion.
type Holder struct {
	current atomic.Pointer[state]
}

func NewHolder(idx *FlatIndex, version string) *Holder {
	h := &Holder{}
	h.Swap(idx, version)
	return h
}

func (h *Holder) Current() *FlatIndex {
	return h.current.Load().index
}

func (h *Holder) Version() string {
	return h.current.Load().version
}

func (h *Holder) Swap(idx *FlatIndex, version string) {
	if idx == nil {
		idx = &FlatIndex{}
	}
	h.current.Store(&state{index: idx, version: version})
}

func (h *Holder) Query(vector []float32, k int) ([]Hit, error) {
	return h.Current().Query(vector, k)
}

func (h *Holder) Len() int {
	return h.Current().Len()
}

// Reload loads from l and swaps when its version differs from the served one.
// It reports whether a swap happened.
func (h *Holder) Reload(ctx context.Context, l Loader) (bool, error) {
	version, err := l.Version(ctx)
	if err != nil {
		return false, err
	}
	if version != "" && version == h.Version() {
		return false, nil
	}
	idx, loaded, err := l.Load(ctx)
	if err != nil {
		return false, err
	}
	h.Swap(idx, loaded)
	logutil.GetLogger(ctx).Info("index swapped",
		zap.String("version", loaded),
		zap.Int("chunks", idx.Len()),
		zap.Int("dimension", idx.Dimension()),
	)
	return true, nil
}
