package job

import (
	"context"

	"github.com/xxxsen/groundqa/internal/index"
)

// IndexReloadJob swaps in a rebuilt index when the persisted one changed.
type IndexReloadJob struct {
	holder *index.Holder
	loader index.Loader
}

func NewIndexReloadJob(holder *index.Holder, loader index.Loader) *IndexReloadJob {
	return &IndexReloadJob{holder: holder, loader: loader}
}

func (j *IndexReloadJob) Name() string {
	return "index_reload"
}

func (j *IndexReloadJob) Run(ctx context.Context) error {
	_, err := j.holder.Reload(ctx, j.loader)
	return err
}
