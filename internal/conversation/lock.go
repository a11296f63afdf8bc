package conversation

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// stripedLock serializes work per conversation id with a fixed set of
// mutexes, so memory stays bounded no matter how many ids are seen. Two ids
// that share a stripe simply wait for each other.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) stripe(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % lockStripes)
}

func (l *stripedLock) lock(id string) func() {
	mu := &l.stripes[l.stripe(id)]
	mu.Lock()
	return mu.Unlock
}
