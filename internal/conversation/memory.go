package conversation

import (
	"context"
	"sync"

	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

type memoryConversation struct {
	mu    sync.Mutex
	title string
	ctime int64
	mtime int64
	msgs  []model.Message
}

// MemoryStore keeps conversations in process memory. Used for tests and
// single-process deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*memoryConversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*memoryConversation)}
}

func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	id := newID()
	now := nowMillis()
	s.mu.Lock()
	s.convs[id] = &memoryConversation{ctime: now, mtime: now}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) lookup(id string) (*memoryConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, appErr.ErrConversationNotFound
	}
	return c, nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, msgs ...model.Message) error {
	c, err := s.lookup(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var floor int64
	if n := len(c.msgs); n > 0 {
		floor = c.msgs[n-1].Timestamp
	}
	prepared, title, err := prepare(id, floor, c.title == "", msgs)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}
	c.msgs = append(c.msgs, prepared...)
	c.mtime = prepared[len(prepared)-1].Timestamp
	if title != "" {
		c.title = title
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, id string, limit int) ([]model.Message, error) {
	c, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return tail(c.msgs, limit), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &model.Conversation{
		ID:       id,
		Title:    c.title,
		Messages: tail(c.msgs, 0),
		Ctime:    c.ctime,
		Mtime:    c.mtime,
	}, nil
}
