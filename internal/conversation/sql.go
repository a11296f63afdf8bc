package conversation

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

const maxAppendAttempts = 3

// Repo is the subset of repo.ConversationRepo the SQL store needs.
type Repo interface {
	Create(ctx context.Context, conv *model.Conversation) error
	Get(ctx context.Context, id string) (*model.Conversation, error)
	AppendMessages(ctx context.Context, id string, title string, msgs []model.Message) error
	ListMessages(ctx context.Context, id string, limit int) ([]model.Message, error)
}

// SQLStore persists conversations through a relational repo. Appends are
// serialized per conversation inside the process; writers in other processes
// are detected by the messages primary key and retried.
type SQLStore struct {
	repo  Repo
	locks stripedLock
}

func NewSQLStore(repo Repo) *SQLStore {
	return &SQLStore{repo: repo}
}

func (s *SQLStore) Create(ctx context.Context) (string, error) {
	now := nowMillis()
	conv := &model.Conversation{ID: newID(), Ctime: now, Mtime: now}
	if err := s.repo.Create(ctx, conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *SQLStore) Append(ctx context.Context, id string, msgs ...model.Message) error {
	unlock := s.locks.lock(id)
	defer unlock()

	var err error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		if err = s.appendOnce(ctx, id, msgs); !errors.Is(err, appErr.ErrConflict) {
			return err
		}
		logutil.GetLogger(ctx).Warn("conversation append conflict, retrying",
			zap.String("conversation_id", id), zap.Int("attempt", attempt+1))
	}
	return err
}

func (s *SQLStore) appendOnce(ctx context.Context, id string, msgs []model.Message) error {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	last, err := s.repo.ListMessages(ctx, id, 1)
	if err != nil {
		return err
	}
	var floor int64
	if len(last) > 0 {
		floor = last[0].Timestamp
	}
	prepared, title, err := prepare(id, floor, conv.Title == "", msgs)
	if err != nil {
		return err
	}
	return s.repo.AppendMessages(ctx, id, title, prepared)
}

func (s *SQLStore) History(ctx context.Context, id string, limit int) ([]model.Message, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, id, limit)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return conv, nil
}
