package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

const (
	fieldTitle = "title"
	fieldCtime = "ctime"
	fieldMtime = "mtime"
)

const (
	maxRedisAppendAttempts = 10
	redisAppendBackoff     = 5 * time.Millisecond
)

// RedisStore keeps each conversation as a hash (metadata) plus a list of
// JSON-encoded messages. Appends are serialized per conversation inside the
// process; writers in other processes are caught by WATCH and retried.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	locks  stripedLock
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) metaKey(id string) string {
	return s.prefix + id
}

func (s *RedisStore) msgKey(id string) string {
	return s.prefix + id + ":msgs"
}

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := newID()
	now := nowMillis()
	ok, err := s.client.HSetNX(ctx, s.metaKey(id), fieldCtime, now).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", appErr.ErrConflict
	}
	if err := s.client.HSet(ctx, s.metaKey(id), fieldMtime, now, fieldTitle, "").Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msgs ...model.Message) error {
	unlock := s.locks.lock(id)
	defer unlock()

	meta, list := s.metaKey(id), s.msgKey(id)
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, meta).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return appErr.ErrConversationNotFound
		}
		var floor int64
		raw, err := tx.LIndex(ctx, list, -1).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var last model.Message
			if err := json.Unmarshal([]byte(raw), &last); err != nil {
				return fmt.Errorf("decode last message: %w", err)
			}
			floor = last.Timestamp
		}
		prepared, title, err := prepare(id, floor, fields[fieldTitle] == "", msgs)
		if err != nil {
			return err
		}
		if len(prepared) == 0 {
			return nil
		}
		values := make([]interface{}, 0, len(prepared))
		for _, m := range prepared {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			values = append(values, data)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, list, values...)
			pipe.HSet(ctx, meta, fieldMtime, prepared[len(prepared)-1].Timestamp)
			if title != "" {
				pipe.HSet(ctx, meta, fieldTitle, title)
			}
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxRedisAppendAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, meta, list)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		logutil.GetLogger(ctx).Warn("conversation append lost watch race, retrying",
			zap.String("conversation_id", id), zap.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redisAppendBackoff * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("append to conversation %s: %w", id, appErr.ErrConflict)
}

func (s *RedisStore) History(ctx context.Context, id string, limit int) ([]model.Message, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	return s.readMessages(ctx, id, start)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	fields, err := s.client.HGetAll(ctx, s.metaKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, appErr.ErrConversationNotFound
	}
	msgs, err := s.readMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	ctime, _ := strconv.ParseInt(fields[fieldCtime], 10, 64)
	mtime, _ := strconv.ParseInt(fields[fieldMtime], 10, 64)
	return &model.Conversation{
		ID:       id,
		Title:    fields[fieldTitle],
		Messages: msgs,
		Ctime:    ctime,
		Mtime:    mtime,
	}, nil
}

func (s *RedisStore) exists(ctx context.Context, id string) error {
	n, err := s.client.Exists(ctx, s.metaKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErr.ErrConversationNotFound
	}
	return nil
}

func (s *RedisStore) readMessages(ctx context.Context, id string, start int64) ([]model.Message, error) {
	raw, err := s.client.LRange(ctx, s.msgKey(id), start, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]model.Message, 0, len(raw))
	for _, item := range raw {
		var m model.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
