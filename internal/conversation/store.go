package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

const (
	maxTitleRunes = 80
	titleEllipsis = "..."
)

// Store is an append-only, per-conversation ordered message log.
// Appends to one conversation are serialized; different conversations are
// independent.
type Store interface {
	Create(ctx context.Context) (string, error)
	// Append stores msgs atomically and in order. Zero timestamps are filled
	// with the current time and timestamps never go backwards.
	Append(ctx context.Context, id string, msgs ...model.Message) error
	// History returns the last limit messages, oldest first. limit <= 0
	// returns everything.
	History(ctx context.Context, id string, limit int) ([]model.Message, error)
	Get(ctx context.Context, id string) (*model.Conversation, error)
}

func newID() string {
	return uuid.NewString()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// prepare validates msgs and normalises their timestamps against floor, the
// timestamp of the conversation's last stored message. When needTitle is set
// the returned title comes from the first user message.
func prepare(id string, floor int64, needTitle bool, msgs []model.Message) ([]model.Message, string, error) {
	out := make([]model.Message, 0, len(msgs))
	now := nowMillis()
	title := ""
	for i, m := range msgs {
		if !model.ValidRole(m.Role) {
			return nil, "", fmt.Errorf("message %d: invalid role %q: %w", i, m.Role, appErr.ErrInvalid)
		}
		if m.Timestamp <= 0 {
			m.Timestamp = now
		}
		if m.Timestamp < floor {
			m.Timestamp = floor
		}
		floor = m.Timestamp
		m.ConversationID = id
		if needTitle && title == "" && m.Role == model.RoleUser {
			title = Title(m.Content)
		}
		out = append(out, m)
	}
	return out, title, nil
}

// Title derives a conversation title from a user message.
func Title(content string) string {
	s := strings.Join(strings.Fields(content), " ")
	r := []rune(s)
	if len(r) <= maxTitleRunes {
		return s
	}
	return string(r[:maxTitleRunes-len(titleEllipsis)]) + titleEllipsis
}

func tail(msgs []model.Message, limit int) []model.Message {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}
