package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/groundqa/internal/model"
	"github.com/xxxsen/groundqa/internal/pkg/dbutil"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

type ConversationRepo struct {
	db       *sql.DB
	bindType int
}

func NewConversationRepo(db *sql.DB, driver string) *ConversationRepo {
	return &ConversationRepo{db: db, bindType: dbutil.BindType(driver)}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	data := map[string]interface{}{
		"id":    conv.ID,
		"title": conv.Title,
		"ctime": conv.Ctime,
		"mtime": conv.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("conversations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bindType, sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// Get returns the conversation header without messages.
func (r *ConversationRepo) Get(ctx context.Context, id string) (*model.Conversation, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, []string{"id", "title", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bindType, sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrConversationNotFound
	}
	var conv model.Conversation
	if err := rows.Scan(&conv.ID, &conv.Title, &conv.Ctime, &conv.Mtime); err != nil {
		return nil, err
	}
	return &conv, nil
}

// AppendMessages stores msgs after the current tail and bumps mtime. A
// concurrent writer taking the same sequence numbers yields ErrConflict.
func (r *ConversationRepo) AppendMessages(ctx context.Context, id string, title string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var next int64
	maxQuery := sqlx.Rebind(r.bindType, `SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = ?`)
	if err := tx.QueryRowContext(ctx, maxQuery, id).Scan(&next); err != nil {
		return err
	}
	data := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		next++
		data = append(data, map[string]interface{}{
			"conversation_id": id,
			"seq":             next,
			"role":            m.Role,
			"content":         m.Content,
			"ts":              m.Timestamp,
		})
	}
	sqlStr, args, err := builder.BuildInsert("messages", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bindType, sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}

	update := map[string]interface{}{
		"mtime": msgs[len(msgs)-1].Timestamp,
	}
	if title != "" {
		update["title"] = title
	}
	sqlStr, args, err = builder.BuildUpdate("conversations", map[string]interface{}{"id": id}, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bindType, sqlStr, args)
	result, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrConversationNotFound
	}
	return tx.Commit()
}

// ListMessages returns the last limit messages in chronological order, or all
// of them when limit <= 0.
func (r *ConversationRepo) ListMessages(ctx context.Context, id string, limit int) ([]model.Message, error) {
	where := map[string]interface{}{
		"conversation_id": id,
		"_orderby":        "seq desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("messages", where, []string{"conversation_id", "role", "content", "ts"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bindType, sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ConversationID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
