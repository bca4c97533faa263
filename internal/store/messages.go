package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"careportal/internal/model"
)

const messageColumns = "id, conversation_id, sender_id, content, message_type, created_at"

// CreateMessage persists m and points its conversation's summary at it in
// one transaction, so the summary never refers to a message that does not exist
// and never lags a committed message.
func (s *Store) CreateMessage(ctx context.Context, m model.Message) (model.Message, error) {
	m.ID = uuid.NewString()
	m.CreatedAt = s.Now()
	m.ReadBy = []model.ReadReceipt{}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			s.q("INSERT INTO messages ("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?)"),
			m.ID, m.ConversationID, m.SenderID, m.Content, m.MessageType, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			s.q("UPDATE conversations SET last_message_id = ?, last_message_at = ? WHERE id = ?"),
			m.ID, m.CreatedAt, m.ConversationID)
		if err != nil {
			return fmt.Errorf("update conversation summary: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("conversation %s: %w", m.ConversationID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// GetMessage fetches a message with its read receipts.
func (s *Store) GetMessage(ctx context.Context, id string) (model.Message, error) {
	var m model.Message
	err := s.db.QueryRowContext(ctx,
		s.q("SELECT "+messageColumns+" FROM messages WHERE id = ?"), id,
	).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.MessageType, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("select message: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()

	msgs := []model.Message{m}
	if err := s.attachReceipts(ctx, msgs); err != nil {
		return model.Message{}, err
	}
	return msgs[0], nil
}

// ListMessages returns one page of a conversation's history, newest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`), conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.MessageType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if err := s.attachReceipts(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead adds a receipt for userID to every message in the conversation that
// someone else sent and userID has not read yet. It returns the number of
// receipts added; a repeated call adds none.
func (s *Store) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	body := `INTO message_reads (message_id, user_id, read_at)
		SELECT m.id, ?, ` + s.timeParam() + `
		FROM messages m
		WHERE m.conversation_id = ? AND m.sender_id <> ?
		AND NOT EXISTS (
			SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?
		)`

	res, err := s.db.ExecContext(ctx, s.q(s.db.Dialect.InsertIgnore(body)),
		userID, s.Now(), conversationID, userID, userID)
	if err != nil {
		return 0, fmt.Errorf("insert read receipts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count read receipts: %w", err)
	}
	return n, nil
}

func (s *Store) attachReceipts(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]string, len(msgs))
	index := make(map[string]int, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
		index[msgs[i].ID] = i
		msgs[i].ReadBy = []model.ReadReceipt{}
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT message_id, user_id, read_at FROM message_reads WHERE message_id IN ("+
			placeholders(len(ids))+") ORDER BY read_at, user_id"),
		stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("select read receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msgID string
			r     model.ReadReceipt
		)
		if err := rows.Scan(&msgID, &r.UserID, &r.ReadAt); err != nil {
			return fmt.Errorf("scan read receipt: %w", err)
		}
		r.ReadAt = r.ReadAt.UTC()
		i := index[msgID]
		msgs[i].ReadBy = append(msgs[i].ReadBy, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate read receipts: %w", err)
	}
	return nil
}
