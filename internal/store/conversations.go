package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"careportal/internal/database"
	"careportal/internal/model"
)

const conversationColumns = "c.id, c.type, c.last_message_id, c.last_message_at, c.created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (model.Conversation, error) {
	var (
		c        model.Conversation
		typ      string
		lastID   sql.NullString
		lastTime sql.NullTime
	)
	if err := row.Scan(&c.ID, &typ, &lastID, &lastTime, &c.CreatedAt); err != nil {
		return model.Conversation{}, err
	}
	c.Type = model.ConversationType(typ)
	if lastID.Valid {
		id := lastID.String
		c.LastMessageID = &id
	}
	if lastTime.Valid {
		t := lastTime.Time.UTC()
		c.LastMessageTime = &t
	}
	return c, nil
}

// GetConversation fetches a conversation and its participants.
func (s *Store) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		s.q("SELECT "+conversationColumns+" FROM conversations c WHERE c.id = ?"), id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("select conversation: %w", err)
	}

	participants, err := s.participants(ctx, []string{c.ID})
	if err != nil {
		return model.Conversation{}, err
	}
	c.Participants = participants[c.ID]
	return c, nil
}

// ListConversations returns every conversation userID participates in,
// most recently active first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("select conversations: %w", err)
	}
	defer rows.Close()

	var (
		convs []model.Conversation
		ids   []string
	)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	participants, err := s.participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].Participants = participants[convs[i].ID]
	}
	return convs, nil
}

// ConversationIDs returns the ids of every conversation userID participates in.
func (s *Store) ConversationIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT conversation_id FROM conversation_participants WHERE user_id = ? ORDER BY conversation_id"), userID)
	if err != nil {
		return nil, fmt.Errorf("select participant rooms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant room: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rooms: %w", err)
	}
	return ids, nil
}

// FindDirectConversation returns the direct conversation between a and b.
func (s *Store) FindDirectConversation(ctx context.Context, a, b string) (model.Conversation, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		s.q("SELECT id FROM conversations WHERE direct_key = ? AND type = ?"),
		model.DirectKey(a, b), string(model.ConversationDirect),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, fmt.Errorf("direct conversation %s: %w", model.DirectKey(a, b), ErrNotFound)
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("select direct conversation: %w", err)
	}
	return s.GetConversation(ctx, id)
}

// CreateDirectConversation inserts the direct conversation between a and b.
// The unique direct_key makes a concurrent second insert fail with ErrDuplicate.
func (s *Store) CreateDirectConversation(ctx context.Context, a, b string) (model.Conversation, error) {
	c := model.Conversation{
		ID:           uuid.NewString(),
		Type:         model.ConversationDirect,
		Participants: []string{a, b},
		CreatedAt:    s.Now(),
	}
	key := model.DirectKey(a, b)
	if err := s.insertConversation(ctx, c, &key); err != nil {
		return model.Conversation{}, err
	}
	return c, nil
}

// CreateGroupConversation inserts a group conversation with the given participants.
func (s *Store) CreateGroupConversation(ctx context.Context, participants []string) (model.Conversation, error) {
	c := model.Conversation{
		ID:           uuid.NewString(),
		Type:         model.ConversationGroup,
		Participants: participants,
		CreatedAt:    s.Now(),
	}
	if err := s.insertConversation(ctx, c, nil); err != nil {
		return model.Conversation{}, err
	}
	return c, nil
}

func (s *Store) insertConversation(ctx context.Context, c model.Conversation, directKey *string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			s.q("INSERT INTO conversations (id, type, direct_key, created_at) VALUES (?, ?, ?, ?)"),
			c.ID, string(c.Type), directKey, c.CreatedAt)
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("conversation: %w", ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}

		for i, userID := range c.Participants {
			_, err := tx.ExecContext(ctx,
				s.q("INSERT INTO conversation_participants (conversation_id, user_id, position) VALUES (?, ?, ?)"),
				c.ID, userID, i)
			if err != nil {
				return fmt.Errorf("insert participant: %w", err)
			}
		}
		return nil
	})
}

// participants loads the ordered participant lists of the given conversations.
func (s *Store) participants(ctx context.Context, conversationIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT conversation_id, user_id FROM conversation_participants WHERE conversation_id IN ("+
			placeholders(len(conversationIDs))+") ORDER BY conversation_id, position"),
		stringArgs(conversationIDs)...)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID, userID string
		if err := rows.Scan(&convID, &userID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[convID] = append(out[convID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}
