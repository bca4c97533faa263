package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careportal/internal/database"
	"careportal/internal/model"
)

// newTestStore テスト用のsqliteストアを作成する
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	var tick int64
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	return s
}

func createUser(t *testing.T, s *Store, name string, role model.Role) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Name:  name,
		Email: fmt.Sprintf("%s@example.com", name),
		Role:  role,
	})
	require.NoError(t, err)
	return u
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice", model.RolePatient)
	bob := createUser(t, s, "bob", model.RoleDoctor)

	got, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, model.RolePatient, got.Role)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := s.GetUsers(ctx, []string{alice.ID, bob.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "bob", users[bob.ID].Name)

	_, err = s.CreateUser(ctx, model.User{Name: "dup", Email: "ALICE@example.com", Role: model.RolePatient})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDirectConversation_UniquePerPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", model.RolePatient)
	b := createUser(t, s, "b", model.RoleDoctor)

	_, err := s.FindDirectConversation(ctx, a.ID, b.ID)
	require.ErrorIs(t, err, ErrNotFound)

	created, err := s.CreateDirectConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	found, err := s.FindDirectConversation(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, []string{a.ID, b.ID}, found.Participants)
	assert.Equal(t, model.ConversationDirect, found.Type)

	_, err = s.CreateDirectConversation(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateMessage_UpdatesSummaryAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", model.RolePatient)
	b := createUser(t, s, "b", model.RoleDoctor)
	conv, err := s.CreateDirectConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	msg, err := s.CreateMessage(ctx, model.Message{
		ConversationID: conv.ID,
		SenderID:       a.ID,
		Content:        "hello",
		MessageType:    model.MessageTypeText,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageID)
	require.NotNil(t, got.LastMessageTime)
	assert.Equal(t, msg.ID, *got.LastMessageID)
	assert.True(t, msg.CreatedAt.Equal(*got.LastMessageTime))

	stored, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(msg, stored); diff != "" {
		t.Errorf("stored message mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateMessage_MissingConversationRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", model.RolePatient)

	_, err := s.CreateMessage(ctx, model.Message{
		ConversationID: "missing",
		SenderID:       a.ID,
		Content:        "hello",
		MessageType:    model.MessageTypeText,
	})
	require.Error(t, err)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count))
	assert.Zero(t, count, "no message may survive a failed summary update")
}

func TestListConversations_SortedByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", model.RolePatient)
	b := createUser(t, s, "b", model.RoleDoctor)
	c := createUser(t, s, "c", model.RolePharmacist)

	ab, err := s.CreateDirectConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	ac, err := s.CreateDirectConversation(ctx, a.ID, c.ID)
	require.NoError(t, err)
	bc, err := s.CreateDirectConversation(ctx, b.ID, c.ID)
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, model.Message{ConversationID: ab.ID, SenderID: a.ID, Content: "x", MessageType: model.MessageTypeText})
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, ab.ID, convs[0].ID, "conversation with the newest message comes first")
	assert.Equal(t, ac.ID, convs[1].ID)

	ids, err := s.ConversationIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ab.ID, ac.ID}, ids)
	assert.NotContains(t, ids, bc.ID)
}

func TestMarkRead_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", model.RolePatient)
	b := createUser(t, s, "b", model.RoleDoctor)
	conv, err := s.CreateDirectConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	fromA1, err := s.CreateMessage(ctx, model.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "one", MessageType: model.MessageTypeText})
	require.NoError(t, err)
	fromA2, err := s.CreateMessage(ctx, model.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "two", MessageType: model.MessageTypeText})
	require.NoError(t, err)
	fromB, err := s.CreateMessage(ctx, model.Message{ConversationID: conv.ID, SenderID: b.ID, Content: "three", MessageType: model.MessageTypeText})
	require.NoError(t, err)

	n, err := s.MarkRead(ctx, conv.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.MarkRead(ctx, conv.ID, b.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "second call is a no-op")

	for _, id := range []string{fromA1.ID, fromA2.ID} {
		m, err := s.GetMessage(ctx, id)
		require.NoError(t, err)
		require.Len(t, m.ReadBy, 1)
		assert.Equal(t, b.ID, m.ReadBy[0].UserID)
	}

	own, err := s.GetMessage(ctx, fromB.ID)
	require.NoError(t, err)
	assert.Empty(t, own.ReadBy, "own messages are never marked")
}

func TestListMessages_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", model.RolePatient)
	b := createUser(t, s, "b", model.RoleDoctor)
	conv, err := s.CreateDirectConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.CreateMessage(ctx, model.Message{ConversationID: conv.ID, SenderID: a.ID, Content: fmt.Sprintf("m%d", i), MessageType: model.MessageTypeText})
		require.NoError(t, err)
	}

	page, err := s.ListMessages(ctx, conv.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m4", page[0].Content)
	assert.Equal(t, "m3", page[1].Content)

	page, err = s.ListMessages(ctx, conv.ID, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "m0", page[0].Content)
}

func TestCreateGroupConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", model.RolePatient)
	b := createUser(t, s, "b", model.RoleDoctor)
	c := createUser(t, s, "c", model.RolePharmacist)

	g, err := s.CreateGroupConversation(ctx, []string{a.ID, b.ID, c.ID})
	require.NoError(t, err)

	got, err := s.GetConversation(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationGroup, got.Type)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, got.Participants)
	assert.Nil(t, got.LastMessageID)

	_, err = s.GetConversation(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
