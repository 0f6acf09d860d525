package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-chat/internal/model"
)

func newUser(t *testing.T, name string) *model.User {
	t.Helper()
	return &model.User{ID: uuid.New(), Name: name, Creation: time.Now()}
}

func TestStore_AddUser(t *testing.T) {
	s := New()
	u := newUser(t, "alice")

	require.NoError(t, s.AddUser(u))

	got, ok := s.UserByID(u.ID)
	require.True(t, ok)
	assert.Equal(t, u, got)

	got, ok = s.UserByName("ALICE")
	require.True(t, ok, "name lookup should ignore case")
	assert.Equal(t, u, got)

	_, ok = s.Interest(u.ID)
	assert.True(t, ok, "new user should have an interest record")
}

func TestStore_AddUser_DuplicateID(t *testing.T) {
	s := New()
	u := newUser(t, "alice")
	require.NoError(t, s.AddUser(u))

	dup := &model.User{ID: u.ID, Name: "bob", Creation: time.Now()}
	assert.ErrorIs(t, s.AddUser(dup), ErrIDInUse)
}

func TestStore_RemoveUser(t *testing.T) {
	s := New()
	u := newUser(t, "alice")
	require.NoError(t, s.AddUser(u))

	s.RemoveUser(u)

	_, ok := s.UserByID(u.ID)
	assert.False(t, ok)
	_, ok = s.UserByName("alice")
	assert.False(t, ok)
	assert.False(t, s.IDInUse(u.ID))
}

func TestStore_RemoveUser_LeavesSameNamedUsers(t *testing.T) {
	s := New()
	a := newUser(t, "alice")
	b := newUser(t, "alice")
	require.NoError(t, s.AddUser(a))
	require.NoError(t, s.AddUser(b))

	s.RemoveUser(a)

	got, ok := s.UserByName("alice")
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)
}

func TestStore_AddConversation_MaterializesPayload(t *testing.T) {
	s := New()
	u := newUser(t, "alice")
	require.NoError(t, s.AddUser(u))

	c := &model.Conversation{ID: uuid.New(), Owner: u.ID, Title: "general", Creation: time.Now()}
	require.NoError(t, s.AddConversation(c))

	p, ok := s.PayloadByID(c.ID)
	require.True(t, ok)
	assert.Nil(t, p.First)
	assert.Nil(t, p.Last)

	got, ok := s.ConversationByTitle("General")
	require.True(t, ok)
	assert.Equal(t, c.ID, got.ID)
}

func TestStore_RemoveConversation_KeepsMessages(t *testing.T) {
	s := New()
	u := newUser(t, "alice")
	require.NoError(t, s.AddUser(u))

	c := &model.Conversation{ID: uuid.New(), Owner: u.ID, Title: "general", Creation: time.Now()}
	require.NoError(t, s.AddConversation(c))

	m := &model.Message{ID: uuid.New(), Author: u.ID, Content: "hi", Creation: time.Now()}
	require.NoError(t, s.AddMessage(m))

	s.RemoveConversation(c)

	_, ok := s.ConversationByID(c.ID)
	assert.False(t, ok)
	_, ok = s.PayloadByID(c.ID)
	assert.False(t, ok)

	got, ok := s.MessageByID(m.ID)
	require.True(t, ok, "messages are not cascade-deleted")
	assert.Equal(t, "hi", got.Content)
}

func TestStore_IDInUse_SpansAllNamespaces(t *testing.T) {
	s := New()
	u := newUser(t, "alice")
	require.NoError(t, s.AddUser(u))

	c := &model.Conversation{ID: uuid.New(), Owner: u.ID, Title: "general", Creation: time.Now()}
	require.NoError(t, s.AddConversation(c))

	m := &model.Message{ID: uuid.New(), Author: u.ID, Content: "hi", Creation: time.Now()}
	require.NoError(t, s.AddMessage(m))

	assert.True(t, s.IDInUse(u.ID))
	assert.True(t, s.IDInUse(c.ID))
	assert.True(t, s.IDInUse(m.ID))
	assert.False(t, s.IDInUse(uuid.New()))
}

func TestStore_Watchers(t *testing.T) {
	s := New()
	target := uuid.New()
	w1 := uuid.New()
	w2 := uuid.New()

	s.AddWatch(target, w1)
	s.AddWatch(target, w2)
	s.AddWatch(target, w1) // idempotent

	assert.ElementsMatch(t, []uuid.UUID{w1, w2}, s.Watchers(target))

	s.RemoveWatch(target, w1)
	assert.ElementsMatch(t, []uuid.UUID{w2}, s.Watchers(target))

	assert.Empty(t, s.Watchers(uuid.New()))
}

func TestStore_AdminSets(t *testing.T) {
	s := New()
	id := uuid.New()

	s.AddAdmin(id)
	assert.True(t, s.IsAdmin(id))
	assert.True(t, s.IsPendingAdmin(id))

	s.ClearPendingAdmin(id)
	assert.True(t, s.IsAdmin(id))
	assert.False(t, s.IsPendingAdmin(id))

	s.RemoveAdmin(id)
	assert.False(t, s.IsAdmin(id))
}

func TestStore_Clear(t *testing.T) {
	s := New()
	u := newUser(t, "alice")
	require.NoError(t, s.AddUser(u))
	s.AddAdmin(u.ID)
	s.AddWatch(u.ID, uuid.New())

	s.Clear()

	assert.Zero(t, s.UserCount())
	assert.Empty(t, s.Admins())
	assert.Empty(t, s.Watchers(u.ID))
	assert.False(t, s.IDInUse(u.ID))
}

func TestStore_UsersOrderedByCreation(t *testing.T) {
	s := New()
	base := time.Now()
	older := &model.User{ID: uuid.New(), Name: "older", Creation: base.Add(-time.Hour)}
	newer := &model.User{ID: uuid.New(), Name: "newer", Creation: base}

	require.NoError(t, s.AddUser(newer))
	require.NoError(t, s.AddUser(older))

	users := s.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "older", users[0].Name)
	assert.Equal(t, "newer", users[1].Name)
}
