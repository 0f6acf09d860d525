package view

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-chat/internal/model"
	"github.com/2389/fold-chat/internal/store"
)

type fixture struct {
	view  *View
	store *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New()
	v := New(st, ServerInfo{Version: "test", Started: time.Now()}, nil)
	return &fixture{view: v, store: st}
}

func (f *fixture) addUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.New(), Name: name, Creation: time.Now()}
	require.NoError(t, f.store.AddUser(u))
	return u
}

func (f *fixture) addConversation(t *testing.T, title string, owner uuid.UUID) *model.Conversation {
	t.Helper()
	c := &model.Conversation{ID: uuid.New(), Owner: owner, Title: title, Creation: time.Now()}
	require.NoError(t, f.store.AddConversation(c))
	return c
}

// addMessage appends a message to the conversation's forward list the
// way the write path does.
func (f *fixture) addMessage(t *testing.T, author, conversation uuid.UUID, body string) *model.Message {
	t.Helper()
	m := &model.Message{ID: uuid.New(), Author: author, Content: body, Creation: time.Now()}
	require.NoError(t, f.store.AddMessage(m))

	p, ok := f.store.PayloadByID(conversation)
	require.True(t, ok)
	id := m.ID
	if p.Last != nil {
		last, ok := f.store.MessageByID(*p.Last)
		require.True(t, ok)
		last.Next = &id
	}
	if p.First == nil {
		p.First = &id
	}
	p.Last = &id
	return m
}

func TestPayloads_DeduplicatesAndSkipsUnmapped(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	c1 := f.addConversation(t, "one", alice.ID)
	c2 := f.addConversation(t, "two", alice.ID)

	got := f.view.Payloads([]uuid.UUID{c1.ID, c1.ID, uuid.New(), c2.ID})
	require.Len(t, got, 2)
	assert.Equal(t, c1.ID, got[0].ConversationID)
	assert.Equal(t, c2.ID, got[1].ConversationID)
}

func TestMessages_DeduplicatesAndSkipsUnmapped(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	conv := f.addConversation(t, "general", alice.ID)
	m1 := f.addMessage(t, alice.ID, conv.ID, "one")
	m2 := f.addMessage(t, alice.ID, conv.ID, "two")

	got := f.view.Messages([]uuid.UUID{m2.ID, m1.ID, m2.ID, uuid.New()})
	require.Len(t, got, 2)
	assert.Equal(t, m2.ID, got[0].ID)
	assert.Equal(t, m1.ID, got[1].ID)
}

func TestFind(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	conv := f.addConversation(t, "general", alice.ID)
	msg := f.addMessage(t, alice.ID, conv.ID, "hello")

	assert.Equal(t, alice, f.view.FindUser(alice.ID))
	assert.Equal(t, conv, f.view.FindConversation(conv.ID))
	assert.Equal(t, msg, f.view.FindMessage(msg.ID))

	assert.Nil(t, f.view.FindUser(uuid.New()))
	assert.Nil(t, f.view.FindConversation(uuid.New()))
	assert.Nil(t, f.view.FindMessage(uuid.New()))
}

func TestIsOwner(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	conv := f.addConversation(t, "general", alice.ID)

	assert.True(t, f.view.IsOwner(conv.ID, alice.ID))
	assert.False(t, f.view.IsOwner(conv.ID, bob.ID))
	assert.False(t, f.view.IsOwner(uuid.New(), alice.ID))
}

func TestIsMember_OwnerOrAuthor(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")
	conv := f.addConversation(t, "general", alice.ID)

	// The owner is a member even before any messages exist.
	assert.True(t, f.view.IsMember(conv.ID, alice.ID))
	assert.False(t, f.view.IsMember(conv.ID, bob.ID))

	f.addMessage(t, alice.ID, conv.ID, "welcome")
	f.addMessage(t, bob.ID, conv.ID, "hi")

	assert.True(t, f.view.IsMember(conv.ID, bob.ID))
	assert.False(t, f.view.IsMember(conv.ID, carol.ID))
	assert.False(t, f.view.IsMember(uuid.New(), alice.ID))
}

func TestConversationUpdate_DrainsCounter(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	conv := f.addConversation(t, "general", alice.ID)

	rec, ok := f.store.Interest(bob.ID)
	require.True(t, ok)
	rec.WatchConversation(conv.ID)
	rec.BumpConversation(conv.ID)
	rec.BumpConversation(conv.ID)

	assert.Equal(t, 2, f.view.ConversationUpdate(bob.ID, "general"))
	assert.Equal(t, 0, f.view.ConversationUpdate(bob.ID, "general"))
}

func TestConversationUpdate_UnknownDrainsAsZero(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	f.addConversation(t, "general", alice.ID)

	assert.Zero(t, f.view.ConversationUpdate(alice.ID, "no such title"))
	assert.Zero(t, f.view.ConversationUpdate(uuid.New(), "general"))
}

func TestUserUpdate_DrainsPendingHeaders(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	conv := f.addConversation(t, "general", alice.ID)

	rec, ok := f.store.Interest(bob.ID)
	require.True(t, ok)
	rec.AppendUserActivity(alice.ID, conv)
	rec.AppendUserActivity(alice.ID, conv)

	got := f.view.UserUpdate(bob.ID, "alice")
	require.Len(t, got, 2)
	assert.Empty(t, f.view.UserUpdate(bob.ID, "alice"))
}

func TestUserUpdate_UnknownIsEmptyNotNil(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	got := f.view.UserUpdate(alice.ID, "nobody")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdminProjections(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	f.store.AddAdmin(alice.ID)

	assert.True(t, f.view.IsAdmin(alice.ID))
	assert.Equal(t, []uuid.UUID{alice.ID}, f.view.Admins())
	assert.Equal(t, []uuid.UUID{alice.ID}, f.view.PendingAdmins())

	f.store.ClearPendingAdmin(alice.ID)
	assert.Empty(t, f.view.PendingAdmins())
}

func TestInfo(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	v := New(store.New(), ServerInfo{Version: "1.2.3", Started: started}, nil)

	assert.Equal(t, "1.2.3", v.Info().Version)
	assert.GreaterOrEqual(t, v.Uptime(), time.Minute)
}
