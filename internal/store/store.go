// ABOUTME: In-memory authoritative store with triple indices per entity
// ABOUTME: Holds users, conversations, payloads, messages, admin sets and watch registrations

package store

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/interest"
	"github.com/2389/fold-chat/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrIDInUse is returned when an insert would reuse an existing id
var ErrIDInUse = errors.New("id already in use")

func timeCompare(a, b time.Time) int {
	return a.Compare(b)
}

// textCompare orders case-insensitively, so lookups by name or title
// ignore case.
func textCompare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Store is the in-memory model. It is single-writer by construction:
// only the controller mutates it, and only from the run loop, so there
// is no internal locking.
type Store struct {
	usersByID   map[uuid.UUID]*model.User
	usersByTime *Multi[time.Time, *model.User]
	usersByText *Multi[string, *model.User]

	conversationsByID   map[uuid.UUID]*model.Conversation
	conversationsByTime *Multi[time.Time, *model.Conversation]
	conversationsByText *Multi[string, *model.Conversation]

	payloadsByID map[uuid.UUID]*model.Payload

	messagesByID   map[uuid.UUID]*model.Message
	messagesByTime *Multi[time.Time, *model.Message]
	messagesByText *Multi[string, *model.Message]

	// watchers maps a watched user or conversation id to the set of
	// users watching it.
	watchers map[uuid.UUID]map[uuid.UUID]struct{}

	// interests holds the per-user drain-on-read records.
	interests map[uuid.UUID]*interest.Record

	admins        map[uuid.UUID]struct{}
	pendingAdmins map[uuid.UUID]struct{}
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.usersByID = make(map[uuid.UUID]*model.User)
	s.usersByTime = NewMulti[time.Time, *model.User](timeCompare)
	s.usersByText = NewMulti[string, *model.User](textCompare)

	s.conversationsByID = make(map[uuid.UUID]*model.Conversation)
	s.conversationsByTime = NewMulti[time.Time, *model.Conversation](timeCompare)
	s.conversationsByText = NewMulti[string, *model.Conversation](textCompare)

	s.payloadsByID = make(map[uuid.UUID]*model.Payload)

	s.messagesByID = make(map[uuid.UUID]*model.Message)
	s.messagesByTime = NewMulti[time.Time, *model.Message](timeCompare)
	s.messagesByText = NewMulti[string, *model.Message](textCompare)

	s.watchers = make(map[uuid.UUID]map[uuid.UUID]struct{})
	s.interests = make(map[uuid.UUID]*interest.Record)
	s.admins = make(map[uuid.UUID]struct{})
	s.pendingAdmins = make(map[uuid.UUID]struct{})
}

// Clear resets every index and set to empty. Callers reach it through
// the run loop, which is what makes the wipe atomic for readers.
func (s *Store) Clear() {
	s.reset()
}

// IDInUse reports whether id is already taken anywhere in the combined
// user/conversation/message namespace.
func (s *Store) IDInUse(id uuid.UUID) bool {
	if _, ok := s.usersByID[id]; ok {
		return true
	}
	if _, ok := s.conversationsByID[id]; ok {
		return true
	}
	_, ok := s.messagesByID[id]
	return ok
}

// AddUser inserts a user into all three user indices and seeds its
// interest record.
func (s *Store) AddUser(u *model.User) error {
	if _, ok := s.usersByID[u.ID]; ok {
		return ErrIDInUse
	}
	s.usersByID[u.ID] = u
	s.usersByTime.Insert(u.Creation, u)
	s.usersByText.Insert(u.Name, u)
	s.interests[u.ID] = interest.NewRecord()
	return nil
}

// RemoveUser removes a user from all user indices. Messages the user
// authored are left in place.
func (s *Store) RemoveUser(u *model.User) {
	delete(s.usersByID, u.ID)
	s.usersByTime.DeleteWhere(u.Creation, func(v *model.User) bool { return v.ID == u.ID })
	s.usersByText.DeleteWhere(u.Name, func(v *model.User) bool { return v.ID == u.ID })
	delete(s.interests, u.ID)
}

// UserByID returns the user with the given id, if any.
func (s *Store) UserByID(id uuid.UUID) (*model.User, bool) {
	u, ok := s.usersByID[id]
	return u, ok
}

// UserByName returns the first user stored under name, matched
// case-insensitively.
func (s *Store) UserByName(name string) (*model.User, bool) {
	return s.usersByText.First(name)
}

// Users returns every user, ordered by creation time.
func (s *Store) Users() []*model.User {
	return s.usersByTime.All()
}

// UserCount reports how many users exist. Zero means the next created
// user is the bootstrap admin.
func (s *Store) UserCount() int {
	return len(s.usersByID)
}

// AddConversation inserts a conversation header into all three indices
// and materializes its empty payload.
func (s *Store) AddConversation(c *model.Conversation) error {
	if _, ok := s.conversationsByID[c.ID]; ok {
		return ErrIDInUse
	}
	s.conversationsByID[c.ID] = c
	s.conversationsByTime.Insert(c.Creation, c)
	s.conversationsByText.Insert(c.Title, c)
	s.payloadsByID[c.ID] = &model.Payload{ConversationID: c.ID}
	return nil
}

// RemoveConversation removes a header and its payload from all
// indices. Messages stay addressable by id.
func (s *Store) RemoveConversation(c *model.Conversation) {
	delete(s.conversationsByID, c.ID)
	s.conversationsByTime.DeleteWhere(c.Creation, func(v *model.Conversation) bool { return v.ID == c.ID })
	s.conversationsByText.DeleteWhere(c.Title, func(v *model.Conversation) bool { return v.ID == c.ID })
	delete(s.payloadsByID, c.ID)
}

// ConversationByID returns the header with the given id, if any.
func (s *Store) ConversationByID(id uuid.UUID) (*model.Conversation, bool) {
	c, ok := s.conversationsByID[id]
	return c, ok
}

// ConversationByTitle returns the first header stored under title.
func (s *Store) ConversationByTitle(title string) (*model.Conversation, bool) {
	return s.conversationsByText.First(title)
}

// Conversations returns every header, ordered by creation time.
func (s *Store) Conversations() []*model.Conversation {
	return s.conversationsByTime.All()
}

// PayloadByID returns the payload for a conversation id, if any.
func (s *Store) PayloadByID(id uuid.UUID) (*model.Payload, bool) {
	p, ok := s.payloadsByID[id]
	return p, ok
}

// AddMessage inserts a message into all three message indices.
func (s *Store) AddMessage(m *model.Message) error {
	if _, ok := s.messagesByID[m.ID]; ok {
		return ErrIDInUse
	}
	s.messagesByID[m.ID] = m
	s.messagesByTime.Insert(m.Creation, m)
	s.messagesByText.Insert(m.Content, m)
	return nil
}

// MessageByID returns the message with the given id, if any.
func (s *Store) MessageByID(id uuid.UUID) (*model.Message, bool) {
	m, ok := s.messagesByID[id]
	return m, ok
}

// MessageCount reports how many messages exist across all
// conversations, deleted ones included.
func (s *Store) MessageCount() int {
	return len(s.messagesByID)
}

// AddWatch registers watcher as interested in target (a user or
// conversation id).
func (s *Store) AddWatch(target, watcher uuid.UUID) {
	set, ok := s.watchers[target]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.watchers[target] = set
	}
	set[watcher] = struct{}{}
}

// RemoveWatch unregisters watcher from target.
func (s *Store) RemoveWatch(target, watcher uuid.UUID) {
	if set, ok := s.watchers[target]; ok {
		delete(set, watcher)
	}
}

// Watchers returns the ids of every user watching target.
func (s *Store) Watchers(target uuid.UUID) []uuid.UUID {
	set, ok := s.watchers[target]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Interest returns a user's drain-on-read record, if the user exists.
func (s *Store) Interest(user uuid.UUID) (*interest.Record, bool) {
	r, ok := s.interests[user]
	return r, ok
}

// AddAdmin grants admin status. New admins are pending until they set
// a password.
func (s *Store) AddAdmin(id uuid.UUID) {
	s.admins[id] = struct{}{}
	s.pendingAdmins[id] = struct{}{}
}

// RemoveAdmin revokes admin status entirely.
func (s *Store) RemoveAdmin(id uuid.UUID) {
	delete(s.admins, id)
	delete(s.pendingAdmins, id)
}

// ClearPendingAdmin marks an admin as no longer pending, once a
// password has been set.
func (s *Store) ClearPendingAdmin(id uuid.UUID) {
	delete(s.pendingAdmins, id)
}

// IsAdmin reports whether id holds admin status.
func (s *Store) IsAdmin(id uuid.UUID) bool {
	_, ok := s.admins[id]
	return ok
}

// IsPendingAdmin reports whether id is an admin that has not yet set a
// password.
func (s *Store) IsPendingAdmin(id uuid.UUID) bool {
	_, ok := s.pendingAdmins[id]
	return ok
}

// Admins returns every admin id.
func (s *Store) Admins() []uuid.UUID {
	return setToSlice(s.admins)
}

// PendingAdmins returns every admin id still awaiting a password.
func (s *Store) PendingAdmins() []uuid.UUID {
	return setToSlice(s.pendingAdmins)
}

func setToSlice(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
