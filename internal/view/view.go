// ABOUTME: Read-only projections over the store for external callers
// ABOUTME: Also hosts the drain-on-read interest queries

package view

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/model"
	"github.com/2389/fold-chat/internal/store"
)

// ServerInfo describes the running server.
type ServerInfo struct {
	Version string
	Started time.Time
}

// View is the query layer. Like the controller it runs only on the run
// loop; the interest drains mutate their counters but nothing else.
type View struct {
	store  *store.Store
	info   ServerInfo
	logger *slog.Logger
}

// New creates a view over the store. Pass nil logger for the default.
func New(st *store.Store, info ServerInfo, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		store:  st,
		info:   info,
		logger: logger.With("component", "view"),
	}
}

// Users returns every user, ordered by creation time.
func (v *View) Users() []*model.User {
	return v.store.Users()
}

// Conversations returns every conversation header, ordered by creation
// time.
func (v *View) Conversations() []*model.Conversation {
	return v.store.Conversations()
}

// Payloads returns the payloads for the requested conversation ids.
// Duplicate ids yield one result; unmapped ids are logged, not
// errors.
func (v *View) Payloads(ids []uuid.UUID) []*model.Payload {
	out := make([]*model.Payload, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			v.logger.Warn("duplicate id requested", "id", id)
			continue
		}
		seen[id] = struct{}{}
		p, ok := v.store.PayloadByID(id)
		if !ok {
			v.logger.Warn("unmapped id requested", "id", id)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Messages returns the messages for the requested ids, deduplicated,
// with unmapped ids logged and skipped.
func (v *View) Messages(ids []uuid.UUID) []*model.Message {
	out := make([]*model.Message, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			v.logger.Warn("duplicate id requested", "id", id)
			continue
		}
		seen[id] = struct{}{}
		m, ok := v.store.MessageByID(id)
		if !ok {
			v.logger.Warn("unmapped id requested", "id", id)
			continue
		}
		out = append(out, m)
	}
	return out
}

// FindUser returns the user with the given id, or nil.
func (v *View) FindUser(id uuid.UUID) *model.User {
	u, _ := v.store.UserByID(id)
	return u
}

// FindConversation returns the conversation with the given id, or nil.
func (v *View) FindConversation(id uuid.UUID) *model.Conversation {
	c, _ := v.store.ConversationByID(id)
	return c
}

// FindMessage returns the message with the given id, or nil.
func (v *View) FindMessage(id uuid.UUID) *model.Message {
	m, _ := v.store.MessageByID(id)
	return m
}

// Admins returns every admin id.
func (v *View) Admins() []uuid.UUID {
	return v.store.Admins()
}

// PendingAdmins returns every admin id still awaiting a password.
func (v *View) PendingAdmins() []uuid.UUID {
	return v.store.PendingAdmins()
}

// IsAdmin reports whether the user holds admin status.
func (v *View) IsAdmin(id uuid.UUID) bool {
	return v.store.IsAdmin(id)
}

// IsOwner reports whether the user owns the conversation.
func (v *View) IsOwner(conversationID, userID uuid.UUID) bool {
	c, ok := v.store.ConversationByID(conversationID)
	return ok && c.Owner == userID
}

// IsMember reports whether the user owns the conversation or has
// authored at least one message in it. Walks the forward-linked list.
func (v *View) IsMember(conversationID, userID uuid.UUID) bool {
	if v.IsOwner(conversationID, userID) {
		return true
	}
	p, ok := v.store.PayloadByID(conversationID)
	if !ok {
		return false
	}
	for at := p.First; at != nil; {
		m, ok := v.store.MessageByID(*at)
		if !ok {
			v.logger.Warn("broken message link", "conversation", conversationID, "message", *at)
			return false
		}
		if m.Author == userID {
			return true
		}
		at = m.Next
	}
	return false
}

// ConversationUpdate returns how many messages arrived in the watched
// conversation (resolved by title) since owner's last poll, and resets
// the counter. Unknown titles and unwatched conversations drain as
// zero.
func (v *View) ConversationUpdate(owner uuid.UUID, title string) int {
	conv, ok := v.store.ConversationByTitle(title)
	if !ok {
		v.logger.Warn("conversation update for unknown title", "title", title)
		return 0
	}
	rec, ok := v.store.Interest(owner)
	if !ok {
		return 0
	}
	return rec.DrainConversation(conv.ID)
}

// UserUpdate returns the conversations the watched user (resolved by
// name) created or posted to since owner's last poll, in insertion
// order with duplicates preserved, and clears the list.
func (v *View) UserUpdate(owner uuid.UUID, name string) []*model.Conversation {
	u, ok := v.store.UserByName(name)
	if !ok {
		v.logger.Warn("user update for unknown name", "name", name)
		return []*model.Conversation{}
	}
	rec, ok := v.store.Interest(owner)
	if !ok {
		return []*model.Conversation{}
	}
	return rec.DrainUserActivity(u.ID)
}

// Info returns static server information.
func (v *View) Info() ServerInfo {
	return v.info
}

// Uptime reports how long the server has been running.
func (v *View) Uptime() time.Duration {
	return time.Since(v.info.Started)
}
