// ABOUTME: The only component allowed to mutate the store
// ABOUTME: Every mutation allocates an id, appends a log record, applies, then fans out interest updates

package controller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/auth"
	"github.com/2389/fold-chat/internal/ident"
	"github.com/2389/fold-chat/internal/model"
	"github.com/2389/fold-chat/internal/store"
	"github.com/2389/fold-chat/internal/txlog"
)

// Controller owns the write path. All methods run on the run loop;
// nothing here locks. Failed lookups return nil or false and the
// caller decides the fallback — only replay failures are fatal.
type Controller struct {
	store    *store.Store
	ids      *ident.Generator
	log      *txlog.Writer
	creds    *auth.Credentials
	credFile *txlog.CredentialFile
	tokens   *auth.TokenIssuer
	clock    func() time.Time
	logger   *slog.Logger
}

// New wires a controller over its collaborators. tokens may be nil
// when no session-token surface is configured. Pass nil logger for the
// default.
func New(st *store.Store, ids *ident.Generator, log *txlog.Writer, creds *auth.Credentials, credFile *txlog.CredentialFile, tokens *auth.TokenIssuer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    st,
		ids:      ids,
		log:      log,
		creds:    creds,
		credFile: credFile,
		tokens:   tokens,
		clock:    millisecondClock,
		logger:   logger.With("component", "controller"),
	}
}

// millisecondClock truncates wall time to the transaction log's
// millisecond precision, so creation times compare equal before and
// after a replay.
func millisecondClock() time.Time {
	return time.Now().Truncate(time.Millisecond)
}

// Restore replays the transaction log and credential file into the
// store. Called once at startup, before any live traffic. Any
// malformed or unappliable line aborts: a half-built store cannot be
// trusted.
func (c *Controller) Restore(logPath, credPath string) error {
	if err := txlog.Replay(logPath, c.applyRecord); err != nil {
		return err
	}
	if err := txlog.ReplayCredentials(credPath, c.restoreCredential); err != nil {
		return err
	}
	c.logger.Info("store restored",
		"users", c.store.UserCount(),
		"messages", c.store.MessageCount())
	return nil
}

func (c *Controller) restoreCredential(id uuid.UUID, hash string) {
	c.creds.Restore(id, hash)
	// An admin with a stored password is no longer pending.
	c.store.ClearPendingAdmin(id)
}

// applyRecord dispatches one replayed log record to the same apply
// paths live traffic uses, with the recorded id and time instead of
// freshly allocated ones.
func (c *Controller) applyRecord(rec txlog.Record) error {
	switch rec := rec.(type) {
	case txlog.AddUser:
		if c.applyUser(rec.ID, rec.Name, rec.Creation, false) == nil {
			return fmt.Errorf("user %s could not be applied", rec.ID)
		}
	case txlog.AddAdmin:
		if c.applyUser(rec.ID, rec.Name, rec.Creation, true) == nil {
			return fmt.Errorf("admin user %s could not be applied", rec.ID)
		}
	case txlog.AddConversation:
		if c.applyConversation(rec.ID, rec.Title, rec.Owner, rec.Creation) == nil {
			return fmt.Errorf("conversation %s could not be applied", rec.ID)
		}
	case txlog.AddMessage:
		if c.applyMessage(rec.ID, rec.Author, rec.Conversation, rec.Content, rec.Creation) == nil {
			return fmt.Errorf("message %s could not be applied", rec.ID)
		}
	case txlog.DeleteUser:
		u, ok := c.store.UserByID(rec.ID)
		if !ok {
			return fmt.Errorf("delete of unknown user %s", rec.ID)
		}
		c.removeUser(u)
	case txlog.DeleteConversation:
		conv, ok := c.store.ConversationByID(rec.ID)
		if !ok {
			return fmt.Errorf("delete of unknown conversation %s", rec.ID)
		}
		c.store.RemoveConversation(conv)
	case txlog.AdminGrant:
		if _, ok := c.store.UserByID(rec.ID); !ok {
			return fmt.Errorf("admin grant for unknown user %s", rec.ID)
		}
		c.store.AddAdmin(rec.ID)
	case txlog.AdminRevoke:
		c.store.RemoveAdmin(rec.ID)
	default:
		return fmt.Errorf("unhandled record type %T", rec)
	}
	return nil
}

// NewUser creates a user with a fresh id. The first user ever created
// in an empty store is the bootstrap admin and is logged as such.
// Returns nil only if id allocation failed.
func (c *Controller) NewUser(name string) *model.User {
	id, ok := c.allocate()
	if !ok {
		return nil
	}
	now := c.clock()

	bootstrap := c.store.UserCount() == 0
	if bootstrap {
		c.appendLog(txlog.AddAdmin{ID: id, Name: name, Creation: now})
	} else {
		c.appendLog(txlog.AddUser{ID: id, Name: name, Creation: now})
	}
	return c.applyUser(id, name, now, bootstrap)
}

// NewUserWithID materializes a user with a caller-supplied id and
// time, as relay ingestion does. Not logged; durability of relayed
// state is the peer's concern. Returns nil if the id is taken.
func (c *Controller) NewUserWithID(id uuid.UUID, name string, creation time.Time) *model.User {
	return c.applyUser(id, name, creation, false)
}

func (c *Controller) applyUser(id uuid.UUID, name string, creation time.Time, admin bool) *model.User {
	if c.store.IDInUse(id) {
		c.logger.Warn("user rejected, id in use", "user_id", id, "name", name)
		return nil
	}
	u := &model.User{ID: id, Name: name, Creation: creation}
	if err := c.store.AddUser(u); err != nil {
		c.logger.Warn("user rejected", "user_id", id, "error", err)
		return nil
	}
	if admin {
		c.store.AddAdmin(id)
	}
	c.logger.Debug("user added", "user_id", id, "name", name, "admin", admin)
	return u
}

// NewConversation creates a conversation owned by an existing user.
// Returns nil if the owner does not exist.
func (c *Controller) NewConversation(title string, owner uuid.UUID) *model.Conversation {
	if _, ok := c.store.UserByID(owner); !ok {
		c.logger.Warn("conversation rejected, unknown owner", "owner", owner)
		return nil
	}
	id, ok := c.allocate()
	if !ok {
		return nil
	}
	now := c.clock()

	c.appendLog(txlog.AddConversation{ID: id, Title: title, Creation: now, Owner: owner})
	return c.applyConversation(id, title, owner, now)
}

// NewConversationWithID materializes a conversation with a
// caller-supplied id and time. Not logged.
func (c *Controller) NewConversationWithID(id uuid.UUID, title string, owner uuid.UUID, creation time.Time) *model.Conversation {
	return c.applyConversation(id, title, owner, creation)
}

func (c *Controller) applyConversation(id uuid.UUID, title string, owner uuid.UUID, creation time.Time) *model.Conversation {
	if _, ok := c.store.UserByID(owner); !ok {
		c.logger.Warn("conversation rejected, unknown owner", "conversation_id", id, "owner", owner)
		return nil
	}
	if c.store.IDInUse(id) {
		c.logger.Warn("conversation rejected, id in use", "conversation_id", id)
		return nil
	}
	conv := &model.Conversation{ID: id, Owner: owner, Title: title, Creation: creation}
	if err := c.store.AddConversation(conv); err != nil {
		c.logger.Warn("conversation rejected", "conversation_id", id, "error", err)
		return nil
	}

	// Anyone watching the owner learns about the new conversation on
	// their next poll.
	for _, watcher := range c.store.Watchers(owner) {
		if rec, ok := c.store.Interest(watcher); ok {
			rec.AppendUserActivity(owner, conv)
		}
	}

	c.logger.Debug("conversation added", "conversation_id", id, "title", title, "owner", owner)
	return conv
}

// NewMessage appends a message to a conversation. Returns nil if the
// author or the conversation's payload does not exist.
func (c *Controller) NewMessage(author, conversation uuid.UUID, body string) *model.Message {
	if _, ok := c.store.UserByID(author); !ok {
		c.logger.Warn("message rejected, unknown author", "author", author)
		return nil
	}
	if _, ok := c.store.PayloadByID(conversation); !ok {
		c.logger.Warn("message rejected, unknown conversation", "conversation", conversation)
		return nil
	}
	id, ok := c.allocate()
	if !ok {
		return nil
	}
	now := c.clock()

	c.appendLog(txlog.AddMessage{ID: id, Content: body, Creation: now, Conversation: conversation, Author: author})
	return c.applyMessage(id, author, conversation, body, now)
}

// NewMessageWithID materializes a message with a caller-supplied id
// and time. Not logged.
func (c *Controller) NewMessageWithID(id uuid.UUID, author, conversation uuid.UUID, body string, creation time.Time) *model.Message {
	return c.applyMessage(id, author, conversation, body, creation)
}

func (c *Controller) applyMessage(id uuid.UUID, author, conversation uuid.UUID, body string, creation time.Time) *model.Message {
	if _, ok := c.store.UserByID(author); !ok {
		c.logger.Warn("message rejected, unknown author", "message_id", id, "author", author)
		return nil
	}
	payload, ok := c.store.PayloadByID(conversation)
	if !ok {
		c.logger.Warn("message rejected, unknown conversation", "message_id", id, "conversation", conversation)
		return nil
	}
	if c.store.IDInUse(id) {
		c.logger.Warn("message rejected, id in use", "message_id", id)
		return nil
	}

	msg := &model.Message{ID: id, Author: author, Content: body, Creation: creation}
	if err := c.store.AddMessage(msg); err != nil {
		c.logger.Warn("message rejected", "message_id", id, "error", err)
		return nil
	}

	// Link into the conversation's forward list. The previous last
	// message's next pointer is the one mutation a materialized
	// message ever sees.
	newID := msg.ID
	if payload.Last != nil {
		if last, ok := c.store.MessageByID(*payload.Last); ok {
			last.Next = &newID
		}
	}
	if payload.First == nil {
		payload.First = &newID
	}
	payload.Last = &newID

	// Conversation watchers get a count bump; author watchers get the
	// conversation header appended to their pending list.
	for _, watcher := range c.store.Watchers(conversation) {
		if rec, ok := c.store.Interest(watcher); ok {
			rec.BumpConversation(conversation)
		}
	}
	if header, ok := c.store.ConversationByID(conversation); ok {
		for _, watcher := range c.store.Watchers(author) {
			if rec, ok := c.store.Interest(watcher); ok {
				rec.AppendUserActivity(author, header)
			}
		}
	}

	c.logger.Debug("message added", "message_id", id, "conversation", conversation, "author", author)
	return msg
}

// DeleteUser removes a user from every index and logs a tombstone.
// Messages the user authored are left orphaned but addressable; the
// delete stays O(1).
func (c *Controller) DeleteUser(id uuid.UUID) bool {
	u, ok := c.store.UserByID(id)
	if !ok {
		return false
	}
	c.appendLog(txlog.DeleteUser{ID: id, Time: c.clock()})
	c.removeUser(u)
	c.logger.Info("user deleted", "user_id", id)
	return true
}

func (c *Controller) removeUser(u *model.User) {
	c.store.RemoveUser(u)
	c.store.RemoveAdmin(u.ID)
}

// DeleteConversation removes a conversation header and payload and
// logs a tombstone. Its messages are not cascaded.
func (c *Controller) DeleteConversation(id uuid.UUID) bool {
	conv, ok := c.store.ConversationByID(id)
	if !ok {
		return false
	}
	c.appendLog(txlog.DeleteConversation{ID: id, Time: c.clock()})
	c.store.RemoveConversation(conv)
	c.logger.Info("conversation deleted", "conversation_id", id)
	return true
}

// GrantAdmin grants admin status to the user with the given name. The
// grantee is pending until they set a password.
func (c *Controller) GrantAdmin(name string) bool {
	u, ok := c.store.UserByName(name)
	if !ok {
		return false
	}
	c.appendLog(txlog.AdminGrant{ID: u.ID, Time: c.clock()})
	c.store.AddAdmin(u.ID)
	c.logger.Info("admin granted", "user_id", u.ID, "name", u.Name)
	return true
}

// RevokeAdmin removes admin status from the user with the given name.
func (c *Controller) RevokeAdmin(name string) bool {
	u, ok := c.store.UserByName(name)
	if !ok {
		return false
	}
	c.appendLog(txlog.AdminRevoke{ID: u.ID, Time: c.clock()})
	c.store.RemoveAdmin(u.ID)
	c.logger.Info("admin revoked", "user_id", u.ID, "name", u.Name)
	return true
}

// SetPassword hashes and persists a password for the given user and
// clears their pending-admin status. Returns false if hashing failed,
// with no state changed.
func (c *Controller) SetPassword(id uuid.UUID, raw string) bool {
	hash, ok := c.creds.Set(id, raw)
	if !ok {
		return false
	}
	if err := c.credFile.Append(id, hash); err != nil {
		c.logger.Error("credential write failed", "user_id", id, "error", err)
	}
	c.store.ClearPendingAdmin(id)
	return true
}

// Authenticate verifies a password and, on success, issues a session
// token. Pending admins must set a password first.
func (c *Controller) Authenticate(id uuid.UUID, raw string) (string, bool) {
	if !c.creds.Verify(id, raw) {
		return "", false
	}
	if c.tokens == nil {
		return "", true
	}
	token, err := c.tokens.Issue(id)
	if err != nil {
		c.logger.Error("token issue failed", "user_id", id, "error", err)
		return "", false
	}
	return token, true
}

// WatchUser registers watcher for another user's activity, resolved by
// name.
func (c *Controller) WatchUser(name string, watcher uuid.UUID) bool {
	u, ok := c.store.UserByName(name)
	if !ok {
		return false
	}
	if _, ok := c.store.Interest(watcher); !ok {
		return false
	}
	c.store.AddWatch(u.ID, watcher)
	c.logger.Debug("user watch added", "target", u.ID, "watcher", watcher)
	return true
}

// UnwatchUser withdraws a user watch and drops any pending updates for
// it.
func (c *Controller) UnwatchUser(name string, watcher uuid.UUID) bool {
	u, ok := c.store.UserByName(name)
	if !ok {
		return false
	}
	c.store.RemoveWatch(u.ID, watcher)
	if rec, ok := c.store.Interest(watcher); ok {
		rec.ClearUserActivity(u.ID)
	}
	return true
}

// WatchConversation registers watcher for a conversation's message
// count, resolved by title, seeding the counter at zero.
func (c *Controller) WatchConversation(title string, watcher uuid.UUID) bool {
	conv, ok := c.store.ConversationByTitle(title)
	if !ok {
		return false
	}
	rec, ok := c.store.Interest(watcher)
	if !ok {
		return false
	}
	rec.WatchConversation(conv.ID)
	c.store.AddWatch(conv.ID, watcher)
	c.logger.Debug("conversation watch added", "target", conv.ID, "watcher", watcher)
	return true
}

// UnwatchConversation withdraws a conversation watch and zeroes its
// counter.
func (c *Controller) UnwatchConversation(title string, watcher uuid.UUID) bool {
	conv, ok := c.store.ConversationByTitle(title)
	if !ok {
		return false
	}
	c.store.RemoveWatch(conv.ID, watcher)
	if rec, ok := c.store.Interest(watcher); ok {
		rec.ResetConversation(conv.ID)
	}
	return true
}

// Wipe empties the store, the credential map and both on-disk files in
// one unit of run-loop work, so no reader ever sees a partial wipe.
func (c *Controller) Wipe() error {
	c.store.Clear()
	c.creds.Clear()
	if err := c.log.Reset(); err != nil {
		return err
	}
	if err := c.credFile.Reset(); err != nil {
		return err
	}
	c.logger.Info("store wiped")
	return nil
}

// Flush forces any buffered log records to disk. Called when a client
// disconnects and at shutdown.
func (c *Controller) Flush() error {
	return c.log.Flush()
}

func (c *Controller) allocate() (uuid.UUID, bool) {
	id, err := c.ids.Allocate(c.store.IDInUse)
	if err != nil {
		// Exhausted retries means the randomness source is broken.
		// Fail the mutation, not the process.
		c.logger.Error("id allocation failed", "error", err)
		return uuid.Nil, false
	}
	return id, true
}

func (c *Controller) appendLog(rec txlog.Record) {
	if err := c.log.Append(rec); err != nil {
		c.logger.Error("log append failed", "error", err)
	}
}
