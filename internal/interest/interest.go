// ABOUTME: Per-user interest record with drain-on-read semantics
// ABOUTME: Tracks message counts per watched conversation and pending headers per watched user

package interest

import (
	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/model"
)

// Record accumulates what changed in the conversations and users one
// user watches, between polls. Reads drain: counters reset to zero and
// pending lists empty out in the same call.
type Record struct {
	conversationCounts map[uuid.UUID]int
	userPending        map[uuid.UUID][]*model.Conversation
}

// NewRecord returns an empty record. Every user gets one at creation.
func NewRecord() *Record {
	return &Record{
		conversationCounts: make(map[uuid.UUID]int),
		userPending:        make(map[uuid.UUID][]*model.Conversation),
	}
}

// WatchConversation seeds the counter slot for a conversation at zero.
func (r *Record) WatchConversation(conversation uuid.UUID) {
	r.conversationCounts[conversation] = 0
}

// ResetConversation zeroes the counter without removing the slot,
// mirroring what happens when a watch is withdrawn.
func (r *Record) ResetConversation(conversation uuid.UUID) {
	if _, ok := r.conversationCounts[conversation]; ok {
		r.conversationCounts[conversation] = 0
	}
}

// BumpConversation increments the counter for a watched conversation.
// Unwatched conversations are ignored.
func (r *Record) BumpConversation(conversation uuid.UUID) {
	if _, ok := r.conversationCounts[conversation]; ok {
		r.conversationCounts[conversation]++
	}
}

// DrainConversation returns the accumulated count and resets it to
// zero. An unwatched conversation drains as zero.
func (r *Record) DrainConversation(conversation uuid.UUID) int {
	n := r.conversationCounts[conversation]
	if n != 0 {
		r.conversationCounts[conversation] = 0
	}
	return n
}

// AppendUserActivity records that a watched user created or posted to
// the given conversation. Duplicates are kept: the same header shows
// up once per touch until the next drain.
func (r *Record) AppendUserActivity(watched uuid.UUID, conversation *model.Conversation) {
	r.userPending[watched] = append(r.userPending[watched], conversation)
}

// DrainUserActivity returns the pending headers for a watched user in
// insertion order and clears the list.
func (r *Record) DrainUserActivity(watched uuid.UUID) []*model.Conversation {
	pending := r.userPending[watched]
	if pending == nil {
		return []*model.Conversation{}
	}
	delete(r.userPending, watched)
	return pending
}

// ClearUserActivity drops the pending list for a watched user without
// returning it. Used when the watch is withdrawn.
func (r *Record) ClearUserActivity(watched uuid.UUID) {
	delete(r.userPending, watched)
}
