// ABOUTME: Core entity types for the fold-chat authoritative store
// ABOUTME: Users, conversations, payloads and messages share one id namespace

package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Immutable after creation except deletion.
type User struct {
	ID       uuid.UUID
	Name     string
	Creation time.Time
}

// Conversation is the immutable header of a conversation. The mutable
// message-list pointers live in Payload.
type Conversation struct {
	ID       uuid.UUID
	Owner    uuid.UUID
	Title    string
	Creation time.Time
}

// Payload holds the head and tail of a conversation's message list.
// Nil pointers mean the conversation has no messages yet.
type Payload struct {
	ConversationID uuid.UUID
	First          *uuid.UUID
	Last           *uuid.UUID
}

// Message is one entry in a conversation's forward-linked list. Next is
// set exactly once, when a newer message is appended after this one.
type Message struct {
	ID       uuid.UUID
	Author   uuid.UUID
	Content  string
	Creation time.Time
	Next     *uuid.UUID
}
