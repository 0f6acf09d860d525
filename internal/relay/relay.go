// ABOUTME: Idempotent ingestion of peer-server bundles
// ABOUTME: Already-present ids are skipped; new entities keep their given ids and times

package relay

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/controller"
	"github.com/2389/fold-chat/internal/store"
)

// Component is one entity carried in a bundle: its id, its text field
// (name, title or body) and its creation time at the origin server.
type Component struct {
	ID   uuid.UUID
	Text string
	Time time.Time
}

// Bundle is a (user, conversation, message) triple gossiped from a
// peer server. The user is both the conversation owner and the message
// author.
type Bundle struct {
	User         Component
	Conversation Component
	Message      Component
}

// Ingestor materializes bundles through the controller's explicit-id
// entry points. Runs on the run loop like every other mutator.
type Ingestor struct {
	store      *store.Store
	controller *controller.Controller
	logger     *slog.Logger
}

// NewIngestor creates an ingestor. Pass nil logger for the default.
func NewIngestor(st *store.Store, ctrl *controller.Controller, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:      st,
		controller: ctrl,
		logger:     logger.With("component", "relay"),
	}
}

// Ingest applies one bundle. Each component is skipped if its id is
// already present, so replayed or re-gossiped bundles are harmless.
// Reports whether every component ended up present.
func (i *Ingestor) Ingest(b Bundle) bool {
	if _, ok := i.store.UserByID(b.User.ID); !ok {
		if i.controller.NewUserWithID(b.User.ID, b.User.Text, b.User.Time) == nil {
			i.logger.Warn("bundle user rejected", "user_id", b.User.ID)
			return false
		}
	}
	if _, ok := i.store.ConversationByID(b.Conversation.ID); !ok {
		if i.controller.NewConversationWithID(b.Conversation.ID, b.Conversation.Text, b.User.ID, b.Conversation.Time) == nil {
			i.logger.Warn("bundle conversation rejected", "conversation_id", b.Conversation.ID)
			return false
		}
	}
	if _, ok := i.store.MessageByID(b.Message.ID); !ok {
		if i.controller.NewMessageWithID(b.Message.ID, b.User.ID, b.Conversation.ID, b.Message.Text, b.Message.Time) == nil {
			i.logger.Warn("bundle message rejected", "message_id", b.Message.ID)
			return false
		}
	}
	return true
}
