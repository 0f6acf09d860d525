package interest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-chat/internal/model"
)

func TestRecord_ConversationDrain(t *testing.T) {
	r := NewRecord()
	conv := uuid.New()

	r.WatchConversation(conv)
	r.BumpConversation(conv)
	r.BumpConversation(conv)
	r.BumpConversation(conv)

	assert.Equal(t, 3, r.DrainConversation(conv))
	assert.Equal(t, 0, r.DrainConversation(conv), "second drain with no activity yields zero")
}

func TestRecord_BumpIgnoresUnwatched(t *testing.T) {
	r := NewRecord()
	conv := uuid.New()

	r.BumpConversation(conv)
	assert.Equal(t, 0, r.DrainConversation(conv))
}

func TestRecord_ResetConversation(t *testing.T) {
	r := NewRecord()
	conv := uuid.New()

	r.WatchConversation(conv)
	r.BumpConversation(conv)
	r.ResetConversation(conv)

	assert.Equal(t, 0, r.DrainConversation(conv))

	// The slot survives a reset: later activity still counts.
	r.BumpConversation(conv)
	assert.Equal(t, 1, r.DrainConversation(conv))
}

func TestRecord_UserActivityDrain(t *testing.T) {
	r := NewRecord()
	watched := uuid.New()
	c1 := &model.Conversation{ID: uuid.New(), Title: "one"}
	c2 := &model.Conversation{ID: uuid.New(), Title: "two"}

	r.AppendUserActivity(watched, c1)
	r.AppendUserActivity(watched, c2)

	got := r.DrainUserActivity(watched)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Title)
	assert.Equal(t, "two", got[1].Title)

	assert.Empty(t, r.DrainUserActivity(watched), "drain clears the list")
}

func TestRecord_UserActivityKeepsDuplicates(t *testing.T) {
	r := NewRecord()
	watched := uuid.New()
	c := &model.Conversation{ID: uuid.New(), Title: "general"}

	r.AppendUserActivity(watched, c)
	r.AppendUserActivity(watched, c)

	got := r.DrainUserActivity(watched)
	require.Len(t, got, 2, "a conversation touched twice appears twice")
	assert.Same(t, got[0], got[1])
}

func TestRecord_ClearUserActivity(t *testing.T) {
	r := NewRecord()
	watched := uuid.New()
	r.AppendUserActivity(watched, &model.Conversation{ID: uuid.New()})

	r.ClearUserActivity(watched)
	assert.Empty(t, r.DrainUserActivity(watched))
}

func TestRecord_DrainUnknownUserIsEmptyNotNil(t *testing.T) {
	r := NewRecord()
	got := r.DrainUserActivity(uuid.New())
	require.NotNil(t, got)
	assert.Empty(t, got)
}
