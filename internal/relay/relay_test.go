package relay

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-chat/internal/auth"
	"github.com/2389/fold-chat/internal/controller"
	"github.com/2389/fold-chat/internal/ident"
	"github.com/2389/fold-chat/internal/store"
	"github.com/2389/fold-chat/internal/txlog"
)

type fixture struct {
	ingestor *Ingestor
	store    *store.Store
	ctrl     *controller.Controller
	logPath  string
	credPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.txt")
	credPath := filepath.Join(dir, "passwords.txt")

	w, err := txlog.NewWriter(logPath, 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	cf, err := txlog.OpenCredentialFile(credPath)
	require.NoError(t, err)
	t.Cleanup(func() { cf.Close() })

	st := store.New()
	ctrl := controller.New(st, ident.New(uuid.New(), 7), w, auth.NewCredentials(nil), cf, nil, nil)
	return &fixture{
		ingestor: NewIngestor(st, ctrl, nil),
		store:    st,
		ctrl:     ctrl,
		logPath:  logPath,
		credPath: credPath,
	}
}

func testBundle() Bundle {
	at := time.UnixMilli(1700000000000)
	return Bundle{
		User:         Component{ID: uuid.New(), Text: "peer-user", Time: at},
		Conversation: Component{ID: uuid.New(), Text: "peer-topic", Time: at},
		Message:      Component{ID: uuid.New(), Text: "hello from afar", Time: at.Add(time.Second)},
	}
}

func TestIngest_MaterializesAllComponents(t *testing.T) {
	f := newFixture(t)
	b := testBundle()

	require.True(t, f.ingestor.Ingest(b))

	u, ok := f.store.UserByID(b.User.ID)
	require.True(t, ok)
	assert.Equal(t, "peer-user", u.Name)
	assert.Equal(t, b.User.Time, u.Creation)

	c, ok := f.store.ConversationByID(b.Conversation.ID)
	require.True(t, ok)
	assert.Equal(t, b.User.ID, c.Owner)

	m, ok := f.store.MessageByID(b.Message.ID)
	require.True(t, ok)
	assert.Equal(t, b.User.ID, m.Author)

	p, ok := f.store.PayloadByID(b.Conversation.ID)
	require.True(t, ok)
	require.NotNil(t, p.First)
	assert.Equal(t, b.Message.ID, *p.First)
}

func TestIngest_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	b := testBundle()

	require.True(t, f.ingestor.Ingest(b))
	require.True(t, f.ingestor.Ingest(b))

	assert.Equal(t, 1, f.store.UserCount())
	assert.Equal(t, 1, f.store.MessageCount())
}

func TestIngest_LaterMessagesExtendConversation(t *testing.T) {
	f := newFixture(t)
	b := testBundle()
	require.True(t, f.ingestor.Ingest(b))

	b2 := b
	b2.Message = Component{ID: uuid.New(), Text: "second", Time: b.Message.Time.Add(time.Second)}
	require.True(t, f.ingestor.Ingest(b2))

	p, _ := f.store.PayloadByID(b.Conversation.ID)
	assert.Equal(t, b.Message.ID, *p.First)
	assert.Equal(t, b2.Message.ID, *p.Last)
}

func TestIngest_NeverBootstrapsAdmin(t *testing.T) {
	f := newFixture(t)
	b := testBundle()

	require.True(t, f.ingestor.Ingest(b))
	assert.False(t, f.store.IsAdmin(b.User.ID))

	// The relayed user already occupies the store, so a later local
	// user does not bootstrap either.
	local := f.ctrl.NewUser("local")
	require.NotNil(t, local)
	assert.False(t, f.store.IsAdmin(local.ID))
}

func TestIngest_IsNotLogged(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ingestor.Ingest(testBundle()))
	require.NoError(t, f.ctrl.Flush())

	replayed := 0
	require.NoError(t, txlog.Replay(f.logPath, func(txlog.Record) error {
		replayed++
		return nil
	}))
	assert.Zero(t, replayed)
}

func TestIngest_RejectsCollidingMessageID(t *testing.T) {
	f := newFixture(t)
	b := testBundle()
	require.True(t, f.ingestor.Ingest(b))

	// A different bundle reusing an existing message id for its user
	// cannot be fully materialized.
	bad := testBundle()
	bad.User.ID = b.Message.ID
	assert.False(t, f.ingestor.Ingest(bad))
}
