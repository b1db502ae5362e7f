package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemesh/scribemesh/cache"
	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/internal/testutil"
	"github.com/scribemesh/scribemesh/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.InMemory, *cache.InMemory, *testutil.RecordingBroadcaster) {
	t.Helper()
	st := store.NewInMemory()
	c := cache.NewInMemory(0)
	b := &testutil.RecordingBroadcaster{}
	return New(st, c, b), st, c, b
}

func TestRegistry_StartSession_CreatesAndRegisters(t *testing.T) {
	reg, st, c, b := newTestRegistry(t)
	ctx := context.Background()

	session, err := reg.StartSession(ctx, "sess-1", "user-1", map[string]string{"room": "3"}, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, session.Status)
	assert.Equal(t, "user-1", session.OwnerID)

	stored, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, stored.Status)

	assert.Equal(t, []string{"conn-1"}, reg.Connections("sess-1"))
	sessionID, ok := reg.SessionFor("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "sess-1", sessionID)

	snapshot, err := reg.Snapshot(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", snapshot.SessionID)
	assert.Equal(t, "user-1", snapshot.OwnerID)
	assert.Equal(t, "conn-1", snapshot.ConnectionID)

	// The connection key resolves back to the session on any instance.
	data, ok, err := c.Get(ctx, "scribemesh:conn:conn-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sess-1", string(data))

	started := b.EventsOfType(core.EventSessionStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "sess-1", started[0].SessionID)
}

func TestRegistry_StartSession_Idempotent(t *testing.T) {
	reg, st, _, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-1")
	require.NoError(t, err)

	second, err := reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-2")
	require.NoError(t, err)
	assert.Equal(t, first.Started, second.Started)

	sessions, err := st.ListUserSessions(ctx, "user-1", 0, 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Len(t, reg.Connections("sess-1"), 2)
}

func TestRegistry_StopSession_CompletesAndEvicts(t *testing.T) {
	reg, st, c, b := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-1")
	require.NoError(t, err)

	require.NoError(t, reg.StopSession(ctx, "sess-1", "conn-1"))

	session, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, session.Status)
	require.NotNil(t, session.Ended)

	assert.Empty(t, reg.Connections("sess-1"))
	_, ok := reg.SessionFor("conn-1")
	assert.False(t, ok)

	_, err = reg.Snapshot(ctx, "sess-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, ok, err = c.Get(ctx, "scribemesh:conn:conn-1")
	require.NoError(t, err)
	assert.False(t, ok)

	stopped := b.EventsOfType(core.EventSessionStopped)
	require.Len(t, stopped, 1)
}

func TestRegistry_CompletedNotOverwrittenByDisconnect(t *testing.T) {
	reg, st, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-1")
	require.NoError(t, err)
	_, err = reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-2")
	require.NoError(t, err)

	// Explicit stop while a second connection is still registered.
	require.NoError(t, reg.StopSession(ctx, "sess-1", "conn-1"))
	require.NoError(t, reg.OnDisconnect(ctx, "conn-2"))

	session, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, session.Status)
}

func TestRegistry_OnDisconnect_LastConnectionFlipsToDisconnected(t *testing.T) {
	reg, st, c, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-a")
	require.NoError(t, err)
	_, err = reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-b")
	require.NoError(t, err)

	// First drop leaves the session active and its snapshot cached, but the
	// departing connection's own key is evicted right away.
	require.NoError(t, reg.OnDisconnect(ctx, "conn-a"))
	session, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, session.Status)
	_, ok, err := c.Get(ctx, "scribemesh:session:sess-1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = c.Get(ctx, "scribemesh:conn:conn-a")
	require.NoError(t, err)
	assert.False(t, ok)

	// Last drop evicts the snapshot and flips the status.
	require.NoError(t, reg.OnDisconnect(ctx, "conn-b"))
	session, err = st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionDisconnected, session.Status)
	require.NotNil(t, session.Ended)
	_, ok, err = c.Get(ctx, "scribemesh:session:sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_OnDisconnect_UnknownConnectionIsNoOp(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	assert.NoError(t, reg.OnDisconnect(context.Background(), "conn-ghost"))
}

func TestRegistry_OnDisconnect_RepeatedCallIsNoOp(t *testing.T) {
	reg, st, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-1")
	require.NoError(t, err)

	require.NoError(t, reg.OnDisconnect(ctx, "conn-1"))
	require.NoError(t, reg.OnDisconnect(ctx, "conn-1"))

	session, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionDisconnected, session.Status)
}

func TestRegistry_ManyConnectionsOneSession(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	conns := []string{"c1", "c2", "c3", "c4"}
	for _, id := range conns {
		_, err := reg.StartSession(ctx, "sess-1", "user-1", nil, id)
		require.NoError(t, err)
	}
	assert.Len(t, reg.Connections("sess-1"), 4)

	for i, id := range conns {
		require.NoError(t, reg.OnDisconnect(ctx, id))
		assert.Len(t, reg.Connections("sess-1"), len(conns)-i-1)
	}
}

func TestRegistry_SnapshotTTLOption(t *testing.T) {
	st := store.NewInMemory()
	c := cache.NewInMemory(0)
	reg := New(st, c, &testutil.RecordingBroadcaster{}, func(o *Options) {
		o.SnapshotTTL = time.Nanosecond
	})
	ctx := context.Background()

	_, err := reg.StartSession(ctx, "sess-1", "user-1", nil, "conn-1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = reg.Snapshot(ctx, "sess-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
