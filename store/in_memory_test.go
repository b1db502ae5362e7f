package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemesh/scribemesh/core"
)

// Interface compliance
var _ core.Store = (*InMemory)(nil)

func TestInMemory_GetSession_NotFound(t *testing.T) {
	s := NewInMemory()
	_, err := s.GetSession(context.Background(), "absent")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemory_UpsertAndGetSession(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	session := core.Session{ID: "sess-1", OwnerID: "user-1", Status: core.SessionActive, Started: time.Now().UTC()}
	require.NoError(t, s.UpsertSession(ctx, session))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session, *got)

	// The returned session is a copy.
	got.Status = core.SessionCompleted
	again, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, again.Status)
}

func TestInMemory_UpsertSession_PreservesSegmentCount(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	session := core.Session{ID: "sess-1", OwnerID: "user-1", Status: core.SessionActive}
	require.NoError(t, s.UpsertSession(ctx, session))
	require.NoError(t, s.SaveSegment(ctx, core.Segment{ID: "seg-1", SessionID: "sess-1", Sequence: 1}))

	// A status update carrying a zero count must not reset the counter.
	session.Status = core.SessionCompleted
	require.NoError(t, s.UpsertSession(ctx, session))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.SegmentCount)
}

func TestInMemory_SaveSegment_BumpsCount(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, core.Session{ID: "sess-1"}))
	require.NoError(t, s.SaveSegment(ctx, core.Segment{ID: "seg-1", SessionID: "sess-1", Sequence: 1}))
	require.NoError(t, s.SaveSegment(ctx, core.Segment{ID: "seg-2", SessionID: "sess-1", Sequence: 2}))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.SegmentCount)
}

func TestInMemory_ListSegments_OrderedBySequence(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.SaveSegment(ctx, core.Segment{ID: "seg-3", SessionID: "sess-1", Sequence: 3}))
	require.NoError(t, s.SaveSegment(ctx, core.Segment{ID: "seg-1", SessionID: "sess-1", Sequence: 1}))
	require.NoError(t, s.SaveSegment(ctx, core.Segment{ID: "seg-2", SessionID: "sess-1", Sequence: 2}))

	segments, err := s.ListSegments(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, "seg-1", segments[0].ID)
	assert.Equal(t, "seg-2", segments[1].ID)
	assert.Equal(t, "seg-3", segments[2].ID)
}

func TestInMemory_ListUserSessions_PagedMostRecentFirst(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.UpsertSession(ctx, core.Session{
			ID:      fmt.Sprintf("sess-%d", i),
			OwnerID: "user-1",
			Started: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.UpsertSession(ctx, core.Session{ID: "other", OwnerID: "user-2", Started: base}))

	page, err := s.ListUserSessions(ctx, "user-1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "sess-4", page[0].ID)
	assert.Equal(t, "sess-3", page[1].ID)

	page, err = s.ListUserSessions(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "sess-2", page[0].ID)

	page, err = s.ListUserSessions(ctx, "user-1", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestInMemory_DeleteSession_RemovesOwnedArtifacts(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, core.Session{ID: "sess-1", OwnerID: "user-1"}))
	require.NoError(t, s.SaveSegment(ctx, core.Segment{ID: "seg-1", SessionID: "sess-1"}))
	require.NoError(t, s.SaveDocument(ctx, core.Document{ID: "doc-1", SessionID: "sess-1"}))
	require.NoError(t, s.SaveAction(ctx, core.ActionItem{ID: "act-1", SessionID: "sess-1"}))
	require.NoError(t, s.SaveAuditRecord(ctx, core.AuditRecord{ID: "aud-1", SessionID: "sess-1"}))

	require.NoError(t, s.DeleteSession(ctx, "sess-1"))

	_, err := s.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	segments, _ := s.ListSegments(ctx, "sess-1")
	assert.Empty(t, segments)
	docs, _ := s.ListDocuments(ctx, "sess-1")
	assert.Empty(t, docs)
	actions, _ := s.ListActions(ctx, "sess-1")
	assert.Empty(t, actions)
	audits, _ := s.ListAuditRecords(ctx, "sess-1")
	assert.Empty(t, audits)
}

func TestInMemory_DeleteSession_NotFound(t *testing.T) {
	s := NewInMemory()
	err := s.DeleteSession(context.Background(), "absent")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
