// Package store provides core.Store implementations: a process-local
// in-memory store for tests and prototypes, and a MongoDB backed store for
// durable deployments.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/scribemesh/scribemesh/core"
)

// InMemory is a volatile core.Store implementation keeping all records in
// process local maps guarded by an RWMutex. Returned sessions are copies so
// callers cannot mutate internal state. Session-owned artifacts (segments,
// documents, actions, audit records) are removed together in DeleteSession.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]core.Session
	segments map[string][]core.Segment
	docs     map[string][]core.Document
	actions  map[string][]core.ActionItem
	audits   map[string][]core.AuditRecord
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		sessions: make(map[string]core.Session),
		segments: make(map[string][]core.Segment),
		docs:     make(map[string][]core.Document),
		actions:  make(map[string][]core.ActionItem),
		audits:   make(map[string][]core.AuditRecord),
	}
}

// SaveSegment appends the segment to its session's history.
func (s *InMemory) SaveSegment(_ context.Context, segment core.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[segment.SessionID] = append(s.segments[segment.SessionID], segment)
	if sess, ok := s.sessions[segment.SessionID]; ok {
		sess.SegmentCount++
		s.sessions[segment.SessionID] = sess
	}
	return nil
}

// SaveDocument stores a generated document under its session.
func (s *InMemory) SaveDocument(_ context.Context, doc core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.SessionID] = append(s.docs[doc.SessionID], doc)
	return nil
}

// SaveAction stores a generated action item under its session.
func (s *InMemory) SaveAction(_ context.Context, action core.ActionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action.SessionID] = append(s.actions[action.SessionID], action)
	return nil
}

// SaveAuditRecord stores an audit record under its session.
func (s *InMemory) SaveAuditRecord(_ context.Context, record core.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[record.SessionID] = append(s.audits[record.SessionID], record)
	return nil
}

// GetSession returns a copy of the session or core.ErrNotFound.
func (s *InMemory) GetSession(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := sess
	return &cp, nil
}

// UpsertSession creates or replaces the session record.
func (s *InMemory) UpsertSession(_ context.Context, session core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[session.ID]; ok && session.SegmentCount == 0 {
		session.SegmentCount = existing.SegmentCount
	}
	s.sessions[session.ID] = session
	return nil
}

// ListSegments returns the session's segments ordered by sequence. The slice
// is a snapshot safe for caller mutation.
func (s *InMemory) ListSegments(_ context.Context, sessionID string) ([]core.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segments := make([]core.Segment, len(s.segments[sessionID]))
	copy(segments, s.segments[sessionID])
	sort.Slice(segments, func(i, j int) bool { return segments[i].Sequence < segments[j].Sequence })
	return segments, nil
}

// ListUserSessions returns a page of the owner's sessions, most recently
// started first.
func (s *InMemory) ListUserSessions(_ context.Context, ownerID string, skip, take int) ([]core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var owned []core.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			owned = append(owned, sess)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].Started.After(owned[j].Started) })
	if skip >= len(owned) {
		return []core.Session{}, nil
	}
	owned = owned[skip:]
	if take > 0 && take < len(owned) {
		owned = owned[:take]
	}
	return owned, nil
}

// DeleteSession removes the session and every artifact it owns.
func (s *InMemory) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.segments, id)
	delete(s.docs, id)
	delete(s.actions, id)
	delete(s.audits, id)
	return nil
}

// ListDocuments returns the session's generated documents. Snapshot copy.
func (s *InMemory) ListDocuments(_ context.Context, sessionID string) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]core.Document, len(s.docs[sessionID]))
	copy(docs, s.docs[sessionID])
	return docs, nil
}

// ListAuditRecords returns the session's audit trail. Snapshot copy.
func (s *InMemory) ListAuditRecords(_ context.Context, sessionID string) ([]core.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audits := make([]core.AuditRecord, len(s.audits[sessionID]))
	copy(audits, s.audits[sessionID])
	return audits, nil
}

// ListActions returns the session's action items. Snapshot copy.
func (s *InMemory) ListActions(_ context.Context, sessionID string) ([]core.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actions := make([]core.ActionItem, len(s.actions[sessionID]))
	copy(actions, s.actions[sessionID])
	return actions, nil
}
