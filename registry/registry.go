// Package registry maintains the bidirectional mapping between realtime
// connections and sessions, drives the session lifecycle state machine and
// coordinates the ephemeral cross-process cache.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/logging"
)

// Options configure a Registry.
type Options struct {
	// SnapshotTTL is the sliding expiration for cached session snapshots.
	SnapshotTTL time.Duration
	// Logger used for lifecycle tracing. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry owns the connection<->session maps for one process instance. It
// is explicitly constructed and dependency-injected; there are no package
// level maps. A single mutex guards both maps so membership changes are
// atomic with respect to emptiness checks: deciding "this was the last
// connection" can never race with a concurrent join.
//
// The ephemeral cache is only eventually consistent with these maps. Cache
// writes happen after the in-process mutation with no transactional
// coupling; readers on other instances must tolerate brief staleness.
type Registry struct {
	store       core.Store
	cache       core.Cache
	broadcaster core.Broadcaster
	snapshotTTL time.Duration
	logger      logging.Logger

	mu       sync.Mutex
	sessions map[string]map[string]struct{} // sessionID -> set of connection ids
	conns    map[string]string              // connectionID -> sessionID
}

// New constructs a Registry over the given collaborators.
func New(store core.Store, cache core.Cache, broadcaster core.Broadcaster, optFns ...func(o *Options)) *Registry {
	opts := Options{
		SnapshotTTL: 30 * time.Minute,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		store:       store,
		cache:       cache,
		broadcaster: broadcaster,
		snapshotTTL: opts.SnapshotTTL,
		logger:      opts.Logger,
		sessions:    make(map[string]map[string]struct{}),
		conns:       make(map[string]string),
	}
}

// StartSession idempotently creates the persisted session, registers the
// calling connection in both maps, refreshes the cached snapshot and
// broadcasts a start event to the session group. Repeated calls with the
// same session id never create duplicate session records.
func (r *Registry) StartSession(ctx context.Context, sessionID, ownerID string, meta map[string]string, connID string) (*core.Session, error) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("lookup session %s: %w", sessionID, err)
		}
		session = &core.Session{
			ID:       sessionID,
			OwnerID:  ownerID,
			Status:   core.SessionActive,
			Started:  time.Now().UTC(),
			Metadata: meta,
		}
		if err := r.store.UpsertSession(ctx, *session); err != nil {
			return nil, fmt.Errorf("create session %s: %w", sessionID, err)
		}
	}

	r.mu.Lock()
	set, ok := r.sessions[sessionID]
	if !ok {
		set = make(map[string]struct{})
		r.sessions[sessionID] = set
	}
	set[connID] = struct{}{}
	r.conns[connID] = sessionID
	r.mu.Unlock()

	r.writeSnapshot(ctx, core.SessionSnapshot{
		SessionID:    sessionID,
		OwnerID:      session.OwnerID,
		Metadata:     meta,
		ConnectionID: connID,
		UpdatedAt:    time.Now().UTC(),
	})

	r.broadcaster.Publish(sessionID, core.NewEvent(core.EventSessionStarted, sessionID, session))
	r.logger.Info("session %s started, connection %s joined", sessionID, connID)

	return session, nil
}

// StopSession explicitly completes the session: status becomes Completed
// (terminal), the group is notified and the calling connection is removed
// from both maps. The broadcast happens before the removal so the stopping
// connection itself still receives the stop event even when it is the last
// member. When the connection set empties the cache entries are evicted.
func (r *Registry) StopSession(ctx context.Context, sessionID, connID string) error {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lookup session %s: %w", sessionID, err)
	}

	now := time.Now().UTC()
	session.Status = core.SessionCompleted
	session.Ended = &now
	if err := r.store.UpsertSession(ctx, *session); err != nil {
		return fmt.Errorf("complete session %s: %w", sessionID, err)
	}

	r.broadcaster.Publish(sessionID, core.NewEvent(core.EventSessionStopped, sessionID, session))

	if r.removeConnection(sessionID, connID) {
		r.evictSnapshot(ctx, sessionID)
	}
	r.evictConnection(ctx, connID)
	r.logger.Info("session %s stopped by connection %s", sessionID, connID)

	return nil
}

// OnDisconnect handles an unexpected connection drop. The owning session is
// resolved through the forward map and the connection is removed from both
// maps exactly once. When the resulting connection set is empty the cache
// entries are evicted and an Active session flips to Disconnected; a session
// already Completed or Disconnected is left untouched.
func (r *Registry) OnDisconnect(ctx context.Context, connID string) error {
	r.mu.Lock()
	sessionID, ok := r.conns[connID]
	r.mu.Unlock()
	if !ok {
		// Already removed or never registered.
		return nil
	}

	empty := r.removeConnection(sessionID, connID)
	r.evictConnection(ctx, connID)
	if !empty {
		r.logger.Debug("connection %s left session %s, others remain", connID, sessionID)
		return nil
	}

	r.evictSnapshot(ctx, sessionID)

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup session %s: %w", sessionID, err)
	}
	if session.Status != core.SessionActive {
		return nil
	}

	now := time.Now().UTC()
	session.Status = core.SessionDisconnected
	session.Ended = &now
	if err := r.store.UpsertSession(ctx, *session); err != nil {
		return fmt.Errorf("mark session %s disconnected: %w", sessionID, err)
	}
	r.logger.Info("session %s disconnected, last connection %s dropped", sessionID, connID)

	return nil
}

// removeConnection deletes the connection from both maps and reports whether
// the session's connection set became empty as a result. Removal happens at
// most once per connection; a second call for the same id is a no-op
// reporting false.
func (r *Registry) removeConnection(sessionID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[connID] != sessionID {
		return false
	}
	delete(r.conns, connID)

	set, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if _, member := set[connID]; !member {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.sessions, sessionID)
		return true
	}
	return false
}

// Connections returns a snapshot of the connection ids registered under the
// session.
func (r *Registry) Connections(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sessions[sessionID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// SessionFor resolves the session a connection is registered under.
func (r *Registry) SessionFor(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.conns[connID]
	return sessionID, ok
}

// Snapshot reads the cached session snapshot, if any instance wrote one.
func (r *Registry) Snapshot(ctx context.Context, sessionID string) (*core.SessionSnapshot, error) {
	data, ok, err := r.cache.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read snapshot for session %s: %w", sessionID, err)
	}
	if !ok {
		return nil, core.ErrNotFound
	}
	var snapshot core.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot for session %s: %w", sessionID, err)
	}
	return &snapshot, nil
}

func (r *Registry) writeSnapshot(ctx context.Context, snapshot core.SessionSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		r.logger.Warn("failed to encode snapshot for session %s: %v", snapshot.SessionID, err)
		return
	}
	if err := r.cache.Set(ctx, sessionKey(snapshot.SessionID), data, r.snapshotTTL); err != nil {
		r.logger.Warn("failed to cache snapshot for session %s: %v", snapshot.SessionID, err)
	}
	if err := r.cache.Set(ctx, connKey(snapshot.ConnectionID), []byte(snapshot.SessionID), r.snapshotTTL); err != nil {
		r.logger.Warn("failed to cache connection %s: %v", snapshot.ConnectionID, err)
	}
}

func (r *Registry) evictSnapshot(ctx context.Context, sessionID string) {
	if err := r.cache.Delete(ctx, sessionKey(sessionID)); err != nil {
		r.logger.Warn("failed to evict snapshot for session %s: %v", sessionID, err)
	}
}

// evictConnection removes the connection's cache key. Called on every
// departure so keys for connections that left early do not linger until TTL.
func (r *Registry) evictConnection(ctx context.Context, connID string) {
	if err := r.cache.Delete(ctx, connKey(connID)); err != nil {
		r.logger.Warn("failed to evict connection %s: %v", connID, err)
	}
}

func sessionKey(sessionID string) string { return "scribemesh:session:" + sessionID }

func connKey(connID string) string { return "scribemesh:conn:" + connID }
