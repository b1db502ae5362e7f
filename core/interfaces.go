package core

import (
	"context"
	"time"
)

// Agent defines the capability interface every processing agent implements.
//
// Agents are the pluggable units of domain logic in ScribeMesh. They receive
// a SegmentContext (segment plus extraction results), decide whether they
// apply, and produce generated artifacts. New agents register under a unique
// name in an explicit registry table; there is no reflection-based discovery.
//
// Implementations must:
//   - Respect context cancellation in Process
//   - Be safe for concurrent invocation (one dispatch pass runs agents in parallel)
//   - Never persist artifacts themselves; the dispatcher owns persistence
type Agent interface {
	Name() string
	ShouldActivate(ctx context.Context, segCtx SegmentContext) bool
	Process(ctx context.Context, segCtx SegmentContext) (AgentResult, error)
}

// Extractor is the external entity/intent extraction collaborator. Retries
// of transient failures happen inside the implementation, not in the core.
type Extractor interface {
	ExtractEntities(ctx context.Context, text string) ([]ExtractedEntity, error)
	ClassifyIntent(ctx context.Context, segment Segment, entities []ExtractedEntity) (IntentClassification, error)
}

// Store is the persistence collaborator. Implementations must treat
// GetSession misses as ErrNotFound and delete session-owned artifacts
// (segments, documents, actions, audit records) together in DeleteSession.
type Store interface {
	SaveSegment(ctx context.Context, segment Segment) error
	SaveDocument(ctx context.Context, doc Document) error
	SaveAction(ctx context.Context, action ActionItem) error
	SaveAuditRecord(ctx context.Context, record AuditRecord) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpsertSession(ctx context.Context, session Session) error
	ListSegments(ctx context.Context, sessionID string) ([]Segment, error)
	ListUserSessions(ctx context.Context, ownerID string, skip, take int) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Cache is the ephemeral cross-process key/value store used to share
// session/connection snapshots between server instances. It is only
// eventually consistent with in-process registry mutations; readers must
// tolerate brief staleness.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// ConfigProvider supplies the current agent activation configs. It is
// consulted once per segment so config changes take effect without restart.
type ConfigProvider interface {
	AgentConfigs() map[string]AgentConfig
}

// Broadcaster pushes an event to every realtime connection currently
// registered under a session.
type Broadcaster interface {
	Publish(sessionID string, event Event)
}
