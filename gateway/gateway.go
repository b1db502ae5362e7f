// Package gateway exposes the realtime websocket surface: inbound client
// operations, session-scoped broadcasts and the hand-off into the detached
// orchestration pipeline.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/logging"
	"github.com/scribemesh/scribemesh/pipeline"
	"github.com/scribemesh/scribemesh/registry"
)

// Request is the inbound JSON envelope. Op selects the operation; the
// remaining fields are op-specific.
type Request struct {
	Op        string            `json:"op"`
	SessionID string            `json:"session_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Segment   *SegmentRequest   `json:"segment,omitempty"`
	Skip      int               `json:"skip,omitempty"`
	Take      int               `json:"take,omitempty"`
}

// SegmentRequest carries one transcribed segment from the client.
type SegmentRequest struct {
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker"`
	Confidence float64 `json:"confidence"`
}

// Inbound operation names.
const (
	OpStartSession      = "start_session"
	OpStopSession       = "stop_session"
	OpProcessSegment    = "process_segment"
	OpGetSessionHistory = "get_session_history"
	OpGetUserSessions   = "get_user_sessions"
	OpGetCachedSnapshot = "get_cached_snapshot"
)

// Options configure a Gateway.
type Options struct {
	// Logger used for connection tracing. Defaults to NoOpLogger.
	Logger logging.Logger
	// CheckOrigin overrides the websocket origin policy. Defaults to
	// allowing all origins; production deployments should restrict this.
	CheckOrigin func(r *http.Request) bool
}

// Gateway upgrades HTTP requests to websocket connections and serves the
// inbound operation set. Each connection gets a dedicated read loop and
// write pump; orchestration passes run detached on the bounded pipeline
// queue so inbound reads are never blocked by agent execution.
type Gateway struct {
	hub      *Hub
	registry *registry.Registry
	pipe     *pipeline.Pipeline
	queue    *pipeline.Queue
	store    core.Store
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// New constructs a Gateway over the given collaborators.
func New(
	hub *Hub,
	reg *registry.Registry,
	pipe *pipeline.Pipeline,
	queue *pipeline.Queue,
	store core.Store,
	optFns ...func(o *Options),
) *Gateway {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		CheckOrigin: func(*http.Request) bool { return true },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{
		hub:      hub,
		registry: reg,
		pipe:     pipe,
		queue:    queue,
		store:    store,
		logger:   opts.Logger,
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
	}
}

// connState identifies one live connection. OwnerID comes from the
// authentication layer in front of the gateway (a reverse proxy header or
// query parameter); the gateway only enforces session ownership with it.
type connState struct {
	id      string
	ownerID string
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-User-ID")
	if ownerID == "" {
		ownerID = r.URL.Query().Get("user")
	}
	if ownerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	conn := &connState{id: core.NewID(), ownerID: ownerID}
	client := newWSClient(ws)
	g.hub.Add(conn.id, client)
	go client.writePump()

	g.logger.Info("connection %s opened for user %s", conn.id, ownerID)
	g.readLoop(conn, client)
}

// readLoop drains inbound frames until the connection drops, then runs the
// disconnect path exactly once.
func (g *Gateway) readLoop(conn *connState, client *wsClient) {
	defer func() {
		g.hub.Remove(conn.id)
		client.Close()
		// The triggering request is gone; disconnect cleanup gets its own
		// bounded context.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.registry.OnDisconnect(ctx, conn.id); err != nil {
			g.logger.Error("disconnect cleanup for %s failed: %v", conn.id, err)
		}
		g.logger.Info("connection %s closed", conn.id)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			g.hub.SendTo(conn.id, core.NewErrorEvent("", "malformed request"))
			continue
		}
		g.handle(conn, req)
	}
}

func (g *Gateway) handle(conn *connState, req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch req.Op {
	case OpStartSession:
		g.handleStartSession(ctx, conn, req)
	case OpStopSession:
		g.handleStopSession(ctx, conn, req)
	case OpProcessSegment:
		g.handleProcessSegment(ctx, conn, req)
	case OpGetSessionHistory:
		g.handleGetSessionHistory(ctx, conn, req)
	case OpGetUserSessions:
		g.handleGetUserSessions(ctx, conn, req)
	case OpGetCachedSnapshot:
		g.handleGetCachedSnapshot(ctx, conn, req)
	default:
		g.hub.SendTo(conn.id, core.NewErrorEvent(req.SessionID, "unknown operation: "+req.Op))
	}
}

func (g *Gateway) handleStartSession(ctx context.Context, conn *connState, req Request) {
	if req.SessionID == "" {
		g.hub.SendTo(conn.id, core.NewErrorEvent("", "session id required"))
		return
	}

	// Ownership is enforced before the join so a rejected client never
	// mutates group membership, the cached snapshot or the session status.
	existing, err := g.store.GetSession(ctx, req.SessionID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		g.logger.Error("session lookup %s failed: %v", req.SessionID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent(req.SessionID, "session lookup failed"))
		return
	}
	if existing != nil && existing.OwnerID != conn.ownerID {
		g.hub.SendTo(conn.id, core.NewErrorEvent(req.SessionID, "session belongs to another user"))
		return
	}

	if _, err := g.registry.StartSession(ctx, req.SessionID, conn.ownerID, req.Metadata, conn.id); err != nil {
		g.logger.Error("start session %s failed: %v", req.SessionID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent(req.SessionID, "failed to start session"))
	}
}

func (g *Gateway) handleStopSession(ctx context.Context, conn *connState, req Request) {
	session, ok := g.authorize(ctx, conn, req.SessionID)
	if !ok {
		return
	}
	if err := g.registry.StopSession(ctx, session.ID, conn.id); err != nil {
		g.logger.Error("stop session %s failed: %v", session.ID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent(session.ID, "failed to stop session"))
	}
}

func (g *Gateway) handleProcessSegment(ctx context.Context, conn *connState, req Request) {
	if req.Segment == nil || req.Segment.Text == "" {
		g.hub.SendTo(conn.id, core.NewErrorEvent(req.SessionID, "segment text must not be empty"))
		return
	}
	session, ok := g.authorize(ctx, conn, req.SessionID)
	if !ok {
		return
	}

	segment := core.Segment{
		ID:         core.NewID(),
		SessionID:  session.ID,
		Text:       req.Segment.Text,
		Speaker:    req.Segment.Speaker,
		Confidence: req.Segment.Confidence,
		Sequence:   session.SegmentCount + 1,
		Timestamp:  time.Now().UTC(),
	}
	if err := g.store.SaveSegment(ctx, segment); err != nil {
		g.logger.Error("save segment for session %s failed: %v", session.ID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent(session.ID, "failed to persist segment"))
		return
	}

	// The acknowledgement always precedes any broadcast produced by this
	// segment's orchestration pass: it is published inline before the pass
	// is even enqueued.
	g.hub.Publish(session.ID, core.NewSegmentReceivedEvent(segment))

	if err := g.queue.Submit(func(qctx context.Context) {
		g.runPass(qctx, segment)
	}); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			g.hub.Publish(session.ID, core.NewProcessingErrorEvent(session.ID, "processing capacity exceeded, segment skipped"))
			return
		}
		g.hub.Publish(session.ID, core.NewProcessingErrorEvent(session.ID, "processing unavailable"))
	}
}

// runPass executes one detached orchestration pass and broadcasts its
// output. qctx is the queue's base context, not the context of the request
// that enqueued the segment.
func (g *Gateway) runPass(qctx context.Context, segment core.Segment) {
	resp, err := g.pipe.ProcessSegment(qctx, segment)
	if err != nil {
		g.logger.Error("pipeline pass for segment %s failed: %v", segment.ID, err)
		g.hub.Publish(segment.SessionID, core.NewProcessingErrorEvent(segment.SessionID, "segment processing failed"))
		return
	}

	for _, name := range resp.TriggeredAgents {
		g.hub.Publish(segment.SessionID, core.NewEvent(core.EventAgentActivated, segment.SessionID, core.AgentActivatedPayload{
			AgentName:  name,
			Confidence: resp.AgentConfidence[name],
		}))
	}
	for _, doc := range resp.Documents {
		g.hub.Publish(segment.SessionID, core.NewEvent(core.EventDocumentGenerated, segment.SessionID, doc))
	}
	for _, action := range resp.Actions {
		g.hub.Publish(segment.SessionID, core.NewEvent(core.EventActionGenerated, segment.SessionID, action))
	}
	g.hub.Publish(segment.SessionID, core.NewEvent(core.EventProcessingCompleted, segment.SessionID, core.ProcessingCompletedPayload{
		TriggeredAgents:   resp.TriggeredAgents,
		DocumentCount:     len(resp.Documents),
		ActionCount:       len(resp.Actions),
		OverallConfidence: resp.Confidence,
	}))
}

func (g *Gateway) handleGetSessionHistory(ctx context.Context, conn *connState, req Request) {
	session, ok := g.authorize(ctx, conn, req.SessionID)
	if !ok {
		return
	}
	segments, err := g.store.ListSegments(ctx, session.ID)
	if err != nil {
		g.logger.Error("list segments for session %s failed: %v", session.ID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent(session.ID, "failed to load history"))
		return
	}
	g.hub.SendTo(conn.id, core.NewEvent(core.EventSessionHistory, session.ID, segments))
}

func (g *Gateway) handleGetUserSessions(ctx context.Context, conn *connState, req Request) {
	take := req.Take
	if take <= 0 || take > 100 {
		take = 20
	}
	sessions, err := g.store.ListUserSessions(ctx, conn.ownerID, req.Skip, take)
	if err != nil {
		g.logger.Error("list sessions for user %s failed: %v", conn.ownerID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent("", "failed to list sessions"))
		return
	}
	g.hub.SendTo(conn.id, core.NewEvent(core.EventUserSessions, "", sessions))
}

func (g *Gateway) handleGetCachedSnapshot(ctx context.Context, conn *connState, req Request) {
	snapshot, err := g.registry.Snapshot(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			g.hub.SendTo(conn.id, core.NewErrorEvent(req.SessionID, "no cached snapshot"))
			return
		}
		g.logger.Error("snapshot read for session %s failed: %v", req.SessionID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent(req.SessionID, "failed to read snapshot"))
		return
	}
	g.hub.SendTo(conn.id, core.NewEvent(core.EventSessionSnapshot, req.SessionID, snapshot))
}

// authorize resolves the session and enforces ownership. On failure the
// client receives an explicit Error event and (nil, false) is returned.
func (g *Gateway) authorize(ctx context.Context, conn *connState, sessionID string) (*core.Session, bool) {
	if sessionID == "" {
		g.hub.SendTo(conn.id, core.NewErrorEvent("", "session id required"))
		return nil, false
	}
	session, err := g.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			g.hub.SendTo(conn.id, core.NewErrorEvent(sessionID, "unknown session"))
			return nil, false
		}
		g.logger.Error("session lookup %s failed: %v", sessionID, err)
		g.hub.SendTo(conn.id, core.NewErrorEvent(sessionID, "session lookup failed"))
		return nil, false
	}
	if session.OwnerID != conn.ownerID {
		g.hub.SendTo(conn.id, core.NewErrorEvent(sessionID, "session belongs to another user"))
		return nil, false
	}
	return session, true
}
