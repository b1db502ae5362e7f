package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scribemesh/scribemesh/core"
)

// Mongo is a durable core.Store implementation over a MongoDB database with
// one collection per record kind. Session ids are the document _id so
// upserts are natural and duplicate session rows cannot exist.
type Mongo struct {
	sessions *mongo.Collection
	segments *mongo.Collection
	docs     *mongo.Collection
	actions  *mongo.Collection
	audits   *mongo.Collection
}

// NewMongo constructs a store over an existing database handle. The caller
// owns the client lifecycle.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		sessions: db.Collection("sessions"),
		segments: db.Collection("segments"),
		docs:     db.Collection("documents"),
		actions:  db.Collection("actions"),
		audits:   db.Collection("audit_records"),
	}
}

// SaveSegment persists the segment and bumps the session's segment counter.
func (s *Mongo) SaveSegment(ctx context.Context, segment core.Segment) error {
	if _, err := s.segments.InsertOne(ctx, segment); err != nil {
		return fmt.Errorf("insert segment %s: %w", segment.ID, err)
	}
	_, err := s.sessions.UpdateByID(ctx, segment.SessionID, bson.M{"$inc": bson.M{"segment_count": 1}})
	if err != nil {
		return fmt.Errorf("bump segment count for session %s: %w", segment.SessionID, err)
	}
	return nil
}

// SaveDocument persists a generated document.
func (s *Mongo) SaveDocument(ctx context.Context, doc core.Document) error {
	if _, err := s.docs.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

// SaveAction persists a generated action item.
func (s *Mongo) SaveAction(ctx context.Context, action core.ActionItem) error {
	if _, err := s.actions.InsertOne(ctx, action); err != nil {
		return fmt.Errorf("insert action %s: %w", action.ID, err)
	}
	return nil
}

// SaveAuditRecord persists an audit record.
func (s *Mongo) SaveAuditRecord(ctx context.Context, record core.AuditRecord) error {
	if _, err := s.audits.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert audit record %s: %w", record.ID, err)
	}
	return nil
}

// GetSession returns the session or core.ErrNotFound.
func (s *Mongo) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var session core.Session
	err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("find session %s: %w", id, err)
	}
	return &session, nil
}

// UpsertSession creates or replaces the session record by id.
func (s *Mongo) UpsertSession(ctx context.Context, session core.Session) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, opts); err != nil {
		return fmt.Errorf("upsert session %s: %w", session.ID, err)
	}
	return nil
}

// ListSegments returns the session's segments ordered by sequence.
func (s *Mongo) ListSegments(ctx context.Context, sessionID string) ([]core.Segment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})
	cursor, err := s.segments.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find segments for session %s: %w", sessionID, err)
	}
	segments := []core.Segment{}
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, fmt.Errorf("decode segments for session %s: %w", sessionID, err)
	}
	return segments, nil
}

// ListUserSessions returns a page of the owner's sessions, most recently
// started first.
func (s *Mongo) ListUserSessions(ctx context.Context, ownerID string, skip, take int) ([]core.Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started", Value: -1}}).
		SetSkip(int64(skip))
	if take > 0 {
		opts = opts.SetLimit(int64(take))
	}
	cursor, err := s.sessions.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find sessions for owner %s: %w", ownerID, err)
	}
	sessions := []core.Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions for owner %s: %w", ownerID, err)
	}
	return sessions, nil
}

// DeleteSession removes the session and every artifact it owns.
func (s *Mongo) DeleteSession(ctx context.Context, id string) error {
	res, err := s.sessions.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	owned := bson.M{"session_id": id}
	for _, coll := range []*mongo.Collection{s.segments, s.docs, s.actions, s.audits} {
		if _, err := coll.DeleteMany(ctx, owned); err != nil {
			return fmt.Errorf("delete artifacts of session %s: %w", id, err)
		}
	}
	return nil
}
