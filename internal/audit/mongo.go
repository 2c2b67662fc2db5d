// Package audit mirrors every emitted activity to a durable sink so an
// operator can replay what was projected without needing tracker-side
// history. Purely additive: a failure here never gates or delays the
// tracker write it accompanies (SPEC_FULL.md "Activity audit sink").
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/boatri/linear-agent/internal/activity"
	"github.com/boatri/linear-agent/internal/telemetry"
)

// Sink records emitted activities. Implementations must be best-effort.
type Sink interface {
	Record(ctx context.Context, sessionID string, act activity.Activity)
}

// NopSink discards everything; used when no Mongo URI is configured.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, string, activity.Activity) {}

// doc is the Mongo document shape for one audited activity.
type doc struct {
	ID             string    `bson:"_id"`
	SessionID      string    `bson:"sessionId"`
	Type           string    `bson:"type"`
	Body           string    `bson:"body,omitempty"`
	Action         string    `bson:"action,omitempty"`
	Parameter      string    `bson:"parameter,omitempty"`
	Result         *string   `bson:"result,omitempty"`
	Ephemeral      bool      `bson:"ephemeral"`
	RecordedAtUnix int64     `bson:"recordedAtUnixMs"`
}

// MongoSink appends activities to a Mongo collection.
//
// Grounded on features/session/mongo/store.go's client-construction and
// document-shape conventions.
type MongoSink struct {
	coll   *mongo.Collection
	logger telemetry.Logger
}

// NewMongoSink constructs a MongoSink writing into database.collection.
func NewMongoSink(client *mongo.Client, database, collection string, logger telemetry.Logger) *MongoSink {
	if logger == nil {
		logger = telemetry.NewLogger()
	}
	return &MongoSink{
		coll:   client.Database(database).Collection(collection),
		logger: logger,
	}
}

// Record implements Sink. Failures are logged and otherwise ignored.
func (s *MongoSink) Record(ctx context.Context, sessionID string, act activity.Activity) {
	d := doc{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Type:           string(act.Content.Type),
		Body:           act.Content.Body,
		Action:         act.Content.Action,
		Parameter:      act.Content.Parameter,
		Result:         act.Content.Result,
		Ephemeral:      act.Ephemeral,
		RecordedAtUnix: time.Now().UnixMilli(),
	}
	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		s.logger.Warn(ctx, "audit: insert failed", "sessionId", sessionID, "error", err.Error())
	}
}

var _ Sink = (*MongoSink)(nil)
