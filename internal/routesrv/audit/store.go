// Package audit persists route change history in MongoDB. Documents are
// keyed by event_id with a unique index, so at-least-once delivery from the
// event log still yields exactly one document per committed mutation.
package audit

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/common/correlation"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/eventlog"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

// MaxQueryLimit caps audit queries to keep response sizes bounded.
const MaxQueryLimit = 1000

// ErrAudit is the base error for audit store failures.
var ErrAudit = apperrors.New("audit store error").SetStatusCode(http.StatusInternalServerError)

// RouteRef is the identifier block embedded in every audit document.
type RouteRef struct {
	Tenant  string `bson:"tenant" json:"tenant"`
	Service string `bson:"service" json:"service"`
	Env     string `bson:"env" json:"env"`
	Version string `bson:"version" json:"version"`
}

// Document is one audit record as stored and returned.
type Document struct {
	EventID       string         `bson:"event_id" json:"event_id"`
	EventType     string         `bson:"event_type" json:"event_type"`
	Action        string         `bson:"action" json:"action"`
	Route         RouteRef       `bson:"route" json:"route"`
	URL           string         `bson:"url" json:"url"`
	PreviousURL   string         `bson:"previous_url,omitempty" json:"previous_url,omitempty"`
	PreviousState string         `bson:"previous_state,omitempty" json:"previous_state,omitempty"`
	ChangedBy     string         `bson:"changed_by,omitempty" json:"changed_by,omitempty"`
	OccurredAt    time.Time      `bson:"occurred_at" json:"occurred_at"`
	ProcessedAt   time.Time      `bson:"processed_at" json:"processed_at"`
	CorrelationID string         `bson:"correlation_id,omitempty" json:"correlation_id,omitempty"`
	Metadata      map[string]any `bson:"metadata" json:"metadata,omitempty"`
}

// Store is the MongoDB-backed audit store.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	opTimeout  time.Duration
}

// NewStore connects to MongoDB and ensures the indices exist.
func NewStore(ctx context.Context, cfg *config.MongoConfig) (*Store, error) {
	opTimeout := time.Duration(cfg.OperationTimeout) * time.Second

	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to mongodb")
		return nil, err
	}
	if err := client.Ping(cctx, nil); err != nil {
		log.Error().Err(err).Msg("failed to ping mongodb")
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		opTimeout:  opTimeout,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("connected to mongodb")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "route.tenant", Value: 1},
				{Key: "route.service", Value: 1},
				{Key: "route.env", Value: 1},
				{Key: "route.version", Value: 1},
				{Key: "occurred_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "occurred_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "action", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create audit indexes")
	}
	return err
}

// Insert stores the event as an audit document. A duplicate event_id means
// the event was already processed on an earlier delivery; that is reported
// as duplicate=true, not an error.
func (s *Store) Insert(ctx context.Context, event eventlog.RouteEvent) (duplicate bool, aerr apperrors.Error) {
	occurredAt, err := time.Parse(time.RFC3339, event.OccurredAt)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	correlationID := event.CorrelationID
	if correlationID == "" {
		correlationID = correlation.FromContext(ctx)
	}

	doc := Document{
		EventID:       event.EventID,
		EventType:     event.EventType,
		Action:        event.Action,
		Route:         RouteRef(event.RouteID()),
		URL:           event.URL,
		PreviousURL:   event.PreviousURL,
		PreviousState: event.PreviousState,
		ChangedBy:     event.ChangedBy,
		OccurredAt:    occurredAt,
		ProcessedAt:   time.Now().UTC(),
		CorrelationID: correlationID,
		Metadata:      map[string]any{},
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Ctx(ctx).Debug().Str("event_id", event.EventID).Msg("audit document already exists, skipping")
			return true, nil
		}
		return false, classify(ctx, err, "failed to insert audit document")
	}
	log.Ctx(ctx).Info().Str("event_id", event.EventID).Str("action", event.Action).Msg("audit document saved")
	return false, nil
}

// QueryOptions narrows an audit history query. Every field is optional; an
// empty QueryOptions returns the most recent documents across all routes.
type QueryOptions struct {
	// Route scopes the query to a single identifier when non-nil.
	Route *routecommon.RouteID
	// Action filters to a single action when non-empty.
	Action string
	// Since and Until bound occurred_at when non-zero.
	Since time.Time
	Until time.Time
	// Limit caps the result count; values outside (0, MaxQueryLimit] are
	// clamped.
	Limit int
}

func (o QueryOptions) filter() bson.M {
	filter := bson.M{}
	if o.Route != nil {
		filter["route.tenant"] = o.Route.Tenant
		filter["route.service"] = o.Route.Service
		filter["route.env"] = o.Route.Env
		filter["route.version"] = o.Route.Version
	}
	if o.Action != "" {
		filter["action"] = o.Action
	}
	timeRange := bson.M{}
	if !o.Since.IsZero() {
		timeRange["$gte"] = o.Since
	}
	if !o.Until.IsZero() {
		timeRange["$lte"] = o.Until
	}
	if len(timeRange) > 0 {
		filter["occurred_at"] = timeRange
	}
	return filter
}

// History returns the matching audit documents, newest first.
func (s *Store) History(ctx context.Context, opts QueryOptions) ([]Document, apperrors.Error) {
	filter := opts.filter()

	limit := opts.Limit
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, classify(ctx, err, "failed to query audit history")
	}
	defer cursor.Close(ctx)

	var docs []Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(ctx, err, "failed to decode audit documents")
	}
	return docs, nil
}

// Ping verifies connectivity for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func classify(ctx context.Context, err error, msg string) apperrors.Error {
	log.Ctx(ctx).Error().Err(err).Msg(msg)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return resilience.ErrTransient.MsgErr(msg, err)
	}
	return ErrAudit.MsgErr(msg, err)
}
