// Package mongo implements the document store on MongoDB, one MongoDB
// collection per scheduler collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/lab-scheduler/internal/persistence"
)

// Store is a persistence.DocumentStore backed by MongoDB. Commit uses a
// multi-document transaction, which needs a replica set or sharded cluster.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Open connects, pings, and ensures indexes. The active-slot partial unique
// index needs MongoDB 6.0 or later for $in in partialFilterExpression.
func Open(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(database), logger: logger.With("store", "mongo")}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// legacyInstant matches start instants not in persistence.TimestampLayout.
var legacyInstant = bson.M{"startAt": bson.M{
	"$type": "string",
	"$ne":   "",
	"$not":  primitive.Regex{Pattern: `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`},
}}

// normalizeInstants rewrites legacy start instants in place so the
// active-slot index compares them by value.
func (s *Store) normalizeInstants(ctx context.Context) error {
	rewrite := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "startAt", Value: bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "date", Value: bson.D{{Key: "$dateFromString", Value: bson.D{{Key: "dateString", Value: "$startAt"}}}}},
		{Key: "format", Value: "%Y-%m-%dT%H:%M:%SZ"},
		{Key: "timezone", Value: "UTC"},
	}}}}}}}}
	for _, name := range []string{persistence.CollectionBookings, persistence.CollectionEvents} {
		res, err := s.db.Collection(name).UpdateMany(ctx, legacyInstant, rewrite)
		if err != nil {
			return fmt.Errorf("normalize %s instants: %w", name, err)
		}
		if res.ModifiedCount > 0 {
			s.logger.InfoContext(ctx, "normalized legacy instants", "collection", name, "documents", res.ModifiedCount)
		}
	}
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if err := s.normalizeInstants(ctx); err != nil {
		return err
	}
	_, err := s.db.Collection(persistence.CollectionBookings).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "lab", Value: 1}, {Key: "startAt", Value: 1}},
			Options: options.Index().
				SetName("idx_bookings_active_slot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": bson.A{"pending", "approved"}}}),
		},
		{Keys: bson.D{{Key: "date", Value: 1}, {Key: "lab", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure booking indexes: %w", err)
	}
	_, err = s.db.Collection(persistence.CollectionEvents).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}, {Key: "lab", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("ensure event indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Query implements persistence.DocumentStore.
func (s *Store) Query(ctx context.Context, q persistence.Query) ([]persistence.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "createdAt"
	}
	direction := 1
	if q.Descending {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: orderBy, Value: direction}, {Key: "_id", Value: direction}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, buildFilter(q.Filters), opts)
	if err != nil {
		return nil, mapError(err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, mapError(err)
	}

	records := make([]persistence.Record, 0, len(raw))
	for _, m := range raw {
		records = append(records, toRecord(m))
	}
	return records, nil
}

// Get implements persistence.DocumentStore.
func (s *Store) Get(ctx context.Context, collection, id string) (persistence.Record, error) {
	var m bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return persistence.Record{}, mapError(err)
	}
	return toRecord(m), nil
}

// Commit implements persistence.DocumentStore inside a session transaction.
func (s *Store) Commit(ctx context.Context, writes []persistence.Write) error {
	if err := persistence.ValidateWrites(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		return mapError(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, w := range persistence.OrderedWrites(writes) {
			if err := s.applyWrite(sc, w); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		err = mapError(err)
		s.logger.WarnContext(ctx, "commit failed", "writes", len(writes), "error", err)
	}
	return err
}

func (s *Store) applyWrite(ctx mongo.SessionContext, w persistence.Write) error {
	coll := s.db.Collection(w.Collection)
	switch w.Kind {
	case persistence.WriteSet:
		_, err := coll.ReplaceOne(ctx, bson.M{"_id": w.ID}, toBSON(w.Doc), options.Replace().SetUpsert(true))
		return err
	case persistence.WriteUpdate:
		res, err := coll.UpdateOne(ctx, bson.M{"_id": w.ID}, bson.M{"$set": toBSON(w.Doc)})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, persistence.ErrNotFound)
		}
		return nil
	case persistence.WriteDelete:
		_, err := coll.DeleteOne(ctx, bson.M{"_id": w.ID})
		return err
	}
	return fmt.Errorf("%w: unknown write kind %q", persistence.ErrInvalidQuery, w.Kind)
}

func buildFilter(filters []persistence.Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		cond, _ := out[f.Field].(bson.M)
		if cond == nil {
			cond = bson.M{}
		}
		switch f.Op {
		case persistence.OpEqual:
			cond["$eq"] = f.Value
		case persistence.OpGTE:
			cond["$gte"] = f.Value
		case persistence.OpLTE:
			cond["$lte"] = f.Value
		case persistence.OpIn:
			cond["$in"] = f.Value
		}
		out[f.Field] = cond
	}
	return out
}

func toBSON(doc persistence.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func toRecord(m bson.M) persistence.Record {
	id, _ := m["_id"].(string)
	doc := make(persistence.Document, len(m))
	for k, v := range m {
		if k == "_id" {
			continue
		}
		doc[k] = normalize(v)
	}
	return persistence.Record{ID: id, Doc: doc}
}

// normalize converts driver container types into plain Go values.
func normalize(v any) any {
	switch typed := v.(type) {
	case primitive.A:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalize(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = normalize(item)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(typed))
		for _, e := range typed {
			out[e.Key] = normalize(e.Value)
		}
		return out
	}
	return v
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return persistence.ErrNotFound
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrInvalidQuery):
		return err
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}
