// Package mongostore is the MongoDB implementation of repository.Store and
// the default backend.  Documents are encoded from the model structs via
// their bson tags; collection names and indexes live here.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/peer-support/internal/repository"
)

const (
	ColUsers     = "users"
	ColMessages  = "messages"
	ColResponses = "responses"
)

// Store talks to one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ repository.Store = (*Store)(nil)

// NewStore connects to uri, pings, and makes sure the indexes exist.
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		// The unique indexes back the email and one-response guarantees,
		// so a store without them is not usable.
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ensure indexes: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}
	indexes := []idx{
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}, false},

		{ColMessages, bson.D{{Key: "user_id", Value: 1}}, false},

		{ColResponses, bson.D{{Key: "message_id", Value: 1}}, true},
		{ColResponses, bson.D{{Key: "motivator_id", Value: 1}}, false},
	}
	for _, ix := range indexes {
		model := mongo.IndexModel{Keys: ix.keys}
		if ix.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(ix.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("%s: %w", ix.col, err)
		}
		slog.Debug("mongostore: index ready", "collection", ix.col, "unique", ix.unique)
	}
	return nil
}
