// Package mongo implements ports.AuditStore on MongoDB.
//
// Audit entries land in a per-environment database ("{env}_signals") so
// test and staging traffic never commingles with production audit history.
// Tenancy is a field plus index, one collection for all organizations.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/growthkit/signalbus/pkg/domain"
)

// ColSignalLogs is the audit trail collection.
const ColSignalLogs = "signal_logs"

// Store implements ports.AuditStore backed by MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to MongoDB and prepares the environment-scoped database.
//
// uri: connection URI, e.g. "mongodb://localhost:27017"
// env: deployment environment, e.g. "prod", "staging"; becomes the database prefix.
func NewStore(uri, env string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo audit store: connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo audit store: ping failed: %w", err)
	}

	return NewFromClient(client, env)
}

// NewFromClient builds the store from an existing client, e.g. one shared
// with the surrounding application.
func NewFromClient(client *mongo.Client, env string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := &Store{
		client: client,
		db:     client.Database(env + "_signals"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongo audit store: ensure indexes failed: %w", err)
	}

	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) col() *mongo.Collection {
	return s.db.Collection(ColSignalLogs)
}

// ensureIndexes creates the tenant-scoped read index.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.col().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "signal_id", Value: 1}}},
	})
	return err
}

// Record persists one immutable audit entry.
func (s *Store) Record(ctx context.Context, entry domain.AuditEntry) error {
	if _, err := s.col().InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries for an organization, newest first.
func (s *Store) ListRecent(ctx context.Context, organizationID string, limit int) ([]domain.AuditEntry, error) {
	filter := bson.D{{Key: "organization_id", Value: organizationID}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.col().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var entries []domain.AuditEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}
	return entries, nil
}
