// Package remote implements the authoritative backend store. All access goes
// through the application layer's resilience guard; nothing here assumes the
// server is reachable.
package remote

import (
	"context"
	"fmt"
	"time"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// collectionDoc stores one entity collection as a single blob, mirroring the
// blob-per-key model of the local tiers so push/pull stay wholesale replaces.
type collectionDoc struct {
	ID        string    `bson:"_id"`
	Entity    string    `bson:"entity"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoBackend implements RemoteBackend using MongoDB.
type MongoBackend struct {
	collections *mongo.Collection
	client      *mongo.Client
}

// NewMongoBackend creates a new MongoDB-backed remote store.
func NewMongoBackend(client *mongo.Client, db *mongo.Database) ports.RemoteBackend {
	return &MongoBackend{
		collections: db.Collection("collections"),
		client:      client,
	}
}

// Ping checks connectivity against the primary.
func (b *MongoBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping remote backend: %w", err)
	}
	return nil
}

// PushCollection replaces the server-side collection for one type.
func (b *MongoBackend) PushCollection(ctx context.Context, typ domain.EntityType, col domain.Collection) error {
	blob, err := domain.EncodeCollection(col)
	if err != nil {
		return err
	}

	doc := collectionDoc{
		ID:        domain.CollectionKey(typ),
		Entity:    string(typ),
		Data:      string(blob),
		UpdatedAt: time.Now(),
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}

	if _, err := b.collections.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to push %s collection: %w", typ, err)
	}
	return nil
}

// PullCollection fetches the server-side collection for one type. A missing
// document means the server holds nothing for that type and returns (nil, nil).
func (b *MongoBackend) PullCollection(ctx context.Context, typ domain.EntityType, subdomain string) (domain.Collection, error) {
	var doc collectionDoc
	filter := bson.M{"_id": domain.CollectionKey(typ)}

	err := b.collections.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pull %s collection: %w", typ, err)
	}

	col, err := domain.DecodeCollection([]byte(doc.Data))
	if err != nil {
		return nil, err
	}
	if subdomain != "" {
		col = col.Filter(domain.BySubdomain(subdomain))
	}
	return col, nil
}
