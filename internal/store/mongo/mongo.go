// Package mongo implements store.Database on top of the MongoDB Go driver.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/store"
)

type ClientConfig struct {
	URI              string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	MaxPoolSize      uint64
}

type Client struct {
	client           *mongo.Client
	operationTimeout time.Duration
}

func Connect(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	clientOptions := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
		clientOptions.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingTimeout := cfg.ConnectTimeout
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Client{client: client, operationTimeout: cfg.OperationTimeout}, nil
}

func (c *Client) Database(name string) *Database {
	return &Database{name: name, db: c.client.Database(name), timeout: c.operationTimeout}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type Database struct {
	name    string
	db      *mongo.Database
	timeout time.Duration
}

var _ store.Database = (*Database)(nil)

func (d *Database) Name() string {
	return d.name
}

func (d *Database) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *Database) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections in %s: %w", d.name, err)
	}
	return names, nil
}

func (d *Database) Sample(ctx context.Context, collection string, limit int64) ([]document.Value, error) {
	return d.Find(ctx, collection, store.FindQuery{Limit: limit})
}

func (d *Database) IndexNames(ctx context.Context, collection string) ([]string, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	cursor, err := d.db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	names := make([]string, 0)
	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			return nil, fmt.Errorf("decode index of %s: %w", collection, err)
		}
		if name, ok := index["name"].(string); ok {
			names = append(names, name)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes of %s: %w", collection, err)
	}
	return names, nil
}

func (d *Database) Find(ctx context.Context, collection string, query store.FindQuery) ([]document.Value, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	findOptions := options.Find()
	if query.Projection.IsObject() && !query.Projection.IsEmpty() {
		findOptions.SetProjection(document.ToD(query.Projection))
	}
	if len(query.Sort) > 0 {
		findOptions.SetSort(sortDocument(query.Sort))
	}
	if query.Skip > 0 {
		findOptions.SetSkip(query.Skip)
	}
	if query.Limit > 0 {
		findOptions.SetLimit(query.Limit)
	}

	cursor, err := d.db.Collection(collection).Find(ctx, document.ToD(query.Filter), findOptions)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	return decodeAll(ctx, cursor, collection)
}

// sortDocument keeps the key order of the requested sort; the server applies
// keys left to right.
func sortDocument(keys []store.SortKey) bson.D {
	sortDoc := make(bson.D, 0, len(keys))
	for _, key := range keys {
		sortDoc = append(sortDoc, bson.E{Key: key.Field, Value: key.Direction})
	}
	return sortDoc
}

func (d *Database) Aggregate(ctx context.Context, collection string, pipeline []document.Value) ([]document.Value, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	stages := make([]bson.D, 0, len(pipeline))
	for _, stage := range pipeline {
		stages = append(stages, document.ToD(stage))
	}
	cursor, err := d.db.Collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	return decodeAll(ctx, cursor, collection)
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor, collection string) ([]document.Value, error) {
	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode documents of %s: %w", collection, err)
	}
	docs := make([]document.Value, 0, len(raw))
	for _, doc := range raw {
		docs = append(docs, document.FromBSON(doc))
	}
	return docs, nil
}

func (d *Database) InsertOne(ctx context.Context, collection string, doc document.Value) (document.Value, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	result, err := d.db.Collection(collection).InsertOne(ctx, document.ToD(doc))
	if err != nil {
		return document.Value{}, fmt.Errorf("insert into %s: %w", collection, err)
	}
	return document.FromBSON(result.InsertedID), nil
}

func (d *Database) InsertMany(ctx context.Context, collection string, docs []document.Value) ([]document.Value, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	payload := make([]any, 0, len(docs))
	for _, doc := range docs {
		payload = append(payload, document.ToD(doc))
	}
	result, err := d.db.Collection(collection).InsertMany(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("insert many into %s: %w", collection, err)
	}
	ids := make([]document.Value, 0, len(result.InsertedIDs))
	for _, id := range result.InsertedIDs {
		ids = append(ids, document.FromBSON(id))
	}
	return ids, nil
}

func (d *Database) UpdateOne(ctx context.Context, collection string, filter, update document.Value) (store.UpdateResult, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	result, err := d.db.Collection(collection).UpdateOne(ctx, document.ToD(filter), document.ToBSON(update))
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update one in %s: %w", collection, err)
	}
	return store.UpdateResult{Matched: result.MatchedCount, Modified: result.ModifiedCount}, nil
}

func (d *Database) UpdateMany(ctx context.Context, collection string, filter, update document.Value) (store.UpdateResult, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	result, err := d.db.Collection(collection).UpdateMany(ctx, document.ToD(filter), document.ToBSON(update))
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update many in %s: %w", collection, err)
	}
	return store.UpdateResult{Matched: result.MatchedCount, Modified: result.ModifiedCount}, nil
}

func (d *Database) DeleteOne(ctx context.Context, collection string, filter document.Value) (int64, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	result, err := d.db.Collection(collection).DeleteOne(ctx, document.ToD(filter))
	if err != nil {
		return 0, fmt.Errorf("delete one in %s: %w", collection, err)
	}
	return result.DeletedCount, nil
}

func (d *Database) DeleteMany(ctx context.Context, collection string, filter document.Value) (int64, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	result, err := d.db.Collection(collection).DeleteMany(ctx, document.ToD(filter))
	if err != nil {
		return 0, fmt.Errorf("delete many in %s: %w", collection, err)
	}
	return result.DeletedCount, nil
}
