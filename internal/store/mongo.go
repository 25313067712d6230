package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoCollectionName = "newsflow_collections"
	defaultMongoRetries = 10
)

// mongoDoc is one stored collection. Version is bumped on every write and
// used as the compare-and-swap guard in Update.
type mongoDoc struct {
	Key     string `bson:"_id"`
	Body    string `bson:"body"`
	Version int64  `bson:"version"`
}

// mongoDocs is the slice of the driver the backend needs.
type mongoDocs interface {
	find(ctx context.Context, key string) (*mongoDoc, error)
	// insert reports false when a document with that key already exists.
	insert(ctx context.Context, doc mongoDoc) (bool, error)
	// swap replaces the body only if the stored version still matches.
	swap(ctx context.Context, key string, version int64, body string) (bool, error)
	put(ctx context.Context, key, body string) error
}

// MongoBackend keeps each key as one document. Update is optimistic: a
// writer that lost the race re-reads and runs fn again.
type MongoBackend struct {
	docs       mongoDocs
	client     *mongo.Client
	maxRetries int
}

// NewMongoBackend connects to uri and uses database db.
func NewMongoBackend(ctx context.Context, uri, db string) (*MongoBackend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Println("✅ Connected to MongoDB")

	coll := client.Database(db).Collection(mongoCollectionName)
	return &MongoBackend{docs: &driverDocs{coll: coll}, client: client, maxRetries: defaultMongoRetries}, nil
}

func newMongoBackend(docs mongoDocs) *MongoBackend {
	return &MongoBackend{docs: docs, maxRetries: defaultMongoRetries}
}

func (m *MongoBackend) Read(ctx context.Context, key string) ([]byte, error) {
	doc, err := m.docs.find(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("mongo read %s: %w", key, err)
	}
	if doc == nil {
		return nil, nil
	}
	return []byte(doc.Body), nil
}

func (m *MongoBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := m.docs.put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("mongo write %s: %w", key, err)
	}
	return nil
}

func (m *MongoBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		doc, err := m.docs.find(ctx, key)
		if err != nil {
			return fmt.Errorf("mongo update %s: %w", key, err)
		}

		var current []byte
		if doc != nil {
			current = []byte(doc.Body)
		}
		next, err := fn(current)
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		if err != nil {
			return err
		}

		var ok bool
		if doc == nil {
			ok, err = m.docs.insert(ctx, mongoDoc{Key: key, Body: string(next), Version: 1})
		} else {
			ok, err = m.docs.swap(ctx, key, doc.Version, string(next))
		}
		if err != nil {
			return fmt.Errorf("mongo update %s: %w", key, err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("mongo update %s: gave up after %d conflicting writes", key, m.maxRetries)
}

func (m *MongoBackend) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(context.Background())
}

// driverDocs implements mongoDocs on a real collection.
type driverDocs struct {
	coll *mongo.Collection
}

func (d *driverDocs) find(ctx context.Context, key string) (*mongoDoc, error) {
	var doc mongoDoc
	err := d.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *driverDocs) insert(ctx context.Context, doc mongoDoc) (bool, error) {
	_, err := d.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return err == nil, err
}

func (d *driverDocs) swap(ctx context.Context, key string, version int64, body string) (bool, error) {
	res, err := d.coll.UpdateOne(ctx,
		bson.M{"_id": key, "version": version},
		bson.M{"$set": bson.M{"body": body, "version": version + 1}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (d *driverDocs) put(ctx context.Context, key, body string) error {
	_, err := d.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"body": body}, "$inc": bson.M{"version": 1}},
		options.Update().SetUpsert(true),
	)
	return err
}
