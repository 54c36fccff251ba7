package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podagg/config"
)

// MongoDBService persists resolved geolocations so they survive restarts.
// It is a CacheStore over the geo_locations collection; documents expire
// through a TTL index on created_at.
type MongoDBService struct {
	client  *mongo.Client
	db      *mongo.Database
	enabled bool
}

const CollectionGeoLocations = "geo_locations"

type geoDocument struct {
	Key       string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	CreatedAt time.Time `bson:"created_at"`
}

func NewMongoDBService(cfg *config.Config) (*MongoDBService, error) {
	if !cfg.MongoDB.Enabled {
		log.Println("MongoDB is disabled in configuration")
		return &MongoDBService{enabled: false}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.MongoDB.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	service := &MongoDBService{
		client:  client,
		db:      client.Database(cfg.MongoDB.Database),
		enabled: true,
	}

	if err := service.createIndexes(ctx, cfg.GeoCacheTTLDuration()); err != nil {
		log.Printf("Warning: Failed to create indexes: %v", err)
	}

	log.Printf("MongoDB connected successfully to database: %s", cfg.MongoDB.Database)
	return service, nil
}

func (m *MongoDBService) Enabled() bool {
	return m != nil && m.enabled
}

func (m *MongoDBService) createIndexes(ctx context.Context, ttl time.Duration) error {
	if !m.enabled {
		return nil
	}

	_, err := m.db.Collection(CollectionGeoLocations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().
			SetName("created_at_ttl").
			SetExpireAfterSeconds(int32(ttl.Seconds())),
	})
	return err
}

func (m *MongoDBService) Close() error {
	if !m.Enabled() || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDBService) collection() *mongo.Collection {
	return m.db.Collection(CollectionGeoLocations)
}

func (m *MongoDBService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !m.Enabled() {
		return nil, false, nil
	}

	var doc geoDocument
	err := m.collection().FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo find %s: %w", key, err)
	}
	return doc.Payload, true, nil
}

// Set upserts the payload. Expiry is owned by the TTL index, so ttl is unused.
func (m *MongoDBService) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if !m.Enabled() {
		return nil
	}

	doc := geoDocument{Key: key, Payload: value, CreatedAt: time.Now().UTC()}
	_, err := m.collection().ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert %s: %w", key, err)
	}
	return nil
}

func (m *MongoDBService) Delete(ctx context.Context, key string) error {
	if !m.Enabled() {
		return nil
	}
	_, err := m.collection().DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *MongoDBService) Clear(ctx context.Context, prefix string) (int, error) {
	if !m.Enabled() {
		return 0, nil
	}
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	res, err := m.collection().DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
