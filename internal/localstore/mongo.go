package localstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aquamarinepk/aqm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "local_state"

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps local state in a single collection, one document per key.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger aqm.Logger
	config *aqm.Config
}

func NewMongoStore(config *aqm.Config, logger aqm.Logger) *MongoStore {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &MongoStore{
		logger: logger,
		config: config,
	}
}

func (r *MongoStore) Start(ctx context.Context) error {
	var mongoURL, dbName string
	if r.config != nil {
		mongoURL, _ = r.config.GetString("db.mongo.url")
		dbName, _ = r.config.GetString("db.mongo.name")
	}
	connString := mongoURL
	if connString == "" {
		connString = "mongodb://localhost:27017"
	}
	if dbName == "" {
		dbName = "comanda_local"
	}

	clientOptions := options.Client().ApplyURI(connString).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)

	r.logger.Infof("Connected to MongoDB: %s, database: %s", connString, dbName)
	return nil
}

func (r *MongoStore) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (r *MongoStore) collection() (*mongo.Collection, error) {
	if r.db == nil {
		return nil, fmt.Errorf("mongo store not started")
	}
	return r.db.Collection(mongoCollection), nil
}

func (r *MongoStore) Get(ctx context.Context, key string, out interface{}) error {
	coll, err := r.collection()
	if err != nil {
		return err
	}

	var entry mongoEntry
	err = coll.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mongo get %s: %w", key, err)
	}
	return decodeValue([]byte(entry.Value), out)
}

func (r *MongoStore) Put(ctx context.Context, key string, value interface{}) error {
	coll, err := r.collection()
	if err != nil {
		return err
	}

	v, err := encodeValue(value)
	if err != nil {
		return err
	}

	entry := mongoEntry{Key: key, Value: string(v), UpdatedAt: time.Now().UTC()}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": key}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo put %s: %w", key, err)
	}
	return nil
}

func (r *MongoStore) Delete(ctx context.Context, key string) error {
	coll, err := r.collection()
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo delete %s: %w", key, err)
	}
	return nil
}

func (r *MongoStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	coll, err := r.collection()
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	cursor, err := coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("mongo keys %s: %w", prefix, err)
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var entry mongoEntry
		if err := cursor.Decode(&entry); err != nil {
			return nil, fmt.Errorf("mongo decode key: %w", err)
		}
		keys = append(keys, entry.Key)
	}
	return keys, cursor.Err()
}
