package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectToDB connects to MONGODB_URI (or uri when given) and returns the
// database named in the URI path. Transactions need a replica set deployment.
func ConnectToDB(uri string) (*mongo.Database, error) {
	if uri == "" {
		uri = os.Getenv("MONGODB_URI")
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse MongoDB URI: %w", err)
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		dbName = "loyalty"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	return client.Database(dbName), nil
}

// IndexSpec describes one secondary index. A non-empty PartialFilter limits
// the index, and its uniqueness, to matching documents.
type IndexSpec struct {
	Collection    string
	Keys          bson.D
	Unique        bool
	PartialFilter bson.D
}

// CreateIndexes creates each index, logging and returning the first failure.
func CreateIndexes(ctx context.Context, db *mongo.Database, specs []IndexSpec) error {
	for _, spec := range specs {
		opts := options.Index().SetUnique(spec.Unique)
		if len(spec.PartialFilter) > 0 {
			opts.SetPartialFilterExpression(spec.PartialFilter)
		}
		indexModel := mongo.IndexModel{
			Keys:    spec.Keys,
			Options: opts,
		}

		name, err := db.Collection(spec.Collection).Indexes().CreateOne(ctx, indexModel)
		if err != nil {
			log.Errorf("create index on %s: %v", spec.Collection, err)
			return fmt.Errorf("create index on %s: %w", spec.Collection, err)
		}
		log.Debugf("index %s ready on %s", name, spec.Collection)
	}
	return nil
}
