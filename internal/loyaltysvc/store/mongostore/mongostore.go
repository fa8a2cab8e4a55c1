// Package mongostore implements store.Store on MongoDB. Card transactions use
// sessions with WithTransaction, which retries on transient write conflicts.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/avvvet/loyalty-services/internal/db"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

type Store struct {
	db *mongo.Database
}

var _ store.Store = (*Store)(nil)

func New(database *mongo.Database) *Store {
	return &Store{db: database}
}

// Indexes backing the lookups the service performs.
var Indexes = []db.IndexSpec{
	{Collection: store.CustomersCollection, Keys: bson.D{{Key: "phone", Value: 1}, {Key: "active", Value: 1}}},
	{Collection: store.CustomersCollection, Keys: bson.D{{Key: "active", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: store.CardsCollection, Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "status", Value: 1}}},
	// one active customer per phone and one active card per customer
	{
		Collection:    store.CustomersCollection,
		Keys:          bson.D{{Key: "phone", Value: 1}},
		Unique:        true,
		PartialFilter: bson.D{{Key: "active", Value: true}},
	},
	{
		Collection:    store.CardsCollection,
		Keys:          bson.D{{Key: "customerId", Value: 1}},
		Unique:        true,
		PartialFilter: bson.D{{Key: "status", Value: string(models.CardActive)}},
	},
	{Collection: store.StampEventsCollection, Keys: bson.D{{Key: "cardId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: store.StampEventsCollection, Keys: bson.D{{Key: "createdAt", Value: 1}}},
	{Collection: store.StampEventsCollection, Keys: bson.D{{Key: "source", Value: 1}}},
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return db.CreateIndexes(ctx, s.db, Indexes)
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) Customers() store.CustomerStore      { return &customerStore{c: s.col(store.CustomersCollection)} }
func (s *Store) Cards() store.CardStore              { return &cardStore{c: s.col(store.CardsCollection)} }
func (s *Store) Events() store.StampEventStore       { return &eventStore{c: s.col(store.StampEventsCollection)} }
func (s *Store) Rewards() store.RewardStore          { return &rewardStore{c: s.col(store.RewardsCollection)} }
func (s *Store) Menu() store.MenuStore               { return &menuStore{c: s.col(store.MenuSectionsCollection)} }
func (s *Store) AdminConfig() store.AdminConfigStore { return &adminStore{c: s.col(store.ConfigCollection)} }

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	t := &mongoTx{
		cards:  s.col(store.CardsCollection),
		events: s.col(store.StampEventsCollection),
	}

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, t)
	}, txOpts)
	return err
}

type mongoTx struct {
	cards  *mongo.Collection
	events *mongo.Collection
}

func (t *mongoTx) GetCard(ctx context.Context, id string) (*models.Card, error) {
	return findCard(ctx, t.cards, bson.M{"_id": id})
}

func (t *mongoTx) UpdateCard(ctx context.Context, card *models.Card) error {
	res, err := t.cards.ReplaceOne(ctx, bson.M{"_id": card.ID}, card)
	if err != nil {
		return fmt.Errorf("update card %s: %w", card.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("card %s: %w", card.ID, models.ErrNotFound)
	}
	return nil
}

func (t *mongoTx) CreateCard(ctx context.Context, card *models.Card) error {
	return insertCard(ctx, t.cards, card)
}

func (t *mongoTx) InsertStampEvent(ctx context.Context, ev *models.StampEvent) error {
	if _, err := t.events.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("insert stamp event: %w", err)
	}
	return nil
}

func findCard(ctx context.Context, c *mongo.Collection, filter bson.M) (*models.Card, error) {
	var card models.Card
	err := c.FindOne(ctx, filter).Decode(&card)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("card: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find card: %w", err)
	}
	return &card, nil
}

func insertCard(ctx context.Context, c *mongo.Collection, card *models.Card) error {
	if _, err := c.InsertOne(ctx, card); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("card %s: %w", card.ID, models.ErrConflict)
		}
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
