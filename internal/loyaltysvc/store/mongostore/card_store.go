package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

type cardStore struct {
	c *mongo.Collection
}

func (s *cardStore) Create(ctx context.Context, card *models.Card) error {
	return insertCard(ctx, s.c, card)
}

func (s *cardStore) Get(ctx context.Context, id string) (*models.Card, error) {
	return findCard(ctx, s.c, bson.M{"_id": id})
}

func (s *cardStore) GetActiveByCustomer(ctx context.Context, customerID string) (*models.Card, error) {
	return findCard(ctx, s.c, bson.M{"customerId": customerID, "status": models.CardActive})
}

func (s *cardStore) ListByCustomer(ctx context.Context, customerID string) ([]models.Card, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"customerId": customerID}, opts)
	out, err := decodeAll[models.Card](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("list cards of %s: %w", customerID, err)
	}
	return out, nil
}

type eventStore struct {
	c *mongo.Collection
}

func (s *eventStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.StampEvent, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	out, err := decodeAll[models.StampEvent](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("list stamp events: %w", err)
	}
	return out, nil
}

func (s *eventStore) ListByCard(ctx context.Context, cardID string) ([]models.StampEvent, error) {
	return s.find(ctx, bson.M{"cardId": cardID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *eventStore) ListSince(ctx context.Context, from time.Time) ([]models.StampEvent, error) {
	return s.find(ctx, bson.M{"createdAt": bson.M{"$gte": from}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (s *eventStore) ListRecent(ctx context.Context, limit int) ([]models.StampEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{}, opts)
}

func (s *eventStore) CountBySource(ctx context.Context, source models.EventSource) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"source": source})
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", source, err)
	}
	return n, nil
}
