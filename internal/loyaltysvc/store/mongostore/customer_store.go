package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

type customerStore struct {
	c *mongo.Collection
}

func (s *customerStore) Create(ctx context.Context, cust *models.Customer) error {
	if _, err := s.c.InsertOne(ctx, cust); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("customer %s: %w", cust.ID, models.ErrConflict)
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (s *customerStore) findOne(ctx context.Context, filter bson.M) (*models.Customer, error) {
	var cust models.Customer
	err := s.c.FindOne(ctx, filter).Decode(&cust)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("customer: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &cust, nil
}

func (s *customerStore) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *customerStore) GetByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	return s.findOne(ctx, bson.M{"phone": phone, "active": true})
}

func (s *customerStore) ListActive(ctx context.Context) ([]models.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"active": true}, opts)
	out, err := decodeAll[models.Customer](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (s *customerStore) CountActive(ctx context.Context) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"active": true})
	if err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

func (s *customerStore) update(ctx context.Context, id string, update bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("customer %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *customerStore) UpdateNotes(ctx context.Context, id, notes string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"notes": notes}})
}

func (s *customerStore) Deactivate(ctx context.Context, id string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"active": false}})
}

func (s *customerStore) RecordVisit(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, id, bson.M{
		"$inc": bson.M{"totalVisits": 1, "totalStamps": 1},
		"$set": bson.M{"lastVisitAt": at},
	})
}
