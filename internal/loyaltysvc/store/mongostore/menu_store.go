package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

// menuStore keeps items embedded in their section document, so deleting a
// section removes its items in the same write.
type menuStore struct {
	c *mongo.Collection
}

func (s *menuStore) ListSections(ctx context.Context) ([]models.MenuSection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	out, err := decodeAll[models.MenuSection](ctx, cur, err)
	if err != nil {
		return nil, fmt.Errorf("list menu sections: %w", err)
	}
	models.SortMenu(out)
	return out, nil
}

func (s *menuStore) GetSection(ctx context.Context, id string) (*models.MenuSection, error) {
	var sec models.MenuSection
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("menu section %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find menu section: %w", err)
	}
	return &sec, nil
}

func (s *menuStore) CreateSection(ctx context.Context, sec *models.MenuSection) error {
	if sec.Items == nil {
		sec.Items = []models.MenuItem{}
	}
	if _, err := s.c.InsertOne(ctx, sec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("menu section %s: %w", sec.ID, models.ErrConflict)
		}
		return fmt.Errorf("insert menu section: %w", err)
	}
	return nil
}

func (s *menuStore) update(ctx context.Context, filter, update bson.M, what string) error {
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}

func (s *menuStore) UpdateSection(ctx context.Context, sec *models.MenuSection) error {
	return s.update(ctx, bson.M{"_id": sec.ID}, bson.M{"$set": bson.M{
		"title":         sec.Title,
		"description":   sec.Description,
		"type":          sec.Type,
		"order":         sec.Order,
		"active":        sec.Active,
		"schemaVersion": sec.SchemaVersion,
	}}, "menu section "+sec.ID)
}

func (s *menuStore) DeleteSection(ctx context.Context, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete menu section %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("menu section %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *menuStore) AddItem(ctx context.Context, sectionID string, it *models.MenuItem) error {
	return s.update(ctx, bson.M{"_id": sectionID},
		bson.M{"$push": bson.M{"items": it}}, "menu section "+sectionID)
}

func (s *menuStore) UpdateItem(ctx context.Context, sectionID string, it *models.MenuItem) error {
	return s.update(ctx, bson.M{"_id": sectionID, "items.id": it.ID},
		bson.M{"$set": bson.M{"items.$": it}}, "menu item "+it.ID)
}

func (s *menuStore) DeleteItem(ctx context.Context, sectionID, itemID string) error {
	return s.update(ctx, bson.M{"_id": sectionID, "items.id": itemID},
		bson.M{"$pull": bson.M{"items": bson.M{"id": itemID}}}, "menu item "+itemID)
}

type rewardStore struct {
	c *mongo.Collection
}

func (s *rewardStore) Get(ctx context.Context, id string) (*models.Reward, error) {
	var r models.Reward
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("reward %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find reward: %w", err)
	}
	return &r, nil
}

func (s *rewardStore) CreateIfMissing(ctx context.Context, r *models.Reward) (bool, error) {
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert reward: %w", err)
	}
	return true, nil
}

type adminStore struct {
	c *mongo.Collection
}

func (s *adminStore) Get(ctx context.Context) (*models.AdminConfig, error) {
	var cfg models.AdminConfig
	err := s.c.FindOne(ctx, bson.M{"_id": store.AdminConfigID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("admin config: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find admin config: %w", err)
	}
	return &cfg, nil
}

func (s *adminStore) Put(ctx context.Context, cfg *models.AdminConfig) error {
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": store.AdminConfigID}, cfg, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store admin config: %w", err)
	}
	return nil
}
