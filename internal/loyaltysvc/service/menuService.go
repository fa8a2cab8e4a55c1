package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

type MenuService struct {
	menu store.MenuStore
}

func NewMenuService(menu store.MenuStore) *MenuService {
	return &MenuService{menu: menu}
}

// All returns every section and item, including hidden ones.
func (s *MenuService) All(ctx context.Context) ([]models.MenuSection, error) {
	return s.menu.ListSections(ctx)
}

// Public returns what customers see.
func (s *MenuService) Public(ctx context.Context) ([]models.MenuSection, error) {
	sections, err := s.menu.ListSections(ctx)
	if err != nil {
		return nil, err
	}
	return models.PublicMenu(sections), nil
}

func (s *MenuService) CreateSection(ctx context.Context, sec models.MenuSection) (*models.MenuSection, error) {
	if err := sec.Validate(); err != nil {
		return nil, err
	}
	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	sec.SchemaVersion = models.MenuSchemaVersion
	items := sec.Items
	sec.Items = []models.MenuItem{}
	for _, it := range items {
		if err := prepareItem(&it); err != nil {
			return nil, err
		}
		sec.Items = append(sec.Items, it)
	}
	if err := s.menu.CreateSection(ctx, &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

// UpdateSection changes the section fields; its items stay as they are.
func (s *MenuService) UpdateSection(ctx context.Context, id string, sec models.MenuSection) (*models.MenuSection, error) {
	if err := sec.Validate(); err != nil {
		return nil, err
	}
	sec.ID = id
	sec.SchemaVersion = models.MenuSchemaVersion
	if err := s.menu.UpdateSection(ctx, &sec); err != nil {
		return nil, err
	}
	return s.menu.GetSection(ctx, id)
}

func (s *MenuService) DeleteSection(ctx context.Context, id string) error {
	return s.menu.DeleteSection(ctx, id)
}

func (s *MenuService) AddItem(ctx context.Context, sectionID string, it models.MenuItem) (*models.MenuItem, error) {
	if err := prepareItem(&it); err != nil {
		return nil, err
	}
	if err := s.menu.AddItem(ctx, sectionID, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *MenuService) UpdateItem(ctx context.Context, sectionID, itemID string, it models.MenuItem) (*models.MenuItem, error) {
	it.ID = itemID
	if err := prepareItem(&it); err != nil {
		return nil, err
	}
	if err := s.menu.UpdateItem(ctx, sectionID, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *MenuService) DeleteItem(ctx context.Context, sectionID, itemID string) error {
	return s.menu.DeleteItem(ctx, sectionID, itemID)
}

func prepareItem(it *models.MenuItem) error {
	if err := it.Validate(); err != nil {
		return err
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.SchemaVersion = models.MenuSchemaVersion
	return nil
}
