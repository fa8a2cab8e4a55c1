package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

const selectSection = `
	SELECT id, title, description, type, sort_order, active, items, schema_version
	FROM menu_sections`

// menuStore keeps a section's items in a JSONB column; item edits rewrite
// the array under a row lock.
type menuStore struct {
	db *pgxpool.Pool
}

func scanSection(row pgx.Row) (*models.MenuSection, error) {
	var (
		sec models.MenuSection
		typ string
	)
	if err := row.Scan(&sec.ID, &sec.Title, &sec.Description, &typ, &sec.Order,
		&sec.Active, &sec.Items, &sec.SchemaVersion); err != nil {
		return nil, err
	}
	sec.Type = models.SectionType(typ)
	if sec.Items == nil {
		sec.Items = []models.MenuItem{}
	}
	return &sec, nil
}

func (s *menuStore) ListSections(ctx context.Context) ([]models.MenuSection, error) {
	rows, err := s.db.Query(ctx, selectSection+` ORDER BY sort_order`)
	if err != nil {
		return nil, fmt.Errorf("list menu sections: %w", err)
	}
	defer rows.Close()

	out := []models.MenuSection{}
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu section: %w", err)
		}
		out = append(out, *sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortMenu(out)
	return out, nil
}

func (s *menuStore) GetSection(ctx context.Context, id string) (*models.MenuSection, error) {
	sec, err := scanSection(s.db.QueryRow(ctx, selectSection+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "menu section "+id)
	}
	return sec, nil
}

func (s *menuStore) CreateSection(ctx context.Context, sec *models.MenuSection) error {
	if sec.Items == nil {
		sec.Items = []models.MenuItem{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO menu_sections (id, title, description, type, sort_order, active, items, schema_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sec.ID, sec.Title, sec.Description, string(sec.Type), sec.Order, sec.Active, sec.Items, sec.SchemaVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("menu section %s: %w", sec.ID, models.ErrConflict)
		}
		return fmt.Errorf("insert menu section: %w", err)
	}
	return nil
}

func (s *menuStore) UpdateSection(ctx context.Context, sec *models.MenuSection) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE menu_sections
		SET title = $2, description = $3, type = $4, sort_order = $5, active = $6, schema_version = $7
		WHERE id = $1`,
		sec.ID, sec.Title, sec.Description, string(sec.Type), sec.Order, sec.Active, sec.SchemaVersion)
	if err != nil {
		return fmt.Errorf("update menu section %s: %w", sec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("menu section %s: %w", sec.ID, models.ErrNotFound)
	}
	return nil
}

func (s *menuStore) DeleteSection(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM menu_sections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete menu section %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("menu section %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *menuStore) withItems(ctx context.Context, sectionID string, fn func(items []models.MenuItem) ([]models.MenuItem, error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sec, err := scanSection(tx.QueryRow(ctx, selectSection+` WHERE id = $1 FOR UPDATE`, sectionID))
	if err != nil {
		return notFound(err, "menu section "+sectionID)
	}
	items, err := fn(sec.Items)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE menu_sections SET items = $2 WHERE id = $1`, sectionID, items); err != nil {
		return fmt.Errorf("write items of %s: %w", sectionID, err)
	}
	return tx.Commit(ctx)
}

func (s *menuStore) AddItem(ctx context.Context, sectionID string, it *models.MenuItem) error {
	return s.withItems(ctx, sectionID, func(items []models.MenuItem) ([]models.MenuItem, error) {
		return append(items, *it), nil
	})
}

func (s *menuStore) UpdateItem(ctx context.Context, sectionID string, it *models.MenuItem) error {
	return s.withItems(ctx, sectionID, func(items []models.MenuItem) ([]models.MenuItem, error) {
		for i := range items {
			if items[i].ID == it.ID {
				items[i] = *it
				return items, nil
			}
		}
		return nil, fmt.Errorf("menu item %s: %w", it.ID, models.ErrNotFound)
	})
}

func (s *menuStore) DeleteItem(ctx context.Context, sectionID, itemID string) error {
	return s.withItems(ctx, sectionID, func(items []models.MenuItem) ([]models.MenuItem, error) {
		for i := range items {
			if items[i].ID == itemID {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("menu item %s: %w", itemID, models.ErrNotFound)
	})
}

type rewardStore struct {
	db *pgxpool.Pool
}

func (s *rewardStore) Get(ctx context.Context, id string) (*models.Reward, error) {
	var r models.Reward
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, required_stamps, type, active, created_at
		FROM rewards WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Description, &r.RequiredStamps, &r.Type, &r.Active, &r.CreatedAt)
	if err != nil {
		return nil, notFound(err, "reward "+id)
	}
	return &r, nil
}

func (s *rewardStore) CreateIfMissing(ctx context.Context, r *models.Reward) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO rewards (id, name, description, required_stamps, type, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Name, r.Description, r.RequiredStamps, r.Type, r.Active, r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

type adminStore struct {
	db *pgxpool.Pool
}

func (s *adminStore) Get(ctx context.Context) (*models.AdminConfig, error) {
	var (
		cfg       models.AdminConfig
		updatedAt time.Time
	)
	err := s.db.QueryRow(ctx, `SELECT pin_hmac, pin_length, updated_at FROM admin_config WHERE id = $1`,
		store.AdminConfigID).Scan(&cfg.PinHmac, &cfg.PinLength, &updatedAt)
	if err != nil {
		return nil, notFound(err, "admin config")
	}
	cfg.UpdatedAt = updatedAt
	return &cfg, nil
}

func (s *adminStore) Put(ctx context.Context, cfg *models.AdminConfig) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO admin_config (id, pin_hmac, pin_length, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET pin_hmac = EXCLUDED.pin_hmac, pin_length = EXCLUDED.pin_length, updated_at = EXCLUDED.updated_at`,
		store.AdminConfigID, cfg.PinHmac, cfg.PinLength, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store admin config: %w", err)
	}
	return nil
}
