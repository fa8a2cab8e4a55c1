package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

const selectCard = `
	SELECT id, customer_id, reward_id, stamps, max_stamps, status, created_at,
	       last_stamp_at, completed_at, redeemed_at, schema_version
	FROM cards`

func scanCard(row pgx.Row) (*models.Card, error) {
	var (
		c      models.Card
		status string
	)
	err := row.Scan(&c.ID, &c.CustomerID, &c.RewardID, &c.Stamps, &c.MaxStamps, &status,
		&c.CreatedAt, &c.LastStampAt, &c.CompletedAt, &c.RedeemedAt, &c.SchemaVersion)
	if err != nil {
		return nil, notFound(err, "card")
	}
	c.Status = models.CardStatus(status)
	return &c, nil
}

func insertCard(ctx context.Context, q querier, c *models.Card) error {
	_, err := q.Exec(ctx, `
		INSERT INTO cards (id, customer_id, reward_id, stamps, max_stamps, status, created_at,
		                   last_stamp_at, completed_at, redeemed_at, schema_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.CustomerID, c.RewardID, c.Stamps, c.MaxStamps, string(c.Status), c.CreatedAt,
		c.LastStampAt, c.CompletedAt, c.RedeemedAt, c.SchemaVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("card %s: %w", c.ID, models.ErrConflict)
		}
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

type cardStore struct {
	db *pgxpool.Pool
}

func (s *cardStore) Create(ctx context.Context, c *models.Card) error {
	return insertCard(ctx, s.db, c)
}

func (s *cardStore) Get(ctx context.Context, id string) (*models.Card, error) {
	return scanCard(s.db.QueryRow(ctx, selectCard+` WHERE id = $1`, id))
}

func (s *cardStore) GetActiveByCustomer(ctx context.Context, customerID string) (*models.Card, error) {
	return scanCard(s.db.QueryRow(ctx,
		selectCard+` WHERE customer_id = $1 AND status = 'active' ORDER BY created_at DESC LIMIT 1`, customerID))
}

func (s *cardStore) ListByCustomer(ctx context.Context, customerID string) ([]models.Card, error) {
	rows, err := s.db.Query(ctx, selectCard+` WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list cards of %s: %w", customerID, err)
	}
	defer rows.Close()

	out := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const selectEvent = `
	SELECT id, card_id, customer_id, created_at, added_by, source, drink_type, size, notes
	FROM stamp_events`

type eventStore struct {
	db *pgxpool.Pool
}

func (s *eventStore) list(ctx context.Context, query string, args ...any) ([]models.StampEvent, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stamp events: %w", err)
	}
	defer rows.Close()

	out := []models.StampEvent{}
	for rows.Next() {
		var (
			ev                    models.StampEvent
			addedBy, source, size string
		)
		if err := rows.Scan(&ev.ID, &ev.CardID, &ev.CustomerID, &ev.CreatedAt, &addedBy,
			&source, &ev.DrinkType, &size, &ev.Notes); err != nil {
			return nil, fmt.Errorf("scan stamp event: %w", err)
		}
		ev.AddedBy = models.Attribution(addedBy)
		ev.Source = models.EventSource(source)
		ev.Size = models.DrinkSize(size)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *eventStore) ListByCard(ctx context.Context, cardID string) ([]models.StampEvent, error) {
	return s.list(ctx, selectEvent+` WHERE card_id = $1 ORDER BY created_at DESC`, cardID)
}

func (s *eventStore) ListSince(ctx context.Context, from time.Time) ([]models.StampEvent, error) {
	return s.list(ctx, selectEvent+` WHERE created_at >= $1 ORDER BY created_at ASC`, from)
}

func (s *eventStore) ListRecent(ctx context.Context, limit int) ([]models.StampEvent, error) {
	if limit <= 0 {
		return s.list(ctx, selectEvent+` ORDER BY created_at DESC`)
	}
	return s.list(ctx, selectEvent+` ORDER BY created_at DESC LIMIT $1`, limit)
}

func (s *eventStore) CountBySource(ctx context.Context, source models.EventSource) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM stamp_events WHERE source = $1`, string(source)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", source, err)
	}
	return n, nil
}
