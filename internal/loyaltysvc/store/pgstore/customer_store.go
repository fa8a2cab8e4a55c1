package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

const selectCustomer = `
	SELECT id, name, phone, consent_whatsapp, active, total_visits, total_stamps,
	       notes, created_at, last_visit_at, schema_version
	FROM customers`

type customerStore struct {
	db *pgxpool.Pool
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.ConsentWhatsApp, &c.Active, &c.TotalVisits,
		&c.TotalStamps, &c.Notes, &c.CreatedAt, &c.LastVisitAt, &c.SchemaVersion)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *customerStore) Create(ctx context.Context, c *models.Customer) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO customers (id, name, phone, consent_whatsapp, active, total_visits, total_stamps,
		                       notes, created_at, last_visit_at, schema_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Name, c.Phone, c.ConsentWhatsApp, c.Active, c.TotalVisits, c.TotalStamps,
		c.Notes, c.CreatedAt, c.LastVisitAt, c.SchemaVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("customer %s: %w", c.ID, models.ErrConflict)
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (s *customerStore) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRow(ctx, selectCustomer+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "customer")
	}
	return c, nil
}

func (s *customerStore) GetByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRow(ctx,
		selectCustomer+` WHERE phone = $1 AND active ORDER BY created_at DESC LIMIT 1`, phone))
	if err != nil {
		return nil, notFound(err, "customer")
	}
	return c, nil
}

func (s *customerStore) ListActive(ctx context.Context) ([]models.Customer, error) {
	rows, err := s.db.Query(ctx, selectCustomer+` WHERE active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := []models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *customerStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

func (s *customerStore) exec(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *customerStore) UpdateNotes(ctx context.Context, id, notes string) error {
	return s.exec(ctx, id, `UPDATE customers SET notes = $2 WHERE id = $1`, notes)
}

func (s *customerStore) Deactivate(ctx context.Context, id string) error {
	return s.exec(ctx, id, `UPDATE customers SET active = FALSE WHERE id = $1`)
}

func (s *customerStore) RecordVisit(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, id, `
		UPDATE customers
		SET total_visits = total_visits + 1, total_stamps = total_stamps + 1, last_visit_at = $2
		WHERE id = $1`, at)
}
