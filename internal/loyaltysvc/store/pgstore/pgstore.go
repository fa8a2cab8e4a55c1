// Package pgstore implements store.Store on PostgreSQL through pgxpool.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

const maxTxAttempts = 5

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Customers() store.CustomerStore      { return &customerStore{db: s.db} }
func (s *Store) Cards() store.CardStore              { return &cardStore{db: s.db} }
func (s *Store) Events() store.StampEventStore       { return &eventStore{db: s.db} }
func (s *Store) Rewards() store.RewardStore          { return &rewardStore{db: s.db} }
func (s *Store) Menu() store.MenuStore               { return &menuStore{db: s.db} }
func (s *Store) AdminConfig() store.AdminConfigStore { return &adminStore{db: s.db} }

func (s *Store) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}

// RunInTx retries fn on serialization failures and deadlocks.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		log.WithField("attempt", attempt).Warnf("retrying card transaction: %v", err)
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// pgTx locks the card row on read so concurrent stamps on one card serialize.
type pgTx struct {
	q pgx.Tx
}

func (t *pgTx) GetCard(ctx context.Context, id string) (*models.Card, error) {
	return scanCard(t.q.QueryRow(ctx, selectCard+` WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateCard(ctx context.Context, card *models.Card) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE cards
		SET stamps = $2, max_stamps = $3, status = $4, last_stamp_at = $5,
		    completed_at = $6, redeemed_at = $7, schema_version = $8
		WHERE id = $1`,
		card.ID, card.Stamps, card.MaxStamps, string(card.Status), card.LastStampAt,
		card.CompletedAt, card.RedeemedAt, card.SchemaVersion)
	if err != nil {
		return fmt.Errorf("update card %s: %w", card.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %s: %w", card.ID, models.ErrNotFound)
	}
	return nil
}

func (t *pgTx) CreateCard(ctx context.Context, card *models.Card) error {
	return insertCard(ctx, t.q, card)
}

func (t *pgTx) InsertStampEvent(ctx context.Context, ev *models.StampEvent) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stamp_events (id, card_id, customer_id, created_at, added_by, source, drink_type, size, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.CardID, ev.CustomerID, ev.CreatedAt, string(ev.AddedBy), string(ev.Source),
		ev.DrinkType, string(ev.Size), ev.Notes)
	if err != nil {
		return fmt.Errorf("insert stamp event: %w", err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("find %s: %w", what, err)
}
