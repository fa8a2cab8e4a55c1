// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

// Run exercises s. The store must be empty.
func Run(t *testing.T, s store.Store) {
	t.Run("Customers", func(t *testing.T) { testCustomers(t, s) })
	t.Run("CardTransactions", func(t *testing.T) { testCardTransactions(t, s) })
	t.Run("ConcurrentStamps", func(t *testing.T) { testConcurrentStamps(t, s) })
	t.Run("ActiveUniqueness", func(t *testing.T) { testActiveUniqueness(t, s) })
	t.Run("Menu", func(t *testing.T) { testMenu(t, s) })
	t.Run("RewardsAndAdmin", func(t *testing.T) { testRewardsAndAdmin(t, s) })
}

// base is millisecond aligned so every backend round-trips it exactly.
var base = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func newCustomer(phone string, at time.Time) *models.Customer {
	return &models.Customer{
		ID:            uuid.NewString(),
		Phone:         phone,
		Active:        true,
		CreatedAt:     at,
		LastVisitAt:   at,
		SchemaVersion: models.CustomerSchemaVersion,
	}
}

func testCustomers(t *testing.T, s store.Store) {
	ctx := context.Background()
	cs := s.Customers()

	older := newCustomer("5512345678", base)
	newer := newCustomer("5587654321", base.Add(time.Hour))
	require.NoError(t, cs.Create(ctx, older))
	require.NoError(t, cs.Create(ctx, newer))

	got, err := cs.GetByPhone(ctx, "5512345678")
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	list, err := cs.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	require.NoError(t, cs.UpdateNotes(ctx, older.ID, "sin azúcar"))
	require.NoError(t, cs.RecordVisit(ctx, older.ID, base.Add(2*time.Hour)))
	got, err = cs.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "sin azúcar", got.Notes)
	assert.Equal(t, 1, got.TotalVisits)
	assert.Equal(t, 1, got.TotalStamps)
	assert.True(t, got.LastVisitAt.Equal(base.Add(2*time.Hour)))

	require.NoError(t, cs.Deactivate(ctx, older.ID))
	_, err = cs.GetByPhone(ctx, "5512345678")
	assert.ErrorIs(t, err, models.ErrNotFound)

	n, err := cs.CountActive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.ErrorIs(t, cs.UpdateNotes(ctx, "missing", "x"), models.ErrNotFound)
	_, err = cs.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func stamp(ctx context.Context, s store.Store, cardID string, at time.Time) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		card, err := tx.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if !card.AddStamp(at) {
			return nil
		}
		if err := tx.UpdateCard(ctx, card); err != nil {
			return err
		}
		return tx.InsertStampEvent(ctx, &models.StampEvent{
			ID:        uuid.NewString(),
			CardID:    card.ID,
			CreatedAt: at,
			AddedBy:   models.AddedBySystem,
			Source:    models.SourceManual,
		})
	})
}

func testCardTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	card := models.NewCard(uuid.NewString(), "cust-tx", models.DefaultRewardID, 2, base)
	require.NoError(t, s.Cards().Create(ctx, card))
	assert.ErrorIs(t, s.Cards().Create(ctx, card), models.ErrConflict)

	require.NoError(t, stamp(ctx, s, card.ID, base.Add(time.Minute)))
	require.NoError(t, stamp(ctx, s, card.ID, base.Add(2*time.Minute)))

	got, err := s.Cards().Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stamps)
	assert.Equal(t, models.CardCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	_, err = s.Cards().GetActiveByCustomer(ctx, "cust-tx")
	assert.ErrorIs(t, err, models.ErrNotFound)

	events, err := s.Events().ListByCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].CreatedAt.After(events[1].CreatedAt))

	// a failing fn leaves nothing behind
	boom := errors.New("boom")
	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		next := models.NewCard(uuid.NewString(), "cust-tx", models.DefaultRewardID, 2, base)
		if err := tx.CreateCard(ctx, next); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	cards, err := s.Cards().ListByCustomer(ctx, "cust-tx")
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetCard(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	recent, err := s.Events().ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	since, err := s.Events().ListSince(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, since, 1)

	n, err := s.Events().CountBySource(ctx, models.SourceManual)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func testConcurrentStamps(t *testing.T, s store.Store) {
	ctx := context.Background()
	card := models.NewCard(uuid.NewString(), "cust-race", models.DefaultRewardID, 5, base)
	require.NoError(t, s.Cards().Create(ctx, card))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, stamp(ctx, s, card.ID, base.Add(time.Minute)))
		}()
	}
	wg.Wait()

	got, err := s.Cards().Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stamps)
	assert.Equal(t, models.CardCompleted, got.Status)

	events, err := s.Events().ListByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func testActiveUniqueness(t *testing.T, s store.Store) {
	ctx := context.Background()
	cs := s.Customers()

	first := newCustomer("5599990000", base)
	require.NoError(t, cs.Create(ctx, first))
	assert.ErrorIs(t, cs.Create(ctx, newCustomer("5599990000", base)), models.ErrConflict)

	// the phone is free again once its owner is deactivated
	require.NoError(t, cs.Deactivate(ctx, first.ID))
	second := newCustomer("5599990000", base.Add(time.Minute))
	require.NoError(t, cs.Create(ctx, second))
	got, err := cs.GetByPhone(ctx, "5599990000")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	card := models.NewCard(uuid.NewString(), "cust-unique", models.DefaultRewardID, 1, base)
	require.NoError(t, s.Cards().Create(ctx, card))
	dup := models.NewCard(uuid.NewString(), "cust-unique", models.DefaultRewardID, 1, base)
	assert.ErrorIs(t, s.Cards().Create(ctx, dup), models.ErrConflict)

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateCard(ctx, models.NewCard(uuid.NewString(), "cust-unique", models.DefaultRewardID, 1, base))
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	// closing the active card inside the same transaction makes room for the next one
	next := models.NewCard(uuid.NewString(), "cust-unique", models.DefaultRewardID, 1, base.Add(time.Minute))
	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetCard(ctx, card.ID)
		if err != nil {
			return err
		}
		cur.AddStamp(base.Add(time.Second))
		if err := tx.UpdateCard(ctx, cur); err != nil {
			return err
		}
		return tx.CreateCard(ctx, next)
	})
	require.NoError(t, err)

	active, err := s.Cards().GetActiveByCustomer(ctx, "cust-unique")
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)
}

func testMenu(t *testing.T, s store.Store) {
	ctx := context.Background()
	ms := s.Menu()

	price := models.MustMoney("40")
	second := &models.MenuSection{ID: "especiales", Title: "Especiales", Type: models.SectionDrink, Order: 2, Active: true}
	first := &models.MenuSection{ID: "con-leche", Title: "Con leche", Type: models.SectionDrink, Order: 1, Active: true}
	require.NoError(t, ms.CreateSection(ctx, second))
	require.NoError(t, ms.CreateSection(ctx, first))

	require.NoError(t, ms.AddItem(ctx, "con-leche", &models.MenuItem{ID: "moka", Name: "Moka", Price: &price, Order: 2, Available: true, Ingredients: []string{}, Tags: []string{}}))
	require.NoError(t, ms.AddItem(ctx, "con-leche", &models.MenuItem{ID: "latte", Name: "Latte", Price: &price, Order: 1, Available: true, Ingredients: []string{}, Tags: []string{}}))

	sections, err := ms.ListSections(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "con-leche", sections[0].ID)
	require.Len(t, sections[0].Items, 2)
	assert.Equal(t, "latte", sections[0].Items[0].ID)
	assert.True(t, sections[0].Items[0].Price.Equal(price.Decimal))

	renamed := *first
	renamed.Title = "Bebidas con leche"
	require.NoError(t, ms.UpdateSection(ctx, &renamed))
	got, err := ms.GetSection(ctx, "con-leche")
	require.NoError(t, err)
	assert.Equal(t, "Bebidas con leche", got.Title)
	assert.Len(t, got.Items, 2)

	upd := models.MenuItem{ID: "moka", Name: "Moka blanco", Price: &price, Order: 2, Available: false, Ingredients: []string{}, Tags: []string{}}
	require.NoError(t, ms.UpdateItem(ctx, "con-leche", &upd))
	require.NoError(t, ms.DeleteItem(ctx, "con-leche", "latte"))
	assert.ErrorIs(t, ms.DeleteItem(ctx, "con-leche", "latte"), models.ErrNotFound)

	got, err = ms.GetSection(ctx, "con-leche")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Moka blanco", got.Items[0].Name)

	require.NoError(t, ms.DeleteSection(ctx, "con-leche"))
	_, err = ms.GetSection(ctx, "con-leche")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, ms.AddItem(ctx, "con-leche", &upd), models.ErrNotFound)
}

func testRewardsAndAdmin(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := &models.Reward{ID: models.DefaultRewardID, Name: "Bebida de cortesía", RequiredStamps: 5, Type: "drink", Active: true, CreatedAt: base}

	created, err := s.Rewards().CreateIfMissing(ctx, r)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.Rewards().CreateIfMissing(ctx, r)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Rewards().Get(ctx, models.DefaultRewardID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.RequiredStamps)

	_, err = s.AdminConfig().Get(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.AdminConfig().Put(ctx, &models.AdminConfig{PinHmac: "aa", PinLength: 4, UpdatedAt: base}))
	require.NoError(t, s.AdminConfig().Put(ctx, &models.AdminConfig{PinHmac: "bb", PinLength: 6, UpdatedAt: base}))
	cfg, err := s.AdminConfig().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bb", cfg.PinHmac)
	assert.Equal(t, 6, cfg.PinLength)
}
