package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/comm"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/memstore"
)

var t0 = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	updates []comm.CardUpdate
}

func (r *recorder) PublishCardUpdate(u comm.CardUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *recorder) all() []comm.CardUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]comm.CardUpdate(nil), r.updates...)
}

type fixture struct {
	store     *memstore.Store
	notes     *recorder
	cards     *CardService
	customers *CustomerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	rec := &recorder{}
	f := &fixture{
		store:     s,
		notes:     rec,
		cards:     NewCardService(s, rec, models.DefaultMaxStamps),
		customers: NewCustomerService(s, models.DefaultMaxStamps),
	}
	clock := func() time.Time { return t0 }
	f.cards.SetClock(clock)
	f.customers.SetClock(clock)
	return f
}

func (f *fixture) onboard(t *testing.T, phone string) *OnboardResult {
	t.Helper()
	res, err := f.customers.Onboard(context.Background(), OnboardRequest{Name: "Ana", Phone: phone, ConsentWhatsApp: true})
	require.NoError(t, err)
	return res
}

func (f *fixture) events(t *testing.T, cardID string) []models.StampEvent {
	t.Helper()
	evs, err := f.store.Events().ListByCard(context.Background(), cardID)
	require.NoError(t, err)
	return evs
}

func TestFiveStampsCompleteTheCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := f.onboard(t, "55 1234 5678").Card
	require.Equal(t, 5, card.MaxStamps)

	want := []models.CardStatus{models.CardActive, models.CardActive, models.CardActive, models.CardActive, models.CardCompleted}
	for i, status := range want {
		snap, err := f.cards.AddStamp(ctx, card.ID, models.StampRequest{AddedBy: models.AddedByBarista, DrinkType: "Latte"})
		require.NoError(t, err)
		assert.Equal(t, i+1, snap.Stamps)
		assert.Equal(t, status, snap.Status)
	}

	snap, err := f.cards.AddStamp(ctx, card.ID, models.StampRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.CardSnapshot{Stamps: 5, MaxStamps: 5, Status: models.CardCompleted}, snap)

	got, err := f.cards.GetCard(ctx, card.ID)
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	require.NotNil(t, got.CompletedAt)
	assert.Len(t, f.events(t, card.ID), 5)

	cust, err := f.customers.Get(ctx, card.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, 5, cust.TotalStamps)
	assert.Equal(t, 5, cust.TotalVisits)

	updates := f.notes.all()
	require.Len(t, updates, 5)
	assert.Equal(t, comm.ReasonStamp, updates[4].Reason)
	assert.Equal(t, "completed", updates[4].Status)
}

func TestStampOnFullCardIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := models.NewCard("full", "cust", models.DefaultRewardID, 2, t0)
	card.Stamps, card.Status = 2, models.CardCompleted
	require.NoError(t, f.store.Cards().Create(ctx, card))

	for i := 0; i < 3; i++ {
		snap, err := f.cards.AddStamp(ctx, "full", models.StampRequest{})
		require.NoError(t, err)
		assert.Equal(t, models.CardSnapshot{Stamps: 2, MaxStamps: 2, Status: models.CardCompleted}, snap)
	}
	assert.Empty(t, f.events(t, "full"))
	assert.Empty(t, f.notes.all())
}

func TestStampOnMissingCardWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.cards.AddStamp(context.Background(), "nope", models.StampRequest{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	recent, err := f.store.Events().ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestStampRejectsBadAttribution(t *testing.T) {
	f := newFixture(t)
	card := f.onboard(t, "5512345678").Card
	_, err := f.cards.AddStamp(context.Background(), card.ID, models.StampRequest{Source: models.SourceRedemption})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Empty(t, f.events(t, card.ID))
}

func TestStampFailureLeavesNoPartialWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := f.onboard(t, "5512345678").Card

	f.store.SetFault(func(op string) error {
		if op == "tx.InsertStampEvent" {
			return errors.New("write failed")
		}
		return nil
	})
	_, err := f.cards.AddStamp(ctx, card.ID, models.StampRequest{})
	require.Error(t, err)

	got, err := f.cards.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stamps)
	assert.Nil(t, got.LastStampAt)
	assert.Empty(t, f.events(t, card.ID))
	assert.Empty(t, f.notes.all())
}

func TestConcurrentStampsNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := models.NewCard("race", "cust", models.DefaultRewardID, 5, t0)
	card.Stamps = 2
	require.NoError(t, f.store.Cards().Create(ctx, card))

	const n = 20
	var wg sync.WaitGroup
	snaps := make([]models.CardSnapshot, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := f.cards.AddStamp(ctx, "race", models.StampRequest{})
			assert.NoError(t, err)
			snaps[i] = snap
		}(i)
	}
	wg.Wait()

	got, err := f.cards.GetCard(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stamps)
	assert.Equal(t, models.CardCompleted, got.Status)
	assert.Len(t, f.events(t, "race"), 3)
	assert.Len(t, f.notes.all(), 3)

	seen := map[int]int{}
	for _, s := range snaps {
		seen[s.Stamps]++
	}
	assert.Equal(t, 1, seen[3])
	assert.Equal(t, 1, seen[4])
	assert.Equal(t, n-2, seen[5])
}

func fillCard(t *testing.T, f *fixture, cardID string) {
	t.Helper()
	for i := 0; i < 5; i++ {
		_, err := f.cards.AddStamp(context.Background(), cardID, models.StampRequest{})
		require.NoError(t, err)
	}
}

func TestRedeemOpensFreshCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	old := f.onboard(t, "5512345678").Card
	fillCard(t, f, old.ID)

	next, err := f.cards.RedeemCard(ctx, old.ID, old.CustomerID, models.DefaultRewardID)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Stamps)
	assert.Equal(t, models.CardActive, next.Status)
	assert.Equal(t, old.CustomerID, next.CustomerID)

	closed, err := f.cards.GetCard(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardRedeemed, closed.Status)
	require.NotNil(t, closed.RedeemedAt)

	evs := f.events(t, old.ID)
	require.Len(t, evs, 6)
	redemptions := 0
	for _, ev := range evs {
		if ev.Source == models.SourceRedemption {
			redemptions++
			assert.Equal(t, models.AddedByBarista, ev.AddedBy)
		}
	}
	assert.Equal(t, 1, redemptions)

	active, err := f.cards.GetCardByCustomer(ctx, old.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)

	view, err := f.cards.View(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, view.CurrentCardID)

	// a redeemed card never changes again
	_, err = f.cards.RedeemCard(ctx, old.ID, "", "")
	assert.ErrorIs(t, err, models.ErrCardNotRedeemable)
	snap, err := f.cards.AddStamp(ctx, old.ID, models.StampRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.CardRedeemed, snap.Status)
	assert.Len(t, f.events(t, old.ID), 6)

	updates := f.notes.all()
	last := updates[len(updates)-1]
	assert.Equal(t, comm.ReasonRedeem, last.Reason)
	assert.Equal(t, next.ID, last.NewCardID)
}

func TestRedeemRequiresCompletedCard(t *testing.T) {
	f := newFixture(t)
	card := f.onboard(t, "5512345678").Card
	_, err := f.cards.RedeemCard(context.Background(), card.ID, "", "")
	assert.ErrorIs(t, err, models.ErrCardNotRedeemable)

	cards, err := f.store.Cards().ListByCustomer(context.Background(), card.CustomerID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestRedeemRejectsForeignCustomer(t *testing.T) {
	f := newFixture(t)
	card := f.onboard(t, "5512345678").Card
	fillCard(t, f, card.ID)
	_, err := f.cards.RedeemCard(context.Background(), card.ID, "someone-else", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRedeemIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := f.onboard(t, "5512345678").Card
	fillCard(t, f, card.ID)

	f.store.SetFault(func(op string) error {
		if op == "tx.CreateCard" {
			return errors.New("write failed")
		}
		return nil
	})
	_, err := f.cards.RedeemCard(ctx, card.ID, "", "")
	require.Error(t, err)

	got, err := f.cards.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardCompleted, got.Status)
	assert.Nil(t, got.RedeemedAt)
	assert.Len(t, f.events(t, card.ID), 5)

	f.store.SetFault(nil)
	_, err = f.cards.RedeemCard(ctx, card.ID, "", "")
	assert.NoError(t, err)
}

func TestRedeemUsesRewardThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.Rewards().CreateIfMissing(ctx, &models.Reward{ID: "big", Name: "Pastel", RequiredStamps: 8, Active: true})
	require.NoError(t, err)

	card := f.onboard(t, "5512345678").Card
	fillCard(t, f, card.ID)
	next, err := f.cards.RedeemCard(ctx, card.ID, "", "big")
	require.NoError(t, err)
	assert.Equal(t, 8, next.MaxStamps)
	assert.Equal(t, "big", next.RewardID)
}

func TestLookupResolvesQRPayload(t *testing.T) {
	f := newFixture(t)
	card := f.onboard(t, "5512345678").Card

	got, err := f.cards.Lookup(context.Background(), "https://cafe.example/card/"+card.ID+"?src=qr")
	require.NoError(t, err)
	assert.Equal(t, card.ID, got.ID)

	_, err = f.cards.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCardHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := f.onboard(t, "5512345678").Card

	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * time.Minute)
		f.cards.SetClock(func() time.Time { return at })
		_, err := f.cards.AddStamp(ctx, card.ID, models.StampRequest{})
		require.NoError(t, err)
	}
	hist, err := f.cards.CardHistory(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, t0.Add(2*time.Minute), hist[0].CreatedAt)

	_, err = f.cards.CardHistory(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
