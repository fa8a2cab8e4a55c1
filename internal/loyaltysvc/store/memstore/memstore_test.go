package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}

func TestFaultAbortsWholeTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	card := models.NewCard("card-1", "cust-1", models.DefaultRewardID, 5, now)
	require.NoError(t, s.Cards().Create(ctx, card))

	boom := errors.New("disk full")
	s.SetFault(func(op string) error {
		if op == "tx.InsertStampEvent" {
			return boom
		}
		return nil
	})

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCard(ctx, "card-1")
		if err != nil {
			return err
		}
		c.AddStamp(now)
		if err := tx.UpdateCard(ctx, c); err != nil {
			return err
		}
		return tx.InsertStampEvent(ctx, &models.StampEvent{ID: "ev-1", CardID: c.ID, CreatedAt: now})
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Cards().Get(ctx, "card-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stamps)

	events, err := s.Events().ListByCard(ctx, "card-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCancelledContextSkipsTransaction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
