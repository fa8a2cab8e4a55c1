package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/comm"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

type CardService struct {
	store            store.Store
	notifier         Notifier
	defaultMaxStamps int
	now              func() time.Time
}

func NewCardService(s store.Store, notifier Notifier, defaultMaxStamps int) *CardService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CardService{
		store:            s,
		notifier:         notifier,
		defaultMaxStamps: defaultMaxStamps,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the service clock.
func (s *CardService) SetClock(now func() time.Time) { s.now = now }

// AddStamp adds one stamp to the card and its audit event in one transaction.
// A full or redeemed card is returned unchanged.
func (s *CardService) AddStamp(ctx context.Context, cardID string, req models.StampRequest) (models.CardSnapshot, error) {
	if err := req.Normalize(); err != nil {
		return models.CardSnapshot{}, err
	}

	var (
		snap    models.CardSnapshot
		changed *models.Card
	)
	now := s.now()
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changed = nil

		card, err := tx.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if !card.AddStamp(now) {
			snap = card.Snapshot()
			return nil
		}
		if err := tx.UpdateCard(ctx, card); err != nil {
			return err
		}

		customerID := req.CustomerID
		if customerID == "" {
			customerID = card.CustomerID
		}
		ev := &models.StampEvent{
			ID:         uuid.NewString(),
			CardID:     card.ID,
			CustomerID: customerID,
			CreatedAt:  now,
			AddedBy:    req.AddedBy,
			Source:     req.Source,
			DrinkType:  req.DrinkType,
			Size:       req.Size,
		}
		if err := tx.InsertStampEvent(ctx, ev); err != nil {
			return err
		}
		snap = card.Snapshot()
		changed = card
		return nil
	})
	if err != nil {
		return models.CardSnapshot{}, fmt.Errorf("add stamp to %s: %w", cardID, err)
	}

	if changed != nil {
		s.afterStamp(ctx, changed, now)
	}
	return snap, nil
}

// afterStamp runs outside the card transaction; its failures are only logged.
func (s *CardService) afterStamp(ctx context.Context, card *models.Card, now time.Time) {
	logger := log.WithFields(log.Fields{"card": card.ID, "customer": card.CustomerID, "stamps": card.Stamps})
	if err := s.store.Customers().RecordVisit(ctx, card.CustomerID, now); err != nil {
		logger.Warnf("update customer counters: %v", err)
	}
	if err := s.notifier.PublishCardUpdate(cardUpdate(card, comm.ReasonStamp, now)); err != nil {
		logger.Warnf("publish card update: %v", err)
	}
	logger.Info("stamp added")
}

// RedeemCard closes a completed card and opens a fresh one for the same
// customer. All three writes share one transaction and the completed status
// is checked inside it, so a second redemption fails with ErrCardNotRedeemable.
func (s *CardService) RedeemCard(ctx context.Context, oldCardID, customerID, rewardID string) (*models.Card, error) {
	reward := rewardID
	if reward == "" {
		card, err := s.store.Cards().Get(ctx, oldCardID)
		if err != nil {
			return nil, fmt.Errorf("redeem card %s: %w", oldCardID, err)
		}
		reward = card.RewardID
	}
	maxStamps := s.maxStampsFor(ctx, reward)

	var (
		old  *models.Card
		next *models.Card
	)
	now := s.now()
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		card, err := tx.GetCard(ctx, oldCardID)
		if err != nil {
			return err
		}
		if customerID != "" && customerID != card.CustomerID {
			return fmt.Errorf("card %s does not belong to %s: %w", card.ID, customerID, models.ErrInvalidInput)
		}
		if err := card.Redeem(now); err != nil {
			return err
		}
		if err := tx.UpdateCard(ctx, card); err != nil {
			return err
		}

		if err := tx.InsertStampEvent(ctx, &models.StampEvent{
			ID:         uuid.NewString(),
			CardID:     card.ID,
			CustomerID: card.CustomerID,
			CreatedAt:  now,
			AddedBy:    models.AddedByBarista,
			Source:     models.SourceRedemption,
		}); err != nil {
			return err
		}

		fresh := models.NewCard(uuid.NewString(), card.CustomerID, reward, maxStamps, now)
		if err := tx.CreateCard(ctx, fresh); err != nil {
			return err
		}
		old, next = card, fresh
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redeem card %s: %w", oldCardID, err)
	}

	u := cardUpdate(old, comm.ReasonRedeem, now)
	u.NewCardID = next.ID
	if err := s.notifier.PublishCardUpdate(u); err != nil {
		log.WithField("card", old.ID).Warnf("publish card update: %v", err)
	}
	log.WithFields(log.Fields{"card": old.ID, "newCard": next.ID, "customer": next.CustomerID}).Info("card redeemed")
	return next, nil
}

func (s *CardService) maxStampsFor(ctx context.Context, rewardID string) int {
	r, err := s.store.Rewards().Get(ctx, rewardID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warnf("load reward %s: %v", rewardID, err)
		}
		return s.defaultMaxStamps
	}
	if r.RequiredStamps < 1 {
		return s.defaultMaxStamps
	}
	return r.RequiredStamps
}

// GetCardByCustomer returns the customer's active card.
func (s *CardService) GetCardByCustomer(ctx context.Context, customerID string) (*models.Card, error) {
	return s.store.Cards().GetActiveByCustomer(ctx, customerID)
}

func (s *CardService) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	return s.store.Cards().Get(ctx, cardID)
}

func (s *CardService) CardHistory(ctx context.Context, cardID string) ([]models.StampEvent, error) {
	if _, err := s.store.Cards().Get(ctx, cardID); err != nil {
		return nil, err
	}
	return s.store.Events().ListByCard(ctx, cardID)
}

// CardView is what the customer's card page shows.
type CardView struct {
	Card *models.Card `json:"card"`
	// CurrentCardID points a redeemed card at the customer's active card.
	CurrentCardID string `json:"currentCardId,omitempty"`
}

func (s *CardService) View(ctx context.Context, cardID string) (*CardView, error) {
	card, err := s.store.Cards().Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	view := &CardView{Card: card}
	if card.Status == models.CardRedeemed {
		active, err := s.GetCardByCustomer(ctx, card.CustomerID)
		switch {
		case err == nil:
			view.CurrentCardID = active.ID
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}
	return view, nil
}

// Lookup resolves a scanned QR payload or a bare id.
func (s *CardService) Lookup(ctx context.Context, raw string) (*models.Card, error) {
	id := models.ResolveCardID(raw)
	if id == "" {
		return nil, fmt.Errorf("empty card reference: %w", models.ErrInvalidInput)
	}
	return s.store.Cards().Get(ctx, id)
}
