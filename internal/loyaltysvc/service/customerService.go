package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

const (
	maxNameLength  = 80
	maxNotesLength = 1000
)

type CustomerService struct {
	store            store.Store
	defaultMaxStamps int
	now              func() time.Time
}

func NewCustomerService(s store.Store, defaultMaxStamps int) *CustomerService {
	return &CustomerService{
		store:            s,
		defaultMaxStamps: defaultMaxStamps,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *CustomerService) SetClock(now func() time.Time) { s.now = now }

type OnboardRequest struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	ConsentWhatsApp bool   `json:"consentWhatsApp"`
}

type OnboardResult struct {
	Customer *models.Customer `json:"customer"`
	Card     *models.Card     `json:"card"`
	Existing bool             `json:"existing"`
}

// Onboard registers a customer with a first card on the default reward. A
// phone that already belongs to an active customer gets that customer's
// current card back.
func (s *CustomerService) Onboard(ctx context.Context, req OnboardRequest) (*OnboardResult, error) {
	phone, err := models.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, fmt.Errorf("name longer than %d characters: %w", maxNameLength, models.ErrInvalidInput)
	}

	existing, err := s.store.Customers().GetByPhone(ctx, phone)
	switch {
	case err == nil:
		return s.resume(ctx, existing)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	now := s.now()
	cust := &models.Customer{
		ID:              uuid.NewString(),
		Name:            name,
		Phone:           phone,
		ConsentWhatsApp: req.ConsentWhatsApp,
		Active:          true,
		CreatedAt:       now,
		LastVisitAt:     now,
		SchemaVersion:   models.CustomerSchemaVersion,
	}
	if err := s.store.Customers().Create(ctx, cust); err != nil {
		if !errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		// a concurrent onboard took the phone first
		existing, err := s.store.Customers().GetByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		return s.resume(ctx, existing)
	}

	// Customer and card are separate writes. If the card fails the customer
	// stays, and onboarding the same phone again goes through resume, which
	// opens the missing card.
	card, err := s.openCard(ctx, cust.ID)
	if err != nil {
		log.WithField("customer", cust.ID).Errorf("customer created without a card: %v", err)
		return nil, err
	}

	log.WithFields(log.Fields{"customer": cust.ID, "card": card.ID}).Info("customer onboarded")
	return &OnboardResult{Customer: cust, Card: card}, nil
}

// resume returns an already registered customer with their current card,
// opening one when none exists.
func (s *CustomerService) resume(ctx context.Context, existing *models.Customer) (*OnboardResult, error) {
	card, err := s.CurrentCard(ctx, existing.ID)
	if errors.Is(err, models.ErrNotFound) {
		card, err = s.openCard(ctx, existing.ID)
	}
	if err != nil {
		return nil, err
	}
	return &OnboardResult{Customer: existing, Card: card, Existing: true}, nil
}

func (s *CustomerService) openCard(ctx context.Context, customerID string) (*models.Card, error) {
	maxStamps := s.defaultMaxStamps
	reward, err := s.store.Rewards().Get(ctx, models.DefaultRewardID)
	switch {
	case err == nil && reward.RequiredStamps > 0:
		maxStamps = reward.RequiredStamps
	case err != nil && !errors.Is(err, models.ErrNotFound):
		log.Warnf("load default reward: %v", err)
	}

	card := models.NewCard(uuid.NewString(), customerID, models.DefaultRewardID, maxStamps, s.now())
	if err := s.store.Cards().Create(ctx, card); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// another request opened the active card first
			return s.CurrentCard(ctx, customerID)
		}
		return nil, err
	}
	return card, nil
}

// CurrentCard is the customer's newest card that is not redeemed yet: the
// active card, or a completed one waiting for redemption.
func (s *CustomerService) CurrentCard(ctx context.Context, customerID string) (*models.Card, error) {
	cards, err := s.store.Cards().ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		if cards[i].Status != models.CardRedeemed {
			return &cards[i], nil
		}
	}
	return nil, fmt.Errorf("card of customer %s: %w", customerID, models.ErrNotFound)
}

func (s *CustomerService) List(ctx context.Context) ([]models.Customer, error) {
	return s.store.Customers().ListActive(ctx)
}

func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, error) {
	return s.store.Customers().GetByID(ctx, id)
}

func (s *CustomerService) LookupByPhone(ctx context.Context, raw string) (*models.Customer, error) {
	phone, err := models.NormalizePhone(raw)
	if err != nil {
		return nil, err
	}
	return s.store.Customers().GetByPhone(ctx, phone)
}

func (s *CustomerService) UpdateNotes(ctx context.Context, id, notes string) error {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return fmt.Errorf("notes longer than %d characters: %w", maxNotesLength, models.ErrInvalidInput)
	}
	return s.store.Customers().UpdateNotes(ctx, id, notes)
}

// Deactivate soft-deletes the customer; cards and events are kept.
func (s *CustomerService) Deactivate(ctx context.Context, id string) error {
	if err := s.store.Customers().Deactivate(ctx, id); err != nil {
		return err
	}
	log.WithField("customer", id).Info("customer deactivated")
	return nil
}
