package models

import (
	"fmt"
	"strings"
	"time"
)

type CardStatus string

const (
	CardActive    CardStatus = "active"
	CardCompleted CardStatus = "completed"
	CardRedeemed  CardStatus = "redeemed"
)

func (s CardStatus) Valid() bool {
	switch s {
	case CardActive, CardCompleted, CardRedeemed:
		return true
	}
	return false
}

const (
	DefaultMaxStamps   = 5
	CardSchemaVersion  = 1
	DefaultRewardID    = "default"
	cardURLPathSegment = "/card/"
)

// Card is a customer's stamp-collection record.
type Card struct {
	ID            string     `bson:"_id" json:"id"`
	CustomerID    string     `bson:"customerId" json:"customerId"`
	RewardID      string     `bson:"rewardId" json:"rewardId"`
	Stamps        int        `bson:"stamps" json:"stamps"`
	MaxStamps     int        `bson:"maxStamps" json:"maxStamps"`
	Status        CardStatus `bson:"status" json:"status"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	LastStampAt   *time.Time `bson:"lastStampAt,omitempty" json:"lastStampAt,omitempty"`
	CompletedAt   *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	RedeemedAt    *time.Time `bson:"redeemedAt,omitempty" json:"redeemedAt,omitempty"`
	SchemaVersion int        `bson:"schemaVersion" json:"schemaVersion"`
}

// CardSnapshot is what a stamp operation reports back to the caller.
type CardSnapshot struct {
	Stamps    int        `json:"stamps"`
	MaxStamps int        `json:"maxStamps"`
	Status    CardStatus `json:"status"`
}

// NewCard returns a zeroed active card. maxStamps below 1 falls back to DefaultMaxStamps.
func NewCard(id, customerID, rewardID string, maxStamps int, now time.Time) *Card {
	if maxStamps < 1 {
		maxStamps = DefaultMaxStamps
	}
	return &Card{
		ID:            id,
		CustomerID:    customerID,
		RewardID:      rewardID,
		MaxStamps:     maxStamps,
		Status:        CardActive,
		CreatedAt:     now,
		SchemaVersion: CardSchemaVersion,
	}
}

func (c *Card) Snapshot() CardSnapshot {
	return CardSnapshot{Stamps: c.Stamps, MaxStamps: c.MaxStamps, Status: c.Status}
}

func (c *Card) IsFull() bool {
	return c.Stamps >= c.MaxStamps
}

// AddStamp applies one stamp and reports whether the card changed.
// A full or redeemed card is left untouched.
func (c *Card) AddStamp(now time.Time) bool {
	if c.Status == CardRedeemed || c.IsFull() {
		return false
	}

	c.Stamps++
	c.LastStampAt = &now
	if c.IsFull() {
		c.Status = CardCompleted
		c.CompletedAt = &now
	}
	return true
}

// Redeem closes a completed card.
func (c *Card) Redeem(now time.Time) error {
	if c.Status != CardCompleted {
		return fmt.Errorf("card %s is %s: %w", c.ID, c.Status, ErrCardNotRedeemable)
	}
	c.Status = CardRedeemed
	c.RedeemedAt = &now
	return nil
}

// Validate checks the stored invariants of a card.
func (c *Card) Validate() error {
	if !c.Status.Valid() {
		return fmt.Errorf("card %s has unknown status %q: %w", c.ID, c.Status, ErrInvalidInput)
	}
	if c.Stamps < 0 || c.Stamps > c.MaxStamps {
		return fmt.Errorf("card %s has %d/%d stamps: %w", c.ID, c.Stamps, c.MaxStamps, ErrInvalidInput)
	}
	if c.Status == CardActive && c.IsFull() {
		return fmt.Errorf("card %s is full but still active: %w", c.ID, ErrInvalidInput)
	}
	return nil
}

// CardURL is the QR payload printed on a card.
func CardURL(origin, cardID string) string {
	return strings.TrimRight(origin, "/") + cardURLPathSegment + cardID
}

// ResolveCardID accepts either a bare card id or a scanned card URL
// (with optional query string or fragment) and returns the id.
func ResolveCardID(raw string) string {
	id := strings.TrimSpace(raw)
	if i := strings.LastIndex(id, cardURLPathSegment); i >= 0 {
		id = id[i+len(cardURLPathSegment):]
	}
	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	return strings.Trim(id, "/")
}
