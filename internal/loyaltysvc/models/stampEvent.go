package models

import (
	"fmt"
	"time"
)

// EventSource tags why a stamp event was written.
type EventSource string

const (
	SourceManual     EventSource = "manual"
	SourcePromo      EventSource = "promo"
	SourceAuto       EventSource = "auto"
	SourceRedemption EventSource = "redemption"
)

func (s EventSource) Valid() bool {
	switch s {
	case SourceManual, SourcePromo, SourceAuto, SourceRedemption:
		return true
	}
	return false
}

// Attribution is who added the stamp.
type Attribution string

const (
	AddedByBarista Attribution = "barista"
	AddedBySystem  Attribution = "system"
)

func (a Attribution) Valid() bool {
	return a == AddedByBarista || a == AddedBySystem
}

type DrinkSize string

const (
	Size10oz DrinkSize = "10oz"
	Size12oz DrinkSize = "12oz"
)

func (s DrinkSize) Valid() bool {
	return s == "" || s == Size10oz || s == Size12oz
}

// StampEvent is an append-only audit record: one per stamp, one per redemption.
type StampEvent struct {
	ID         string      `bson:"_id" json:"id"`
	CardID     string      `bson:"cardId" json:"cardId"`
	CustomerID string      `bson:"customerId,omitempty" json:"customerId,omitempty"`
	CreatedAt  time.Time   `bson:"createdAt" json:"createdAt"`
	AddedBy    Attribution `bson:"addedBy" json:"addedBy"`
	Source     EventSource `bson:"source" json:"source"`
	DrinkType  string      `bson:"drinkType,omitempty" json:"drinkType,omitempty"`
	Size       DrinkSize   `bson:"size,omitempty" json:"size,omitempty"`
	Notes      string      `bson:"notes,omitempty" json:"notes,omitempty"`
}

// StampRequest carries the caller-supplied attribution of a stamp.
type StampRequest struct {
	CustomerID string      `json:"customerId,omitempty"`
	AddedBy    Attribution `json:"addedBy,omitempty"`
	Source     EventSource `json:"source,omitempty"`
	DrinkType  string      `json:"drinkType,omitempty"`
	Size       DrinkSize   `json:"size,omitempty"`
}

// Normalize fills defaults and rejects unknown tags. Redemption is not a
// stamp source; it is written only by the redemption path.
func (r *StampRequest) Normalize() error {
	if r.AddedBy == "" {
		r.AddedBy = AddedBySystem
	}
	if r.Source == "" {
		r.Source = SourceManual
	}
	if !r.AddedBy.Valid() {
		return fmt.Errorf("addedBy %q: %w", r.AddedBy, ErrInvalidInput)
	}
	if !r.Source.Valid() || r.Source == SourceRedemption {
		return fmt.Errorf("source %q: %w", r.Source, ErrInvalidInput)
	}
	if !r.Size.Valid() {
		return fmt.Errorf("size %q: %w", r.Size, ErrInvalidInput)
	}
	return nil
}
