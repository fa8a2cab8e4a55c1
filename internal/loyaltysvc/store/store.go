// Package store defines the persistence contracts of the loyalty service.
// Backends live in the memstore, mongostore and pgstore subpackages.
package store

import (
	"context"
	"time"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

// Collection names shared by the document backends and the seed tool.
const (
	CustomersCollection    = "customers"
	CardsCollection        = "cards"
	StampEventsCollection  = "stamp-events"
	MenuSectionsCollection = "menu-sections"
	RewardsCollection      = "rewards"
	ConfigCollection       = "config"
	AdminConfigID          = "admin"
)

// Store is the aggregate every backend provides.
type Store interface {
	Customers() CustomerStore
	Cards() CardStore
	Events() StampEventStore
	Rewards() RewardStore
	Menu() MenuStore
	AdminConfig() AdminConfigStore

	// RunInTx runs fn as one atomic unit: every write made through tx commits
	// together or not at all. Conflicting concurrent transactions are retried,
	// so fn may run more than once and must not have side effects outside tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close(ctx context.Context) error
}

// Tx is the card/audit surface available inside a transaction.
type Tx interface {
	// GetCard returns models.ErrNotFound when the card does not exist.
	GetCard(ctx context.Context, id string) (*models.Card, error)
	UpdateCard(ctx context.Context, card *models.Card) error
	CreateCard(ctx context.Context, card *models.Card) error
	InsertStampEvent(ctx context.Context, ev *models.StampEvent) error
}

type CustomerStore interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	// GetByPhone returns the active customer with that phone.
	GetByPhone(ctx context.Context, phone string) (*models.Customer, error)
	// ListActive returns active customers, newest first.
	ListActive(ctx context.Context) ([]models.Customer, error)
	CountActive(ctx context.Context) (int64, error)
	UpdateNotes(ctx context.Context, id, notes string) error
	Deactivate(ctx context.Context, id string) error
	// RecordVisit bumps the lifetime counters by one stamp.
	RecordVisit(ctx context.Context, id string, at time.Time) error
}

type CardStore interface {
	Create(ctx context.Context, c *models.Card) error
	Get(ctx context.Context, id string) (*models.Card, error)
	// GetActiveByCustomer returns the customer's active card or models.ErrNotFound.
	GetActiveByCustomer(ctx context.Context, customerID string) (*models.Card, error)
	// ListByCustomer returns every card of the customer, newest first.
	ListByCustomer(ctx context.Context, customerID string) ([]models.Card, error)
}

type StampEventStore interface {
	// ListByCard returns the card's events, newest first.
	ListByCard(ctx context.Context, cardID string) ([]models.StampEvent, error)
	// ListSince returns events created at or after from, oldest first.
	ListSince(ctx context.Context, from time.Time) ([]models.StampEvent, error)
	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]models.StampEvent, error)
	CountBySource(ctx context.Context, source models.EventSource) (int64, error)
}

type RewardStore interface {
	Get(ctx context.Context, id string) (*models.Reward, error)
	// CreateIfMissing inserts r unless a reward with that id exists.
	CreateIfMissing(ctx context.Context, r *models.Reward) (bool, error)
}

type MenuStore interface {
	// ListSections returns every section with its items, ordered.
	ListSections(ctx context.Context) ([]models.MenuSection, error)
	GetSection(ctx context.Context, id string) (*models.MenuSection, error)
	CreateSection(ctx context.Context, s *models.MenuSection) error
	// UpdateSection replaces the section fields and keeps its items.
	UpdateSection(ctx context.Context, s *models.MenuSection) error
	// DeleteSection removes the section together with its items.
	DeleteSection(ctx context.Context, id string) error
	AddItem(ctx context.Context, sectionID string, it *models.MenuItem) error
	UpdateItem(ctx context.Context, sectionID string, it *models.MenuItem) error
	DeleteItem(ctx context.Context, sectionID, itemID string) error
}

type AdminConfigStore interface {
	Get(ctx context.Context) (*models.AdminConfig, error)
	Put(ctx context.Context, cfg *models.AdminConfig) error
}
