// Package memstore is a process-local Store used for development and tests.
// Transactions are serialised behind a single mutex and applied only on success.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

// FaultFunc is consulted before every transactional write. Returning an error
// aborts the transaction at that point.
type FaultFunc func(op string) error

type Store struct {
	mu        sync.Mutex
	customers map[string]models.Customer
	cards     map[string]models.Card
	events    []models.StampEvent
	rewards   map[string]models.Reward
	sections  map[string]models.MenuSection
	admin     *models.AdminConfig
	fault     FaultFunc
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		customers: map[string]models.Customer{},
		cards:     map[string]models.Card{},
		rewards:   map[string]models.Reward{},
		sections:  map[string]models.MenuSection{},
	}
}

// SetFault installs a fault hook for transactional writes; nil removes it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *Store) Customers() store.CustomerStore      { return customerStore{s} }
func (s *Store) Cards() store.CardStore              { return cardStore{s} }
func (s *Store) Events() store.StampEventStore       { return eventStore{s} }
func (s *Store) Rewards() store.RewardStore          { return rewardStore{s} }
func (s *Store) Menu() store.MenuStore               { return menuStore{s} }
func (s *Store) AdminConfig() store.AdminConfigStore { return adminStore{s} }

func (s *Store) Close(ctx context.Context) error { return nil }

// RunInTx holds the store lock for the whole of fn. fn must only use tx.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &memTx{s: s, cards: map[string]models.Card{}}
	if err := fn(ctx, t); err != nil {
		return err
	}

	for id, c := range t.cards {
		s.cards[id] = c
	}
	s.events = append(s.events, t.events...)
	return nil
}

type memTx struct {
	s      *Store
	cards  map[string]models.Card
	events []models.StampEvent
}

func (t *memTx) check(op string) error {
	if t.s.fault == nil {
		return nil
	}
	if err := t.s.fault(op); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *memTx) GetCard(ctx context.Context, id string) (*models.Card, error) {
	if c, ok := t.cards[id]; ok {
		return &c, nil
	}
	c, ok := t.s.cards[id]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", id, models.ErrNotFound)
	}
	return &c, nil
}

func (t *memTx) UpdateCard(ctx context.Context, card *models.Card) error {
	if err := t.check("tx.UpdateCard"); err != nil {
		return err
	}
	if _, err := t.GetCard(ctx, card.ID); err != nil {
		return err
	}
	t.cards[card.ID] = *card
	return nil
}

func (t *memTx) CreateCard(ctx context.Context, card *models.Card) error {
	if err := t.check("tx.CreateCard"); err != nil {
		return err
	}
	if _, err := t.GetCard(ctx, card.ID); err == nil {
		return fmt.Errorf("card %s: %w", card.ID, models.ErrConflict)
	}
	if card.Status == models.CardActive {
		for id, c := range t.s.cards {
			if tc, ok := t.cards[id]; ok {
				c = tc
			}
			if c.CustomerID == card.CustomerID && c.Status == models.CardActive {
				return fmt.Errorf("active card for customer %s: %w", card.CustomerID, models.ErrConflict)
			}
		}
		for _, c := range t.cards {
			if c.CustomerID == card.CustomerID && c.Status == models.CardActive {
				return fmt.Errorf("active card for customer %s: %w", card.CustomerID, models.ErrConflict)
			}
		}
	}
	t.cards[card.ID] = *card
	return nil
}

func (t *memTx) InsertStampEvent(ctx context.Context, ev *models.StampEvent) error {
	if err := t.check("tx.InsertStampEvent"); err != nil {
		return err
	}
	t.events = append(t.events, *ev)
	return nil
}

type customerStore struct{ s *Store }

func (cs customerStore) Create(ctx context.Context, c *models.Customer) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	if _, ok := cs.s.customers[c.ID]; ok {
		return fmt.Errorf("customer %s: %w", c.ID, models.ErrConflict)
	}
	if c.Active {
		for _, other := range cs.s.customers {
			if other.Active && other.Phone == c.Phone {
				return fmt.Errorf("active customer with phone: %w", models.ErrConflict)
			}
		}
	}
	cs.s.customers[c.ID] = *c
	return nil
}

func (cs customerStore) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, models.ErrNotFound)
	}
	return &c, nil
}

func (cs customerStore) GetByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	for _, c := range cs.s.customers {
		if c.Active && c.Phone == phone {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("customer with phone: %w", models.ErrNotFound)
}

func (cs customerStore) ListActive(ctx context.Context) ([]models.Customer, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	out := []models.Customer{}
	for _, c := range cs.s.customers {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (cs customerStore) CountActive(ctx context.Context) (int64, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	var n int64
	for _, c := range cs.s.customers {
		if c.Active {
			n++
		}
	}
	return n, nil
}

func (cs customerStore) update(id string, fn func(c *models.Customer)) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.customers[id]
	if !ok {
		return fmt.Errorf("customer %s: %w", id, models.ErrNotFound)
	}
	fn(&c)
	cs.s.customers[id] = c
	return nil
}

func (cs customerStore) UpdateNotes(ctx context.Context, id, notes string) error {
	return cs.update(id, func(c *models.Customer) { c.Notes = notes })
}

func (cs customerStore) Deactivate(ctx context.Context, id string) error {
	return cs.update(id, func(c *models.Customer) { c.Active = false })
}

func (cs customerStore) RecordVisit(ctx context.Context, id string, at time.Time) error {
	return cs.update(id, func(c *models.Customer) {
		c.TotalVisits++
		c.TotalStamps++
		c.LastVisitAt = at
	})
}

type cardStore struct{ s *Store }

func (cs cardStore) Create(ctx context.Context, c *models.Card) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	if _, ok := cs.s.cards[c.ID]; ok {
		return fmt.Errorf("card %s: %w", c.ID, models.ErrConflict)
	}
	if c.Status == models.CardActive {
		for _, other := range cs.s.cards {
			if other.CustomerID == c.CustomerID && other.Status == models.CardActive {
				return fmt.Errorf("active card for customer %s: %w", c.CustomerID, models.ErrConflict)
			}
		}
	}
	cs.s.cards[c.ID] = *c
	return nil
}

func (cs cardStore) Get(ctx context.Context, id string) (*models.Card, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.cards[id]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", id, models.ErrNotFound)
	}
	return &c, nil
}

func (cs cardStore) GetActiveByCustomer(ctx context.Context, customerID string) (*models.Card, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	for _, c := range cs.s.cards {
		if c.CustomerID == customerID && c.Status == models.CardActive {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("active card for customer %s: %w", customerID, models.ErrNotFound)
}

func (cs cardStore) ListByCustomer(ctx context.Context, customerID string) ([]models.Card, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	out := []models.Card{}
	for _, c := range cs.s.cards {
		if c.CustomerID == customerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type eventStore struct{ s *Store }

func (es eventStore) ListByCard(ctx context.Context, cardID string) ([]models.StampEvent, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()
	out := []models.StampEvent{}
	for _, e := range es.s.events {
		if e.CardID == cardID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (es eventStore) ListSince(ctx context.Context, from time.Time) ([]models.StampEvent, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()
	out := []models.StampEvent{}
	for _, e := range es.s.events {
		if !e.CreatedAt.Before(from) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (es eventStore) ListRecent(ctx context.Context, limit int) ([]models.StampEvent, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()
	out := make([]models.StampEvent, len(es.s.events))
	copy(out, es.s.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (es eventStore) CountBySource(ctx context.Context, source models.EventSource) (int64, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()
	var n int64
	for _, e := range es.s.events {
		if e.Source == source {
			n++
		}
	}
	return n, nil
}

type rewardStore struct{ s *Store }

func (rs rewardStore) Get(ctx context.Context, id string) (*models.Reward, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	r, ok := rs.s.rewards[id]
	if !ok {
		return nil, fmt.Errorf("reward %s: %w", id, models.ErrNotFound)
	}
	return &r, nil
}

func (rs rewardStore) CreateIfMissing(ctx context.Context, r *models.Reward) (bool, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	if _, ok := rs.s.rewards[r.ID]; ok {
		return false, nil
	}
	rs.s.rewards[r.ID] = *r
	return true, nil
}

type menuStore struct{ s *Store }

func copySection(sec models.MenuSection) models.MenuSection {
	items := make([]models.MenuItem, len(sec.Items))
	copy(items, sec.Items)
	sec.Items = items
	return sec
}

func (ms menuStore) ListSections(ctx context.Context) ([]models.MenuSection, error) {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	out := make([]models.MenuSection, 0, len(ms.s.sections))
	for _, sec := range ms.s.sections {
		out = append(out, copySection(sec))
	}
	models.SortMenu(out)
	return out, nil
}

func (ms menuStore) GetSection(ctx context.Context, id string) (*models.MenuSection, error) {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	sec, ok := ms.s.sections[id]
	if !ok {
		return nil, fmt.Errorf("menu section %s: %w", id, models.ErrNotFound)
	}
	sec = copySection(sec)
	return &sec, nil
}

func (ms menuStore) CreateSection(ctx context.Context, sec *models.MenuSection) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	if _, ok := ms.s.sections[sec.ID]; ok {
		return fmt.Errorf("menu section %s: %w", sec.ID, models.ErrConflict)
	}
	ms.s.sections[sec.ID] = copySection(*sec)
	return nil
}

func (ms menuStore) UpdateSection(ctx context.Context, sec *models.MenuSection) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	cur, ok := ms.s.sections[sec.ID]
	if !ok {
		return fmt.Errorf("menu section %s: %w", sec.ID, models.ErrNotFound)
	}
	next := *sec
	next.Items = cur.Items
	ms.s.sections[sec.ID] = next
	return nil
}

func (ms menuStore) DeleteSection(ctx context.Context, id string) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	if _, ok := ms.s.sections[id]; !ok {
		return fmt.Errorf("menu section %s: %w", id, models.ErrNotFound)
	}
	delete(ms.s.sections, id)
	return nil
}

func (ms menuStore) withSection(id string, fn func(sec *models.MenuSection) error) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	sec, ok := ms.s.sections[id]
	if !ok {
		return fmt.Errorf("menu section %s: %w", id, models.ErrNotFound)
	}
	sec = copySection(sec)
	if err := fn(&sec); err != nil {
		return err
	}
	ms.s.sections[id] = sec
	return nil
}

func (ms menuStore) AddItem(ctx context.Context, sectionID string, it *models.MenuItem) error {
	return ms.withSection(sectionID, func(sec *models.MenuSection) error {
		sec.Items = append(sec.Items, *it)
		return nil
	})
}

func (ms menuStore) UpdateItem(ctx context.Context, sectionID string, it *models.MenuItem) error {
	return ms.withSection(sectionID, func(sec *models.MenuSection) error {
		for i := range sec.Items {
			if sec.Items[i].ID == it.ID {
				sec.Items[i] = *it
				return nil
			}
		}
		return fmt.Errorf("menu item %s: %w", it.ID, models.ErrNotFound)
	})
}

func (ms menuStore) DeleteItem(ctx context.Context, sectionID, itemID string) error {
	return ms.withSection(sectionID, func(sec *models.MenuSection) error {
		for i := range sec.Items {
			if sec.Items[i].ID == itemID {
				sec.Items = append(sec.Items[:i], sec.Items[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("menu item %s: %w", itemID, models.ErrNotFound)
	})
}

type adminStore struct{ s *Store }

func (as adminStore) Get(ctx context.Context) (*models.AdminConfig, error) {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	if as.s.admin == nil {
		return nil, fmt.Errorf("admin config: %w", models.ErrNotFound)
	}
	cfg := *as.s.admin
	return &cfg, nil
}

func (as adminStore) Put(ctx context.Context, cfg *models.AdminConfig) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	c := *cfg
	as.s.admin = &c
	return nil
}
