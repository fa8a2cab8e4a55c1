package service

import (
	"time"

	"github.com/avvvet/loyalty-services/internal/comm"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

// Notifier receives committed card changes. The NATS broker implements it.
type Notifier interface {
	PublishCardUpdate(u comm.CardUpdate) error
}

type nopNotifier struct{}

func (nopNotifier) PublishCardUpdate(comm.CardUpdate) error { return nil }

func cardUpdate(c *models.Card, reason string, at time.Time) comm.CardUpdate {
	return comm.CardUpdate{
		CardID:     c.ID,
		CustomerID: c.CustomerID,
		Stamps:     c.Stamps,
		MaxStamps:  c.MaxStamps,
		Status:     string(c.Status),
		Reason:     reason,
		At:         at,
	}
}
