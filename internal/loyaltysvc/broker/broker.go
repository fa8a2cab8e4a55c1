package broker

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/comm"
)

// Publisher is the subset of *nats.Conn the broker needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

type Broker struct {
	Conn Publisher
}

func NewBroker(conn Publisher) *Broker {
	return &Broker{Conn: conn}
}

// PublishCardUpdate announces a committed card change to the socket service.
func (b *Broker) PublishCardUpdate(u comm.CardUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal card update: %w", err)
	}
	return b.Publish(comm.TopicCardUpdated, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
