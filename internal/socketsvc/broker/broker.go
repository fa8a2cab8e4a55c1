package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/comm"
)

type Broker struct {
	Conn           *nats.Conn
	Send           func(string, *comm.WSMessage) error
	GetRoomSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncSend func(string, *comm.WSMessage) error, fncGetRoomSockets func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:           conn,
		Send:           fncSend,
		GetRoomSockets: fncGetRoomSockets,
	}
}

// Subscribe consumes card updates. Every socket instance needs every update,
// so this is a plain subscription rather than a queue group.
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// handleMessages fans a card update out to the sockets watching that card.
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	var update comm.CardUpdate
	if err := json.Unmarshal(msgNats.Data, &update); err != nil {
		log.Errorf("Error decoding card update: %s", err)
		return
	}
	if update.CardID == "" {
		log.Error("card update without card id")
		return
	}

	sockets, ok := b.GetRoomSockets(update.CardID)
	if !ok {
		return
	}

	m := &comm.WSMessage{Type: comm.MsgCardUpdated, Data: msgNats.Data}
	for _, socketId := range sockets {
		if err := b.Send(socketId, m); err != nil {
			log.Warnf("send card update to %s: %v", socketId, err)
		}
	}
	log.Debugf("card %s update sent to %d sockets", update.CardID, len(sockets))
}
