package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/comm"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

var ErrUnknownSocket = errors.New("unknown socket")

// client serializes writes; gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // socketId -> *client
	roomMap sync.Map // socketId -> watched card id
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.MsgWatchCard:
		s.handleWatch(socketId, message)
	case comm.MsgUnwatchCard:
		s.roomMap.Delete(socketId)
		s.reply(socketId, comm.MsgWatchCardResponse, comm.Res{Status: true, Message: "unwatched"})
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.reply(socketId, comm.MsgError, comm.Res{Message: "unknown message type"})
	}
}

func (s *Ws) handleWatch(socketId string, msg *comm.WSMessage) {
	var payload comm.WatchCard
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("malformed watch-card payload from %s: %v", socketId, err)
		s.reply(socketId, comm.MsgError, comm.Res{Message: "invalid watch-card data"})
		return
	}

	cardId := models.ResolveCardID(payload.CardID)
	if cardId == "" {
		s.reply(socketId, comm.MsgError, comm.Res{Message: "cardId is required"})
		return
	}

	// a socket follows one card; watching another replaces it
	s.StoreRoom(socketId, cardId)
	log.Debugf("socket %s watching card %s", socketId, cardId)

	s.reply(socketId, comm.MsgWatchCardResponse, comm.Res{Status: true, Message: cardId})
}

func (s *Ws) reply(socketId, msgType string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal %s reply: %v", msgType, err)
		return
	}
	if err := s.Send(socketId, &comm.WSMessage{Type: msgType, Data: data}); err != nil {
		log.Warnf("reply to %s: %v", socketId, err)
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

// Send writes m to the socket's connection.
func (s *Ws) Send(socketId string, m *comm.WSMessage) error {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return ErrUnknownSocket
	}
	return c.(*client).write(m)
}

func (s *Ws) StoreRoom(socketId string, cardId string) {
	s.roomMap.Store(socketId, cardId)
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return room.(string), true
}

// GetRoomSockets lists the sockets watching cardId.
func (s *Ws) GetRoomSockets(cardId string) ([]string, bool) {
	var sockets []string

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == cardId {
			sockets = append(sockets, key.(string))
		}
		return true
	})

	return sockets, len(sockets) > 0
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.roomMap.Delete(socketId)
	s.connMap.Delete(socketId)
}

// GetConnection reports whether socketId is still connected.
func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*client).conn, true
}

func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
