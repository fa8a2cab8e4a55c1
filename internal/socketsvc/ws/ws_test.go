package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avvvet/loyalty-services/internal/comm"
)

func TestRooms(t *testing.T) {
	s := NewWs()
	s.StoreRoom("a", "card-1")
	s.StoreRoom("b", "card-1")
	s.StoreRoom("c", "card-2")

	sockets, ok := s.GetRoomSockets("card-1")
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"a", "b"}, sockets)

	s.StoreRoom("a", "card-2")
	sockets, _ = s.GetRoomSockets("card-1")
	assert.Equal(t, []string{"b"}, sockets)

	s.HandleDisconnect("b")
	_, ok = s.GetRoomSockets("card-1")
	assert.False(t, ok)

	room, ok := s.GetRoom("c")
	assert.True(t, ok)
	assert.Equal(t, "card-2", room)
}

func TestSendToUnknownSocket(t *testing.T) {
	s := NewWs()
	assert.ErrorIs(t, s.Send("ghost", &comm.WSMessage{Type: comm.MsgCardUpdated}), ErrUnknownSocket)
	assert.Zero(t, s.Count())
}

func TestWatchWithoutCardIsIgnored(t *testing.T) {
	s := NewWs()
	data, _ := json.Marshal(comm.WatchCard{CardID: "  "})
	s.SocketMessage("a", &comm.WSMessage{Type: comm.MsgWatchCard, Data: data})

	_, ok := s.GetRoom("a")
	assert.False(t, ok)
}
