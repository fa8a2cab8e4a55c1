package broker

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/comm"
	"github.com/avvvet/loyalty-services/internal/socketsvc/routes"
	"github.com/avvvet/loyalty-services/internal/socketsvc/ws"
)

type sent struct {
	mu  sync.Mutex
	got map[string][]*comm.WSMessage
}

func (s *sent) send(socketId string, m *comm.WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got[socketId] = append(s.got[socketId], m)
	return nil
}

func updateMsg(t *testing.T, u comm.CardUpdate) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(u)
	require.NoError(t, err)
	return &nats.Msg{Subject: comm.TopicCardUpdated, Data: data}
}

func TestHandleMessagesFansOutToWatchers(t *testing.T) {
	out := &sent{got: map[string][]*comm.WSMessage{}}
	rooms := map[string][]string{"card-1": {"s1", "s2"}}
	b := NewBroker(nil, out.send, func(id string) ([]string, bool) {
		s, ok := rooms[id]
		return s, ok
	})

	b.handleMessages(updateMsg(t, comm.CardUpdate{CardID: "card-1", Stamps: 3, MaxStamps: 5, Status: "active", Reason: comm.ReasonStamp}))
	b.handleMessages(updateMsg(t, comm.CardUpdate{CardID: "card-2", Stamps: 1, MaxStamps: 5}))
	b.handleMessages(&nats.Msg{Data: []byte("{not json")})
	b.handleMessages(updateMsg(t, comm.CardUpdate{Stamps: 1}))

	require.Len(t, out.got, 2)
	for _, id := range []string{"s1", "s2"} {
		require.Len(t, out.got[id], 1)
		assert.Equal(t, comm.MsgCardUpdated, out.got[id][0].Type)

		var u comm.CardUpdate
		require.NoError(t, json.Unmarshal(out.got[id][0].Data, &u))
		assert.Equal(t, 3, u.Stamps)
	}
}

func TestCardUpdateReachesWatchingSocket(t *testing.T) {
	s := ws.NewWs()
	routes.InitAuth("socket-test")
	r := chi.NewRouter()
	routes.SetRoutes(r, s)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	watch, _ := json.Marshal(comm.WatchCard{CardID: "https://cafe.example/card/card-9?src=qr"})
	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: comm.MsgWatchCard, Data: watch}))

	var reply comm.WSMessage
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, comm.MsgWatchCardResponse, reply.Type)
	var res comm.Res
	require.NoError(t, json.Unmarshal(reply.Data, &res))
	assert.True(t, res.Status)
	assert.Equal(t, "card-9", res.Message)

	b := NewBroker(nil, s.Send, s.GetRoomSockets)
	b.handleMessages(updateMsg(t, comm.CardUpdate{
		CardID: "card-9", Stamps: 0, MaxStamps: 5, Status: "redeemed",
		Reason: comm.ReasonRedeem, NewCardID: "card-10",
	}))

	var pushed comm.WSMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, comm.MsgCardUpdated, pushed.Type)
	var u comm.CardUpdate
	require.NoError(t, json.Unmarshal(pushed.Data, &u))
	assert.Equal(t, "card-10", u.NewCardID)

	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: "dance"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, comm.MsgError, reply.Type)
}
