// Package comm holds the messages exchanged between the loyalty API, the
// socket service and browser clients.
package comm

import (
	"encoding/json"
	"time"
)

// NATS subjects.
const (
	TopicCardUpdated = "card.updated"
)

// WebSocket message types.
const (
	MsgWatchCard         = "watch-card"
	MsgWatchCardResponse = "watch-card-response"
	MsgUnwatchCard       = "unwatch-card"
	MsgCardUpdated       = "card-updated"
	MsgError             = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "watch-card", "card-updated"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

type WatchCard struct {
	CardID string `json:"cardId"`
}

// CardUpdate is published after a stamp or redemption commits.
type CardUpdate struct {
	CardID     string    `json:"cardId"`
	CustomerID string    `json:"customerId"`
	Stamps     int       `json:"stamps"`
	MaxStamps  int       `json:"maxStamps"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`              // "stamp" or "redeem"
	NewCardID  string    `json:"newCardId,omitempty"` // set on redeem
	At         time.Time `json:"at"`
}

const (
	ReasonStamp  = "stamp"
	ReasonRedeem = "redeem"
)

type Res struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}
