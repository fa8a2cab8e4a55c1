package broker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/comm"
)

type capture struct {
	subject string
	data    []byte
	err     error
}

func (c *capture) Publish(subj string, data []byte) error {
	c.subject, c.data = subj, data
	return c.err
}

func TestPublishCardUpdate(t *testing.T) {
	c := &capture{}
	b := NewBroker(c)

	u := comm.CardUpdate{CardID: "card-1", Stamps: 3, MaxStamps: 5, Status: "active", Reason: comm.ReasonStamp, At: time.Unix(0, 0).UTC()}
	require.NoError(t, b.PublishCardUpdate(u))
	assert.Equal(t, comm.TopicCardUpdated, c.subject)

	var got comm.CardUpdate
	require.NoError(t, json.Unmarshal(c.data, &got))
	assert.Equal(t, u, got)
}

func TestPublishErrorIsReturned(t *testing.T) {
	c := &capture{err: errors.New("nats: connection closed")}
	assert.Error(t, NewBroker(c).PublishCardUpdate(comm.CardUpdate{CardID: "x"}))
}
