package bus

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSlowClientDropsEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClientBuffer = 1
	metrics := &Metrics{}
	h := newHub(cfg, metrics, zerolog.Nop())

	c := &client{send: make(chan []byte, cfg.ClientBuffer)}
	h.register(c)

	for i := 0; i < 3; i++ {
		h.broadcast(Envelope{Event: EventAddPost, Payload: json.RawMessage(`{}`), Origin: "x"})
	}
	assert.Len(t, c.send, 1)
	assert.Equal(t, uint64(2), metrics.GetSnapshot().Dropped)

	var env Envelope
	assert.NoError(t, json.Unmarshal(<-c.send, &env))
	assert.Empty(t, env.Origin)

	h.unregister(c)
	h.unregister(c)
	assert.Equal(t, int64(0), metrics.GetSnapshot().Clients)
}

func TestParseEvents(t *testing.T) {
	assert.Nil(t, parseEvents(""))
	assert.Equal(t, map[string]bool{"add post": true, "chat list": true}, parseEvents("add post, chat list,"))
}
