package events

import (
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/miniscript/pkg/api"
)

type (
	// Hub fans run events out to any number of consumers. It observes the
	// engine, so every run it sees is published on one topic
	Hub struct {
		topic  topic.Topic[*api.Event]
		prod   topic.Producer[*api.Event]
		mu     sync.RWMutex
		closed bool
	}

	// Consumer receives the events published after it was created
	Consumer = topic.Consumer[*api.Event]
)

// NewHub creates an event hub backed by an in-memory topic
func NewHub() *Hub {
	t := caravan.NewTopic[*api.Event]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// Observe publishes a copy of ev. Events observed after Close are dropped
func (h *Hub) Observe(ev *api.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	cpy := *ev
	message.Send(h.prod, &cpy)
}

// NewConsumer subscribes to the events published from now on. The caller
// must Close the consumer when done
func (h *Hub) NewConsumer() Consumer {
	return h.topic.NewConsumer()
}

// Close stops publishing
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.prod.Close()
}
