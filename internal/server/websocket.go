package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kode4food/miniscript/internal/events"
	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/log"
)

// Client represents a WebSocket client connection for run event streaming
type Client struct {
	conn      *websocket.Conn
	consumer  events.Consumer
	filter    api.EventFilter
	done      chan struct{}
	closeOnce sync.Once
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades an HTTP connection to WebSocket and streams run
// events from hub. A new client receives every event until it subscribes
// to something narrower
func HandleWebSocket(
	hub *events.Hub, w http.ResponseWriter, r *http.Request,
) *Client {
	consumer := hub.NewConsumer()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		consumer.Close()
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return nil
	}

	client := &Client{
		conn:     conn,
		consumer: consumer,
		filter:   api.FilterAll,
		done:     make(chan struct{}),
	}
	go client.run()
	return client
}

func (s *Server) handleWebSocket(c *gin.Context) {
	client := HandleWebSocket(s.eventHub, c.Writer, c.Request)
	if client == nil {
		return
	}
	s.registerWebSocket(client)
	go func() {
		<-client.done
		s.unregisterWebSocket(client)
	}()
}

// Close terminates the connection
func (c *Client) Close() {
	_ = c.conn.Close()
}

func (c *Client) run() {
	defer func() {
		c.consumer.Close()
		_ = c.conn.Close()
		c.closeOnce.Do(func() { close(c.done) })
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			c.handleSubscribe(message)

		case event, ok := <-c.consumer.Receive():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.sendEventIfMatched(event) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			close(incoming)
			return
		}
		incoming <- message
	}
}

func (c *Client) handleSubscribe(message []byte) {
	var sub api.SubscribeRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		slog.Error("Failed to parse WebSocket message",
			log.Error(err))
		return
	}
	c.filter = BuildFilter(&sub)

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(api.SubscribedResponse{
		Type:       api.MessageSubscribed,
		RunID:      sub.RunID,
		EventTypes: sub.EventTypes,
	})
	if err != nil {
		slog.Error("WebSocket write failed",
			slog.String("context", "subscribed"),
			log.Error(err))
	}
}

func (c *Client) sendEventIfMatched(event *api.Event) bool {
	if !c.filter(event) {
		return true
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(event); err != nil {
		slog.Error("WebSocket write failed",
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}

// BuildFilter creates an event filter from a subscription. An empty
// subscription accepts every event
func BuildFilter(sub *api.SubscribeRequest) api.EventFilter {
	var filters []api.EventFilter
	if sub.RunID != "" {
		filters = append(filters, api.FilterRun(sub.RunID))
	}
	if len(sub.EventTypes) > 0 {
		filters = append(filters, api.FilterTypes(sub.EventTypes...))
	}

	switch len(filters) {
	case 0:
		return api.FilterAll
	case 1:
		return filters[0]
	default:
		return api.AndFilters(filters...)
	}
}
