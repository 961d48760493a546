package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kode4food/miniscript/pkg/api"
)

// EventStream receives run events from a server WebSocket
type EventStream struct {
	conn *websocket.Conn
}

const routeEvents = "/engine/ws"

var ErrSubscribe = errors.New("failed to subscribe to events")

// Subscribe opens an event stream narrowed by sub. It returns once the
// server has acknowledged the subscription, so runs started afterward are
// guaranteed to be seen
func (c *Client) Subscribe(
	ctx context.Context, sub *api.SubscribeRequest,
) (*EventStream, error) {
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + routeEvents
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscribe, err)
	}

	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrSubscribe, err)
	}

	s := &EventStream{conn: conn}
	for {
		msg, err := s.read()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %w", ErrSubscribe, err)
		}
		if isSubscribedAck(msg) {
			return s, nil
		}
	}
}

// Next blocks until the next event arrives or the stream closes
func (s *EventStream) Next() (*api.Event, error) {
	for {
		msg, err := s.read()
		if err != nil {
			return nil, err
		}
		if isSubscribedAck(msg) {
			continue
		}
		var ev api.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	}
}

// Close terminates the stream
func (s *EventStream) Close() error {
	return s.conn.Close()
}

func (s *EventStream) read() (json.RawMessage, error) {
	_, msg, err := s.conn.ReadMessage()
	return msg, err
}

func isSubscribedAck(msg json.RawMessage) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return false
	}
	return probe.Type == api.MessageSubscribed
}
