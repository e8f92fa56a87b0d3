package clinicchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"nhooyr.io/websocket"
)

// Subscription is a standing per-room live feed. Events are delivered in
// server insertion order on Events; history is never replayed. There is no
// automatic resubscription: a dropped transport closes the channel and the
// owner decides whether to redial.
type Subscription struct {
	conn   *websocket.Conn
	events chan Message
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// Subscribe opens a live subscription to a room. Tear it down with Close
// when the viewed room changes or the view goes away; a leaked subscription
// keeps delivering events for a room nobody is looking at.
func (c *Client) Subscribe(ctx context.Context, roomID int) (*Subscription, error) {
	u := wsURL(c.BaseURL) + fmt.Sprintf("/ws/rooms/%d", roomID)
	return c.dialSubscription(ctx, u, func(env wireEnvelope) (Message, bool) {
		if env.Type != "message" || env.Message == nil {
			return Message{}, false
		}
		var w wireMessage
		if err := json.Unmarshal(env.Message, &w); err != nil {
			return Message{}, false
		}
		return normalizeMessage(w), true
	})
}

func (c *Client) dialSubscription(ctx context.Context, u string, decode func(wireEnvelope) (Message, bool)) (*Subscription, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)

	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: c.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("dial subscription: %w", err)
	}

	sub := &Subscription{
		conn:   conn,
		events: make(chan Message, 16),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.events)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				sub.mu.Lock()
				sub.err = err
				sub.mu.Unlock()
				return
			}
			var env wireEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			msg, ok := decode(env)
			if !ok {
				continue
			}
			// Close must terminate the loop even when the owner stopped
			// draining and the buffer is full.
			select {
			case sub.events <- msg:
			case <-sub.done:
				return
			}
		}
	}()

	return sub, nil
}

// Events returns the live message channel. It is closed when the
// subscription ends for any reason.
func (s *Subscription) Events() <-chan Message {
	return s.events
}

// Err reports why the subscription ended, nil for a clean Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the subscription.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close(websocket.StatusNormalClosure, "subscription closed")
	})
}

// LobbySubscription is the authenticated-scope activity feed: one event per
// message inserted in any visible room.
type LobbySubscription struct {
	conn   *websocket.Conn
	events chan RoomActivity
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// SubscribeLobby opens the room-activity feed used by list views to know
// when to refetch.
func (c *Client) SubscribeLobby(ctx context.Context) (*LobbySubscription, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)

	conn, _, err := websocket.Dial(ctx, wsURL(c.BaseURL)+"/ws/lobby", &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: c.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("dial lobby: %w", err)
	}

	sub := &LobbySubscription{
		conn:   conn,
		events: make(chan RoomActivity, 16),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.events)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				sub.mu.Lock()
				sub.err = err
				sub.mu.Unlock()
				return
			}
			var env wireEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			if env.Type != "room_activity" {
				continue
			}
			select {
			case sub.events <- RoomActivity{RoomID: env.RoomID, SentAt: env.SentAt}:
			case <-sub.done:
				return
			}
		}
	}()

	return sub, nil
}

// Events returns the activity channel. It is closed when the subscription
// ends.
func (s *LobbySubscription) Events() <-chan RoomActivity {
	return s.events
}

// Err reports why the subscription ended, nil for a clean Close.
func (s *LobbySubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the subscription.
func (s *LobbySubscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close(websocket.StatusNormalClosure, "subscription closed")
	})
}

func wsURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
