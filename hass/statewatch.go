package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StateWatcher keeps a live view of entity states over the Home Assistant
// websocket API, so dashboard reads do not always hit the REST endpoint.
type StateWatcher struct {
	baseURL string
	token   string

	mu     sync.RWMutex
	states map[string]State
	ready  bool

	conn *websocket.Conn
	done chan struct{}
}

// wsMessage is the generic Home Assistant websocket message format.
type wsMessage struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success bool            `json:"success,omitempty"`
	Event   *wsEvent        `json:"event,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type wsEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string `json:"entity_id"`
		NewState *State `json:"new_state"`
	} `json:"data"`
}

// NewStateWatcher creates a watcher for the given Home Assistant instance.
func NewStateWatcher(baseURL, token string) *StateWatcher {
	return &StateWatcher{
		baseURL: baseURL,
		token:   token,
		states:  make(map[string]State),
		done:    make(chan struct{}),
	}
}

// Start connects, authenticates, subscribes to state_changed events, and
// keeps the state cache updated until Stop is called.
func (w *StateWatcher) Start(ctx context.Context) error {
	u, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/api/websocket"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial home assistant websocket: %w", err)
	}

	if err := w.authenticate(conn); err != nil {
		conn.Close()
		return err
	}

	// Subscribe to state changes.
	sub := map[string]interface{}{"id": 1, "type": "subscribe_events", "event_type": "state_changed"}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to state_changed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.ready = true
	w.mu.Unlock()

	go w.readLoop(conn)
	return nil
}

func (w *StateWatcher) authenticate(conn *websocket.Conn) error {
	var authReq wsMessage
	if err := conn.ReadJSON(&authReq); err != nil {
		return fmt.Errorf("failed to read auth_required: %w", err)
	}
	if authReq.Type != "auth_required" {
		return fmt.Errorf("unexpected first websocket message: %s", authReq.Type)
	}

	auth := map[string]string{"type": "auth", "access_token": w.token}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	var authResp wsMessage
	if err := conn.ReadJSON(&authResp); err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}
	if authResp.Type != "auth_ok" {
		return fmt.Errorf("home assistant auth failed: %s", authResp.Type)
	}
	return nil
}

func (w *StateWatcher) readLoop(conn *websocket.Conn) {
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			log.Printf("Home Assistant websocket read error: %v", err)
			w.mu.Lock()
			w.ready = false
			w.mu.Unlock()
			return
		}

		if msg.Type != "event" || msg.Event == nil || msg.Event.EventType != "state_changed" {
			continue
		}
		data := msg.Event.Data
		if data.NewState == nil {
			continue
		}

		w.mu.Lock()
		w.states[data.EntityID] = *data.NewState
		w.mu.Unlock()
	}
}

// IsReady reports whether the watcher currently holds a live connection.
func (w *StateWatcher) IsReady() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ready
}

// Snapshot returns a copy of the cached entity states.
func (w *StateWatcher) Snapshot() []State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	states := make([]State, 0, len(w.states))
	for _, s := range w.states {
		states = append(states, s)
	}
	return states
}

// Stop closes the watcher connection.
func (w *StateWatcher) Stop() {
	close(w.done)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.ready = false
}
