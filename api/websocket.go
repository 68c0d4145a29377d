package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/seenimoa/finboard/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes only
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Message types exchanged on /ws/screener.
const (
	msgScreen    = "screen"
	msgPing      = "ping"
	msgPong      = "pong"
	msgStarted   = "started"
	msgReasoning = "reasoning"
	msgResults   = "results"
	msgError     = "error"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsRequest is an incoming client message; Data is decoded per Type.
type wsRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ScreenStarted announces a screen and the id tagging its messages.
type ScreenStarted struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// ScreenReasoning is one reasoning fragment, in arrival order.
type ScreenReasoning struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ScreenResults is the final message of a successful screen.
type ScreenResults struct {
	ID      string                  `json:"id"`
	Results []models.ScreenerResult `json:"results"`
}

// ScreenFailed is the final message of a failed screen. ID is empty when the
// request was rejected before a screen started.
type ScreenFailed struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// handleScreenerSocket upgrades to WebSocket and serves screen requests.
// Each request runs in its own goroutine; its messages share one id.
func (s *Server) handleScreenerSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewWSClient(s.wsHub)
	if !s.wsHub.Register(client) {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	go wsWritePump(ctx, conn, client)
	go s.wsReadPump(ctx, cancel, conn, client)
}

// wsReadPump reads client messages until the connection drops.
func (s *Server) wsReadPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *WSClient) {
	defer func() {
		cancel()
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg wsRequest
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(WSMessage{Type: msgError, Data: ScreenFailed{Error: "invalid message"}})
			continue
		}

		switch msg.Type {
		case msgScreen:
			var req ScreenerRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil || strings.TrimSpace(req.Query) == "" {
				client.Send(WSMessage{Type: msgError, Data: ScreenFailed{Error: "query is required"}})
				continue
			}
			go s.runScreen(ctx, client, req.Query)
		case msgPing:
			client.Send(WSMessage{Type: msgPong})
		default:
			client.Send(WSMessage{Type: msgError, Data: ScreenFailed{Error: "unknown message type: " + msg.Type}})
		}
	}
}

// runScreen streams one screen to the client: started, reasoning fragments,
// then results or error.
func (s *Server) runScreen(ctx context.Context, client *WSClient, query string) {
	id := uuid.NewString()
	client.Send(WSMessage{Type: msgStarted, Data: ScreenStarted{ID: id, Query: query}})

	results, err := s.agg.Service().Screen(ctx, query, func(text string) {
		client.Send(WSMessage{Type: msgReasoning, Data: ScreenReasoning{ID: id, Text: text}})
	})
	if err != nil {
		s.logger.Error("screen failed", "id", id, "error", err)
		client.Send(WSMessage{Type: msgError, Data: ScreenFailed{ID: id, Error: errorMessage(err)}})
		return
	}
	client.Send(WSMessage{Type: msgResults, Data: ScreenResults{ID: id, Results: results}})
}

// wsWritePump writes queued messages and keeps the connection alive.
func wsWritePump(ctx context.Context, conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

			// Flush queued messages
			n := len(client.send)
			for i := 0; i < n; i++ {
				if err := conn.WriteJSON(<-client.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSHub tracks WebSocket clients and broadcasts server events to them.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	stopped    chan struct{}
}

// WSClient is a single WebSocket connection. send is never closed; done is
// closed once the client is dropped, so senders never block on a dead peer.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
	done chan struct{}
	once sync.Once
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		stopped:    make(chan struct{}),
	}
}

// NewWSClient creates a client attached to hub.
func NewWSClient(hub *WSHub) *WSClient {
	return &WSClient{
		hub:  hub,
		send: make(chan WSMessage, 256),
		done: make(chan struct{}),
	}
}

// Send queues msg for the client. It reports false once the client is gone.
func (c *WSClient) Send(msg WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Done is closed when the client has been dropped.
func (c *WSClient) Done() <-chan struct{} { return c.done }

func (c *WSClient) close() {
	c.once.Do(func() { close(c.done) })
}

// Run starts the hub event loop. It returns when ctx is cancelled, dropping
// every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
			client.close()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					delete(h.clients, client)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub. It reports false once the hub has
// stopped.
func (h *WSHub) Register(client *WSClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		client.close()
		return false
	}
}

// Unregister removes a client from the hub and closes it.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
		client.close()
	}
}
