package viewer

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// reloadMessage is pushed to every connected client after a re-cook so
// the page refetches /data.json.
var reloadMessage = []byte(`{"type":"reload"}`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI page is the only intended caller, but dev setups reach the
	// viewer through port forwards, so origins are not checked.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub tracks the websocket clients subscribed to reload notifications.
// A single goroutine owns the client set; registration, unregistration
// and broadcasts all go through channels, so the map needs no lock.
type hub struct {
	clients      map[*client]bool
	broadcastCh  chan []byte
	registerCh   chan *client
	unregisterCh chan *client
}

// client wraps one websocket connection with a buffered outbound queue.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{
		clients:      make(map[*client]bool),
		broadcastCh:  make(chan []byte, 16),
		registerCh:   make(chan *client),
		unregisterCh: make(chan *client),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.registerCh:
			h.clients[c] = true
			slog.Debug("viewer client connected", "total", len(h.clients))
		case c := <-h.unregisterCh:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			slog.Debug("viewer client disconnected", "total", len(h.clients))
		case msg := <-h.broadcastCh:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client: drop it rather than stall the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// broadcastReload notifies every connected client. Non-blocking: if the
// hub is saturated the notification is dropped, and clients catch up on
// the next one.
func (h *hub) broadcastReload() {
	select {
	case h.broadcastCh <- reloadMessage:
	default:
	}
}

// handleWebSocket upgrades the connection and registers it for reload
// notifications.
func (v *Viewer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 8)}
	v.hub.registerCh <- c

	go c.writePump()
	go c.readPump(v.hub)
}

// writePump drains the send queue into the connection. Exits when the
// hub closes the queue or a write fails.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump discards anything the client sends; reading is how
// disconnects surface.
func (c *client) readPump(h *hub) {
	defer func() {
		h.unregisterCh <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
