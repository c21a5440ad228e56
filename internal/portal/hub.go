package portal

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Per-client queue of outgoing messages
	sendQueueSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator tools connect from any origin on the portal network
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan Message
}

// hub fans portal messages out to /events subscribers. Messages broadcast
// before a client connects are replayed to it.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	history []Message
	closed  bool
	wg      sync.WaitGroup
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

// serve upgrades the request and streams messages until the client leaves
// or the hub closes. hello is sent first.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, hello Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Failed to upgrade to WebSocket",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &wsClient{conn: conn, send: make(chan Message, sendQueueSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.send <- hello
	for _, msg := range h.history {
		select {
		case c.send <- msg:
		default:
		}
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	logging.Debug("Event subscriber connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writePump(c)
	h.readPump(c)
}

func (h *hub) readPump(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Event subscriber read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "portal closed"))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast queues msg for every subscriber. Slow subscribers drop
// messages rather than stall the portal.
func (h *hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.history = append(h.history, msg)
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logging.Debug("Dropping event for slow subscriber", zap.String("type", msg.Type))
		}
	}
}

// close sends final to every subscriber, disconnects them and waits for
// their writers to finish.
func (h *hub) close(final Message) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		select {
		case c.send <- final:
		default:
		}
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(writeWait):
		logging.Warn("Event subscribers did not close in time")
	}
}

// count returns the number of connected subscribers
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
