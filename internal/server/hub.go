// Package server exposes agent activity to external clients over
// WebSocket. The hub mirrors bridge events (tool started, tool finished,
// cancellation) so editor panels and debugging UIs can watch a turn live.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scenecraft/scenecraft/internal/bridge"
	"github.com/scenecraft/scenecraft/internal/logging"
)

const (
	// EventsEndpoint is the WebSocket path clients connect to.
	EventsEndpoint = "/events"

	// HealthEndpoint answers liveness probes.
	HealthEndpoint = "/health"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	clientSendBuffer = 32
)

// Hub fans bridge events out to connected WebSocket clients. Slow clients
// are dropped rather than allowed to stall the broadcast loop.
type Hub struct {
	bind     string
	upgrader websocket.Upgrader
	server   *http.Server
	log      *logging.Logger

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running   bool
	runningMu sync.Mutex
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub bound to addr (host:port).
func NewHub(addr string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		bind: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local editor integration only; the bind address stays on
			// loopback by default.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:        logging.Global().WithComponent("events"),
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Listener returns a bridge listener that forwards events to the hub.
func (h *Hub) Listener() bridge.Listener {
	return func(ev bridge.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		select {
		case h.broadcast <- payload:
		default:
			// Broadcast backlog full; the event stream is advisory.
		}
	}
}

// Start runs the HTTP server and the fan-out loop.
func (h *Hub) Start() error {
	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		return fmt.Errorf("event hub already running")
	}
	h.running = true
	h.runningMu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(EventsEndpoint, h.handleWebSocket)
	mux.HandleFunc(HealthEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	h.server = &http.Server{Addr: h.bind, Handler: mux}

	h.wg.Add(1)
	go h.run()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.log.Info("event hub listening on %s", h.bind)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.log.Error("event hub server: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down and disconnects all clients.
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	running := h.running
	h.running = false
	h.runningMu.Unlock()
	if !running {
		return nil
	}

	h.cancel()
	var err error
	if h.server != nil {
		err = h.server.Shutdown(ctx)
	}
	h.wg.Wait()
	return err
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("client connected (%d total)", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer; cut it loose.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade: %v", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, clientSendBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump consumes inbound frames so pings and close handshakes work.
// Clients do not send application data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
