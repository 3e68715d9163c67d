// Package bridge fans live workflow events out over websocket so
// external UIs can follow an engagement as it runs. The chat loop
// publishes every event it renders; clients connect to /ws and receive
// the same stream. A client that cannot keep up is dropped rather than
// allowed to stall the turn.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 45 * time.Second
	pingPeriod     = 15 * time.Second
	maxInboundSize = 512
	sendBuffer     = 64
)

// frame is the wire shape clients receive: the event kind, a
// monotonically increasing sequence number, and the event itself.
type frame struct {
	Event   string       `json:"event"`
	Seq     int64        `json:"seq"`
	Payload models.Event `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster accepts websocket clients and fans published events out
// to all of them. Safe for concurrent use.
type Broadcaster struct {
	logger   *observability.Logger
	upgrader websocket.Upgrader
	seq      atomic.Int64

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	httpServer *http.Server
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *observability.Logger) *Broadcaster {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Broadcaster{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish sends one event to every connected client. A client whose
// send buffer is full is disconnected; the stream must never block the
// workflow that produces it.
func (b *Broadcaster) Publish(ev models.Event) {
	data, err := json.Marshal(frame{
		Event:   string(ev.Kind),
		Seq:     b.seq.Add(1),
		Payload: ev,
	})
	if err != nil {
		b.logger.Warn(context.Background(), "bridge event marshal failed", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			delete(b.clients, c)
			close(c.send)
			b.logger.Warn(context.Background(), "bridge client too slow, dropping")
		}
	}
}

// ClientCount reports the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler returns the HTTP handler: the websocket endpoint on /ws and
// a health probe on /healthz.
func (b *Broadcaster) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", b.serveWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then disconnects every
// client and shuts down gracefully.
func (b *Broadcaster) Serve(ctx context.Context, addr string) error {
	b.httpServer = &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info(ctx, "event bridge listening", "addr", addr)
		if err := b.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	b.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.httpServer.Shutdown(shutdownCtx); err != nil {
		b.logger.Warn(ctx, "bridge shutdown error", "error", err)
	}
	return <-errCh
}

// Close disconnects every client. Publish becomes a no-op afterwards.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (b *Broadcaster) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.Close()
		return
	}
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()

	b.logger.Info(r.Context(), "bridge client connected", "clients", n)

	go b.writeLoop(c)
	b.readLoop(c)
}

// readLoop consumes inbound frames (clients send nothing meaningful;
// this keeps pong handling alive) and tears the client down when the
// connection drops.
func (b *Broadcaster) readLoop(c *client) {
	defer b.remove(c)

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remove unregisters a client. Safe to call for clients Publish or
// Close already dropped.
func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
	_ = c.conn.Close()
}
