// Package stream broadcasts captured frames as JPEG images to WebSocket
// viewers. Slow viewers drop frames instead of stalling capture.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/capture/internal/logging"
	"github.com/breeze-rmm/capture/pkg/frame"
)

var log = logging.L("stream")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// clientBuffer is how many encoded frames may wait per viewer.
	clientBuffer = 2
)

// Stats is a snapshot of hub counters.
type Stats struct {
	Clients   int    `json:"clients" yaml:"clients"`
	Broadcast uint64 `json:"broadcast" yaml:"broadcast"`
	Sent      uint64 `json:"sent" yaml:"sent"`
	Dropped   uint64 `json:"dropped" yaml:"dropped"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans frames out to connected viewers.
type Hub struct {
	quality  int
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	broadcast atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub returns a hub encoding at the given JPEG quality (1-100).
func NewHub(quality int) *Hub {
	quality = max(1, min(quality, 100))
	return &Hub{
		quality: quality,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Broadcast encodes f once and queues it for every viewer. The frame is not
// retained, so it is safe to call from a frame handler. With no viewers it
// does nothing.
func (h *Hub) Broadcast(f *frame.Frame) error {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return nil
	}

	bgr, err := f.ToBGR(false)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, bgr.Image(), &jpeg.Options{Quality: h.quality}); err != nil {
		return fmt.Errorf("stream: encode frame: %w", err)
	}
	data := buf.Bytes()
	h.broadcast.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// ServeHTTP upgrades the request and registers the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", logging.KeyError, err, "remote", r.RemoteAddr)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	log.Info("viewer connected", "remote", r.RemoteAddr, "clients", total)

	go h.writePump(c)
	h.readPump(c)

	h.remove(c)
	log.Info("viewer disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// readPump discards viewer messages and keeps the read deadline fresh.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("viewer read error", logging.KeyError, err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				log.Warn("viewer write error", logging.KeyError, err)
				return
			}
			h.sent.Add(1)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Stats() Stats {
	return Stats{
		Clients:   h.Clients(),
		Broadcast: h.broadcast.Load(),
		Sent:      h.sent.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// Close disconnects all viewers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "capture ended"), time.Now().Add(writeWait))
		c.close()
	}
}

// Handler returns the HTTP routes: /ws for frames and / for a minimal viewer.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(viewerPage))
	})
	return mux
}

// Serve listens on addr until ctx ends, then closes the hub and shuts the
// server down. ready, if non-nil, receives the bound address.
func Serve(ctx context.Context, addr string, h *Hub, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stream: listen %s: %w", addr, err)
	}
	if ready != nil {
		ready(ln.Addr())
	}
	srv := &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		h.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	h.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stream: shutdown: %w", err)
	}
	return nil
}

const viewerPage = `<!doctype html>
<html><head><title>screencap</title>
<style>body{margin:0;background:#111}img{max-width:100vw;max-height:100vh;display:block;margin:auto}</style>
</head><body><img id="f" alt="">
<script>
const img = document.getElementById("f");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.binaryType = "blob";
ws.onmessage = (ev) => {
  const url = URL.createObjectURL(ev.data);
  img.onload = () => URL.revokeObjectURL(url);
  img.src = url;
};
</script></body></html>
`
