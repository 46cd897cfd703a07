// SPDX-License-Identifier: MIT
package transport

import (
	"affect/internal/log"
	"affect/internal/metrics"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 256
	writeWait       = time.Second
)

// WebSocketTransport broadcasts every payload as JSON to all clients
// connected on /ws. Sends never block: when the broadcast queue is full the
// payload is dropped.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	metrics   *metrics.Metrics
}

// NewWebSocketTransport creates the transport and starts its broadcast loop.
// Mount Handler on a server, or call ListenAndServe.
func NewWebSocketTransport(m *metrics.Metrics) *WebSocketTransport {
	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Dashboards are served from other origins
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastBuffer),
		done:      make(chan struct{}),
		metrics:   m,
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns a mux serving the /ws endpoint.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	return mux
}

// ListenAndServe serves Handler on addr until ctx is cancelled.
func (wst *WebSocketTransport) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("WebSocketTransport: Starting WebSocket server on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[conn] = true
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.metrics.SetWebSocketClients(n)
	log.Infof("WebSocketTransport: Client connected, total: %d", n)

	// Clients never send; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				wst.remove(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) remove(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	if !wst.clients[conn] {
		wst.clientsMu.Unlock()
		return
	}
	delete(wst.clients, conn)
	n := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	wst.metrics.SetWebSocketClients(n)
	log.Infof("WebSocketTransport: Client disconnected, total: %d", n)
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			var failed []*websocket.Conn
			for client := range wst.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteJSON(data); err != nil {
					log.Warnf("WebSocketTransport: Error sending to client: %v", err)
					failed = append(failed, client)
				}
			}
			wst.clientsMu.Unlock()
			for _, client := range failed {
				wst.remove(client)
			}
		}
	}
}

// Send queues data for broadcast to all connected WebSocket clients.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		log.Debugf("WebSocketTransport: Broadcast queue full, dropping message")
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Close stops the broadcast loop and disconnects all clients.
func (wst *WebSocketTransport) Close() error {
	wst.closeOnce.Do(func() {
		log.Infof("WebSocketTransport: Closing")
		close(wst.done)
		wst.wg.Wait()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()
		wst.metrics.SetWebSocketClients(0)
	})
	return nil
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
