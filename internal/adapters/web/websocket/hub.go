package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
)

const writeTimeout = 5 * time.Second

var clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "centerville_websocket_clients",
	Help: "The number of currently connected websocket subscribers",
})

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The coordinator serves a trusted LAN; browser dashboards connect
		// from arbitrary local hosts.
		return true
	},
}

// Message is the envelope for every frame pushed to subscribers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sensorStatus struct {
	Device    string `json:"device"`
	Address   string `json:"address"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Hub fans readings and status events out to every connected websocket
// client. A client that cannot be written to is evicted; the remaining
// clients are unaffected.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]string
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
	}
}

// HandleWebSocket upgrades the request and registers the client. Inbound
// frames are drained and discarded; the hub is push-only.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.clients[conn] = id
	count := len(h.clients)
	h.mu.Unlock()
	clientsConnected.Inc()
	slog.Info("WebSocket client connected", "client", id, "clients", count)

	go func() {
		defer conn.Close()
		defer func() {
			h.mu.Lock()
			_, present := h.clients[conn]
			delete(h.clients, conn)
			h.mu.Unlock()
			if present {
				clientsConnected.Dec()
			}
			slog.Info("WebSocket client disconnected", "client", id)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastReading pushes an accepted reading to all clients.
func (h *Hub) BroadcastReading(reading domain.Reading) {
	h.broadcast(Message{Type: "reading", Data: reading})
}

// BroadcastSensorStatus pushes a session connect or disconnect event.
func (h *Hub) BroadcastSensorStatus(device, address, name string, connected bool) {
	h.broadcast(Message{Type: "sensor_status", Data: sensorStatus{
		Device:    device,
		Address:   address,
		Name:      name,
		Connected: connected,
	}})
}

// broadcast marshals once and writes the same bytes to every client.
// Failed clients are collected during the pass and evicted afterwards so
// map iteration is never mutated mid-walk.
func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("WebSocket marshal failed", "type", msg.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []*websocket.Conn
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		slog.Debug("Evicting unresponsive WebSocket client", "client", h.clients[conn])
		conn.Close()
		if _, present := h.clients[conn]; present {
			delete(h.clients, conn)
			clientsConnected.Dec()
		}
	}
}

var _ ports.Broadcaster = (*Hub)(nil)
