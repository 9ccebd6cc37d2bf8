package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/core/services/coordinator"
)

// StatusHandler reports coordinator health.
type StatusHandler struct {
	Coordinator *coordinator.Coordinator
	Broadcaster ports.Broadcaster
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(coord *coordinator.Coordinator, broadcaster ports.Broadcaster) *StatusHandler {
	return &StatusHandler{
		Coordinator: coord,
		Broadcaster: broadcaster,
	}
}

// HandleStatus returns a service health snapshot
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	active := h.Coordinator.Poller().ActiveDevices()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service":             "centerville-coordinator",
		"status":              "running",
		"websocket_clients":   h.Broadcaster.ClientCount(),
		"connected_sensors":   h.Coordinator.Sessions().SessionCount(),
		"wifi_polling":        h.Coordinator.Poller().Running(),
		"wifi_active_sensors": active,
	})
}
