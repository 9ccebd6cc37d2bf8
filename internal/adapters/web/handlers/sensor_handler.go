package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/services/coordinator"
)

// SensorHandler lists the sensors the coordinator currently tracks.
type SensorHandler struct {
	Coordinator *coordinator.Coordinator
}

// NewSensorHandler creates a new SensorHandler
func NewSensorHandler(coord *coordinator.Coordinator) *SensorHandler {
	return &SensorHandler{
		Coordinator: coord,
	}
}

// HandleListSensors returns every tracked sensor with its active transport.
// A device with an open short-range session that is also long-range active is
// reported as wifi, matching which transport its readings flow over.
func (h *SensorHandler) HandleListSensors(w http.ResponseWriter, r *http.Request) {
	poller := h.Coordinator.Poller()
	sensors := h.Coordinator.Sessions().ConnectedSensors()

	seen := make(map[string]struct{}, len(sensors))
	for i := range sensors {
		seen[sensors[i].Device] = struct{}{}
		if poller.IsActive(sensors[i].Device) {
			sensors[i].Connection = domain.ConnectionWiFi
		} else {
			sensors[i].Connection = domain.ConnectionBLE
		}
	}

	// WiFi-only devices have no session record but are still reachable.
	for _, device := range poller.ActiveDevices() {
		if _, ok := seen[device]; ok {
			continue
		}
		sensors = append(sensors, domain.SensorInfo{
			Device:     device,
			Connected:  true,
			Connection: domain.ConnectionWiFi,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sensors": sensors,
	})
}
