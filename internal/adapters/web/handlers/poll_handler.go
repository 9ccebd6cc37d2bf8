package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/centerville/internal/core/services/longrange"
)

// PollHandler triggers one-shot diagnostic polls.
type PollHandler struct {
	Poller *longrange.Poller
}

// NewPollHandler creates a new PollHandler
func NewPollHandler(poller *longrange.Poller) *PollHandler {
	return &PollHandler{
		Poller: poller,
	}
}

// HandlePollOnce fetches a reading from one sensor immediately. The result
// reflects only this attempt; it never changes the device's reachability.
func (h *PollHandler) HandlePollOnce(w http.ResponseWriter, r *http.Request) {
	hostname := mux.Vars(r)["hostname"]

	reading, err := h.Poller.PollOnce(r.Context(), hostname)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		slog.Debug("Diagnostic poll failed", "hostname", hostname, "error", err)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hostname": hostname,
			"ok":       false,
			"error":    err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"hostname": hostname,
		"ok":       true,
		"reading":  reading,
	})
}
