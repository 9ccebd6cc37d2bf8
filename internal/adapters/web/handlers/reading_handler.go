package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lcalzada-xor/centerville/internal/core/ports"
)

const (
	maxReadingLimit = 1000
	maxHistoryHours = 168
)

// ReadingHandler serves stored readings.
type ReadingHandler struct {
	Storage ports.Storage
}

// NewReadingHandler creates a new ReadingHandler
func NewReadingHandler(storage ports.Storage) *ReadingHandler {
	return &ReadingHandler{
		Storage: storage,
	}
}

// HandleGetReadings returns stored readings, newest first. Supported query
// parameters: device, limit (1..1000, default 100), offset, hours (1..168).
func (h *ReadingHandler) HandleGetReadings(w http.ResponseWriter, r *http.Request) {
	filter := ports.ReadingFilter{
		Device: r.URL.Query().Get("device"),
		Limit:  100,
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxReadingLimit {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	if v := r.URL.Query().Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours < 1 || hours > maxHistoryHours {
			http.Error(w, "hours must be between 1 and 168", http.StatusBadRequest)
			return
		}
		filter.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}

	readings, err := h.Storage.GetReadings(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to query readings", "error", err)
		http.Error(w, "Failed to query readings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"readings": readings,
		"count":    len(readings),
	})
}

// HandleGetDevices returns the known device ids with their reading counts.
func (h *ReadingHandler) HandleGetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Storage.GetDevices(r.Context())
	if err != nil {
		slog.Error("Failed to query devices", "error", err)
		http.Error(w, "Failed to query devices", http.StatusInternalServerError)
		return
	}

	type deviceEntry struct {
		Device       string `json:"device"`
		ReadingCount int64  `json:"reading_count"`
	}

	var total int64
	entries := make([]deviceEntry, 0, len(devices))
	for _, device := range devices {
		count, err := h.Storage.GetReadingCount(r.Context(), device)
		if err != nil {
			slog.Error("Failed to count readings", "device", device, "error", err)
			http.Error(w, "Failed to query devices", http.StatusInternalServerError)
			return
		}
		total += count
		entries = append(entries, deviceEntry{Device: device, ReadingCount: count})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"devices":        entries,
		"total_readings": total,
	})
}
