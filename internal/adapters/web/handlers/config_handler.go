package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/core/services/shortrange"
)

// ConfigHandler manages per-device configuration.
type ConfigHandler struct {
	Storage  ports.Storage
	Sessions *shortrange.SessionManager
}

// NewConfigHandler creates a new ConfigHandler
func NewConfigHandler(storage ports.Storage, sessions *shortrange.SessionManager) *ConfigHandler {
	return &ConfigHandler{
		Storage:  storage,
		Sessions: sessions,
	}
}

type configRequest struct {
	WiFiSSID     string `json:"wifi_ssid"`
	WiFiPassword string `json:"wifi_password"`
	Hostname     string `json:"hostname"`
	WiFiEnabled  bool   `json:"wifi_enabled"`
	DisplayColor string `json:"background_color"`
}

// configView is the stored config as served to clients. The password never
// leaves the coordinator; wifi_configured says whether one is stored.
type configView struct {
	Device         string `json:"device"`
	WiFiSSID       string `json:"wifi_ssid"`
	Hostname       string `json:"hostname"`
	WiFiEnabled    bool   `json:"wifi_enabled"`
	DisplayColor   string `json:"background_color"`
	WiFiConfigured bool   `json:"wifi_configured"`
}

func toConfigView(cfg domain.DeviceConfig) configView {
	return configView{
		Device:         cfg.Device,
		WiFiSSID:       cfg.WiFiSSID,
		Hostname:       cfg.Hostname,
		WiFiEnabled:    cfg.WiFiEnabled,
		DisplayColor:   cfg.DisplayColor,
		WiFiConfigured: cfg.WiFiPassword != "",
	}
}

// HandleGetConfig returns the stored configuration for a device.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]

	cfg, err := h.Storage.GetDeviceConfig(r.Context(), device)
	if err != nil {
		slog.Error("Failed to load device config", "device", device, "error", err)
		http.Error(w, "Failed to load config", http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		http.Error(w, "No config for device", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toConfigView(*cfg))
}

// HandleSaveConfig stores a device configuration and pushes it to the sensor
// when a short-range session is open. The save always wins; push failure is
// reported, not fatal, since the sensor picks the config up on reconnect.
func (h *ConfigHandler) HandleSaveConfig(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]

	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg := domain.DeviceConfig{
		Device:       device,
		WiFiSSID:     req.WiFiSSID,
		WiFiPassword: req.WiFiPassword,
		Hostname:     req.Hostname,
		WiFiEnabled:  req.WiFiEnabled,
		DisplayColor: req.DisplayColor,
	}
	if err := h.Storage.SaveDeviceConfig(r.Context(), cfg); err != nil {
		slog.Error("Failed to save device config", "device", device, "error", err)
		http.Error(w, "Failed to save config", http.StatusInternalServerError)
		return
	}

	pushed := h.push(r, device, cfg) == nil

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":           "saved",
		"device":           device,
		"pushed_to_sensor": pushed,
	})
}

// HandlePushConfig pushes the stored configuration to a connected sensor.
func (h *ConfigHandler) HandlePushConfig(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]

	cfg, err := h.Storage.GetDeviceConfig(r.Context(), device)
	if err != nil {
		slog.Error("Failed to load device config", "device", device, "error", err)
		http.Error(w, "Failed to load config", http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		http.Error(w, "No config for device", http.StatusNotFound)
		return
	}

	if err := h.push(r, device, *cfg); err != nil {
		if errors.Is(err, shortrange.ErrNotConnected) {
			http.Error(w, "Sensor not connected", http.StatusBadRequest)
			return
		}
		http.Error(w, "Config push failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "pushed",
		"device": device,
	})
}

func (h *ConfigHandler) push(r *http.Request, device string, cfg domain.DeviceConfig) error {
	payload, err := cfg.PushPayload()
	if err != nil {
		return err
	}
	if err := h.Sessions.WriteConfig(r.Context(), device, payload); err != nil {
		slog.Debug("Config push skipped", "device", device, "error", err)
		return err
	}
	return nil
}
