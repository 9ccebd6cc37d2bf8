package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// WebSocket endpoint
	r.HandleFunc("/ws", s.Hub.HandleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.StatusHandler.HandleStatus).Methods(http.MethodGet)
	api.HandleFunc("/sensors", s.SensorHandler.HandleListSensors).Methods(http.MethodGet)
	api.HandleFunc("/readings", s.ReadingHandler.HandleGetReadings).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.ReadingHandler.HandleGetDevices).Methods(http.MethodGet)

	// Device configuration
	api.HandleFunc("/config/{device}", s.ConfigHandler.HandleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config/{device}", s.ConfigHandler.HandleSaveConfig).Methods(http.MethodPut)
	api.HandleFunc("/config/{device}/push", s.ConfigHandler.HandlePushConfig).Methods(http.MethodPost)

	// One-shot diagnostic poll, bypasses the poll cycle
	api.HandleFunc("/sensors/{hostname}/poll", s.PollHandler.HandlePollOnce).Methods(http.MethodPost)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
