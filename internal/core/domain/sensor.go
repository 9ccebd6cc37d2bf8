package domain

import "strings"

// Connection types reported by the sensors API.
const (
	ConnectionWiFi = "wifi"
	ConnectionBLE  = "ble"
)

// SensorInfo is a snapshot of one short-range session.
type SensorInfo struct {
	Device      string   `json:"device"`
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Connected   bool     `json:"connected"`
	Connection  string   `json:"connection,omitempty"`
	LastReading *Reading `json:"last_reading,omitempty"`
}

// DeviceIDFromName extracts the stable device id from an advertised display
// name like "Centerville Sensor (AQ-12)". The id is the token after the last
// opening parenthesis with trailing parentheses stripped; when the name
// carries no such token the transport address is used as the id.
func DeviceIDFromName(name, address string) string {
	if strings.Contains(name, "(") && strings.Contains(name, ")") {
		token := name[strings.LastIndex(name, "(")+1:]
		token = strings.TrimRight(token, ")")
		if token != "" {
			return token
		}
	}
	return address
}
