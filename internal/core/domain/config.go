package domain

import (
	"encoding/json"
	"time"
)

// DeviceConfig is the per-device configuration. The authoritative copy lives
// in storage; the short-range session manager only transports snapshots of it
// to and from the physical device.
type DeviceConfig struct {
	Device       string    `json:"device"`
	WiFiSSID     string    `json:"wifi_ssid"`
	WiFiPassword string    `json:"wifi_password"`
	Hostname     string    `json:"hostname"`
	WiFiEnabled  bool      `json:"wifi_enabled"`
	DisplayColor string    `json:"background_color"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PollEligible reports whether the device should be included in long-range
// poll cycles.
func (c DeviceConfig) PollEligible() bool {
	return c.WiFiEnabled && c.Hostname != ""
}

// PushPayload is the subset of the configuration written to the device's
// config characteristic. The display color is a coordinator-side setting and
// is not pushed.
func (c DeviceConfig) PushPayload() ([]byte, error) {
	return json.Marshal(struct {
		WiFiSSID     string `json:"wifi_ssid"`
		WiFiPassword string `json:"wifi_password"`
		Hostname     string `json:"hostname"`
		WiFiEnabled  bool   `json:"wifi_enabled"`
	}{
		WiFiSSID:     c.WiFiSSID,
		WiFiPassword: c.WiFiPassword,
		Hostname:     c.Hostname,
		WiFiEnabled:  c.WiFiEnabled,
	})
}
