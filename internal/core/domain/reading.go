package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Reading is a single measurement report from a sensor, regardless of which
// transport it arrived on. The sub-sensor groups (particulate, gas,
// temperature/humidity) are optional: a unit that is not fitted with a group
// reports none of its fields and the pointers stay nil. A reading is never
// mutated after it is decoded.
type Reading struct {
	Device  string `json:"device"`
	Version string `json:"version"`
	TS      int64  `json:"ts"`

	// Particulate matter (PMS-style sensor)
	PM25     *int     `json:"pm2_5,omitempty"`
	PM25Norm *float64 `json:"pm2_5_norm,omitempty"`
	PMOk     *bool    `json:"pm_ok,omitempty"`

	// Gas (MQ-style sensor)
	GasRaw  *int     `json:"gas_raw,omitempty"`
	GasNorm *float64 `json:"gas_norm,omitempty"`
	GasOk   *bool    `json:"gas_ok,omitempty"`

	// Temperature / humidity (DHT-style sensor)
	Temp     *float64 `json:"temp,omitempty"`
	Humidity *float64 `json:"humidity,omitempty"`
	DHTOk    *bool    `json:"dht_ok,omitempty"`

	// Connectivity as reported by the device itself
	WiFiConnected bool   `json:"wifi_connected"`
	Hostname      string `json:"hostname"`

	// ReceivedAt is stamped by the coordinator when the payload is decoded.
	ReceivedAt time.Time `json:"received_at"`
}

// ErrNoDevice is returned for payloads that parse as JSON but carry no device id.
var ErrNoDevice = errors.New("reading has no device id")

// DecodeReading parses a raw device payload (both transports use the same wire
// shape) and stamps the receipt timestamp.
func DecodeReading(data []byte, receivedAt time.Time) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return Reading{}, err
	}
	if r.Device == "" {
		return Reading{}, ErrNoDevice
	}
	if r.Version == "" {
		r.Version = "unknown"
	}
	r.ReceivedAt = receivedAt
	return r, nil
}
