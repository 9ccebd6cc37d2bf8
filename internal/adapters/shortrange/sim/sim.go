// Package sim provides a simulated short-range transport for running the
// coordinator without radio hardware. Simulated sensors advertise, accept
// connections, emit synthetic readings and hold a small config document.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/lcalzada-xor/centerville/internal/core/ports"
)

const notifyInterval = 2 * time.Second

// simSensor is the fixed state of one simulated device.
type simSensor struct {
	name    string
	address string
	device  string
}

var defaultSensors = []simSensor{
	{name: "Centerville Sensor (SIM01)", address: "AA:BB:CC:DD:EE:01", device: "SIM01"},
	{name: "Centerville Sensor (SIM02)", address: "AA:BB:CC:DD:EE:02", device: "SIM02"},
	{name: "centerville-sensor-sim03", address: "AA:BB:CC:DD:EE:03", device: "AA:BB:CC:DD:EE:03"},
}

// Transport implements ports.Transport with in-process simulated sensors.
type Transport struct {
	mu sync.Mutex

	// config documents survive reconnects, like real device flash
	configs map[string][]byte
}

func NewTransport() *Transport {
	return &Transport{
		configs: make(map[string][]byte),
	}
}

// Scan returns the fixed set of simulated advertisements.
func (t *Transport) Scan(ctx context.Context, timeout time.Duration) ([]ports.Advertisement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	advs := make([]ports.Advertisement, 0, len(defaultSensors))
	for _, s := range defaultSensors {
		advs = append(advs, ports.Advertisement{Name: s.name, Address: s.address})
	}
	return advs, nil
}

// Dial connects to a simulated sensor.
func (t *Transport) Dial(ctx context.Context, adv ports.Advertisement) (ports.DeviceSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sensor *simSensor
	for i := range defaultSensors {
		if defaultSensors[i].address == adv.Address {
			sensor = &defaultSensors[i]
			break
		}
	}
	if sensor == nil {
		return nil, fmt.Errorf("no simulated sensor at %s", adv.Address)
	}

	s := &session{
		transport: t,
		sensor:    *sensor,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		done:      make(chan struct{}),
	}
	return s, nil
}

func (t *Transport) loadConfig(address string) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if doc, ok := t.configs[address]; ok {
		out := make([]byte, len(doc))
		copy(out, doc)
		return out
	}
	return []byte(`{}`)
}

func (t *Transport) storeConfig(address string, doc []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := make([]byte, len(doc))
	copy(stored, doc)
	t.configs[address] = stored
}

// session is one live simulated connection. Notifications run on a session
// goroutine started by Subscribe, mirroring driver-owned callback threads.
type session struct {
	transport *Transport
	sensor    simSensor
	rand      *rand.Rand

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	notifying bool
}

func (s *session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *session) Subscribe(handler func(payload []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed: %s", s.sensor.address)
	}
	if s.notifying {
		return fmt.Errorf("already subscribed: %s", s.sensor.address)
	}
	s.notifying = true

	go func() {
		ticker := time.NewTicker(notifyInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				handler(s.syntheticReading())
			}
		}
	}()
	return nil
}

// syntheticReading fabricates a plausible air quality payload.
func (s *session) syntheticReading() []byte {
	r := s.rand
	payload := map[string]interface{}{
		"device":         s.sensor.device,
		"version":        "sim-1.0",
		"ts":             time.Now().Unix(),
		"pm2_5":          5 + r.Intn(40),
		"pm2_5_norm":     r.Float64(),
		"pm_ok":          true,
		"gas_raw":        200 + r.Intn(600),
		"gas_norm":       r.Float64(),
		"gas_ok":         true,
		"temp":           18.0 + r.Float64()*10,
		"humidity":       35.0 + r.Float64()*30,
		"dht_ok":         true,
		"wifi_connected": false,
		"hostname":       "",
	}
	data, _ := json.Marshal(payload)
	return data
}

func (s *session) ReadConfig(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Connected() {
		return nil, fmt.Errorf("session closed: %s", s.sensor.address)
	}
	return s.transport.loadConfig(s.sensor.address), nil
}

func (s *session) WriteConfig(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Connected() {
		return fmt.Errorf("session closed: %s", s.sensor.address)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("config payload is not valid JSON")
	}
	s.transport.storeConfig(s.sensor.address, payload)
	return nil
}

func (s *session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

var _ ports.Transport = (*Transport)(nil)
