package shortrange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/telemetry"
)

// Protocol identifiers shared with the sensor firmware.
const (
	ServiceUUID    = "4fafc201-1fb5-459e-8fcc-c5c9c331914b"
	DataCharUUID   = "beb5483e-36e1-4688-b7f5-ea07361b26a8"
	ConfigCharUUID = "beb5483e-36e1-4688-b7f5-ea07361b26a9"
)

// NamePrefixes are the advertisement names accepted during discovery.
var NamePrefixes = []string{"Centerville Sensor", "centerville-sensor"}

const (
	defaultScanInterval = 10 * time.Second
	scanTimeout         = 5 * time.Second
	livenessInterval    = time.Second
	notifyBuffer        = 16
)

// ErrNotConnected is returned by config operations when no session exists for
// the device.
var ErrNotConnected = errors.New("sensor not connected")

var sessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "centerville_shortrange_sessions_open",
	Help: "The number of currently open short-range sensor sessions",
})

type managerState int

const (
	managerNotStarted managerState = iota
	managerRunning
	managerStopped
)

// Hooks are the callbacks the coordinator receives from the session manager.
type Hooks struct {
	OnReading    ports.ReadingSink
	OnConnect    func(device, address, name string)
	OnDisconnect func(device, address, name string)
}

// sessionRecord is the live state of one connected sensor, keyed by transport
// address. There is at most one record per address; reconnection replaces the
// record, never duplicates it.
type sessionRecord struct {
	device      string
	name        string
	address     string
	session     ports.DeviceSession
	connected   bool
	lastReading *domain.Reading
}

// SessionManager discovers sensors on the short-range radio and runs one
// session goroutine per connected device. Readings are decoded, cached on the
// session record and forwarded unless arbitration says the device is
// long-range-active.
type SessionManager struct {
	transport    ports.Transport
	arbiter      ports.Arbiter
	hooks        Hooks
	scanInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	pending  map[string]struct{}
	state    managerState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionManager creates a session manager over the given transport.
func NewSessionManager(transport ports.Transport, arbiter ports.Arbiter, hooks Hooks, scanInterval time.Duration) *SessionManager {
	if scanInterval <= 0 {
		scanInterval = defaultScanInterval
	}
	return &SessionManager{
		transport:    transport,
		arbiter:      arbiter,
		hooks:        hooks,
		scanInterval: scanInterval,
		sessions:     make(map[string]*sessionRecord),
		pending:      make(map[string]struct{}),
	}
}

// Start launches the discovery loop.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != managerNotStarted {
		m.mu.Unlock()
		return errors.New("session manager already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = managerRunning
	m.mu.Unlock()

	m.wg.Add(1)
	go m.discoveryLoop(ctx)
	slog.Info("Short-range session manager started", "interval", m.scanInterval)
	return nil
}

// Stop cancels discovery and every session task, waits for their best-effort
// disconnects and clears session state.
func (m *SessionManager) Stop() {
	m.mu.Lock()
	if m.state != managerRunning {
		m.mu.Unlock()
		return
	}
	m.state = managerStopped
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.sessions = make(map[string]*sessionRecord)
	m.pending = make(map[string]struct{})
	m.mu.Unlock()
	slog.Info("Short-range session manager stopped")
}

func (m *SessionManager) discoveryLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		if err := m.discover(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Sensor discovery failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *SessionManager) discover(ctx context.Context) error {
	slog.Debug("Scanning for sensors")
	advs, err := m.transport.Scan(ctx, scanTimeout)
	if err != nil {
		return err
	}

	for _, adv := range advs {
		if !acceptedName(adv.Name) {
			continue
		}
		if !m.claim(adv.Address) {
			continue
		}
		slog.Info("Found sensor", "name", adv.Name, "address", adv.Address)
		m.wg.Add(1)
		go m.runSession(ctx, adv)
	}
	return nil
}

func acceptedName(name string) bool {
	for _, prefix := range NamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// claim reserves a transport address before the connect attempt so that
// overlapping discovery cycles can never start two sessions for one device.
func (m *SessionManager) claim(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != managerRunning {
		return false
	}
	if _, ok := m.sessions[address]; ok {
		return false
	}
	if _, ok := m.pending[address]; ok {
		return false
	}
	m.pending[address] = struct{}{}
	return true
}

func (m *SessionManager) release(address string) {
	m.mu.Lock()
	delete(m.pending, address)
	m.mu.Unlock()
}

// runSession owns the whole lifecycle of one sensor connection. On any exit
// it disconnects best-effort, fires the disconnect hook and removes the
// session record; the device is reattempted on the next discovery cycle.
func (m *SessionManager) runSession(ctx context.Context, adv ports.Advertisement) {
	defer m.wg.Done()
	defer m.release(adv.Address)

	name := adv.Name
	if name == "" {
		name = adv.Address
	}
	device := domain.DeviceIDFromName(name, adv.Address)

	session, err := m.transport.Dial(ctx, adv)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Sensor connect failed", "name", name, "error", err)
		}
		return
	}

	rec := &sessionRecord{
		device:    device,
		name:      name,
		address:   adv.Address,
		session:   session,
		connected: true,
	}
	m.mu.Lock()
	m.sessions[adv.Address] = rec
	m.mu.Unlock()
	sessionsOpen.Inc()
	slog.Info("Sensor connected", "device", device, "name", name)

	if m.hooks.OnConnect != nil {
		m.hooks.OnConnect(device, adv.Address, name)
	}

	defer func() {
		if session.Connected() {
			if err := session.Disconnect(); err != nil {
				slog.Debug("Sensor disconnect", "device", device, "error", err)
			}
		}
		m.mu.Lock()
		delete(m.sessions, adv.Address)
		m.mu.Unlock()
		sessionsOpen.Dec()
		slog.Info("Sensor disconnected", "device", device, "name", name)
		if m.hooks.OnDisconnect != nil {
			m.hooks.OnDisconnect(device, adv.Address, name)
		}
	}()

	// The transport may deliver notifications on a driver-owned goroutine.
	// They are copied into a buffered channel and consumed below, so
	// per-device processing stays single-threaded and in arrival order.
	notifyCh := make(chan []byte, notifyBuffer)
	err = session.Subscribe(func(payload []byte) {
		data := make([]byte, len(payload))
		copy(data, payload)
		select {
		case notifyCh <- data:
		default:
			telemetry.ReadingsDropped.WithLabelValues("shortrange", "backpressure").Inc()
		}
	})
	if err != nil {
		slog.Error("Notification subscribe failed", "device", device, "error", err)
		return
	}

	liveness := time.NewTicker(livenessInterval)
	defer liveness.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-notifyCh:
			m.handleNotification(adv.Address, payload)
		case <-liveness.C:
			if !session.Connected() {
				return
			}
		}
	}
}

// handleNotification decodes one notification payload. The session record's
// last reading is updated even when arbitration suppresses forwarding, so the
// latest-known state stays queryable. Malformed payloads are dropped and
// never terminate the session.
func (m *SessionManager) handleNotification(address string, payload []byte) {
	reading, err := domain.DecodeReading(payload, time.Now().UTC())
	if err != nil {
		telemetry.ReadingsDropped.WithLabelValues("shortrange", "decode").Inc()
		slog.Warn("Discarding malformed sensor payload", "address", address, "error", err)
		return
	}

	m.mu.Lock()
	if rec, ok := m.sessions[address]; ok {
		rec.lastReading = &reading
	}
	m.mu.Unlock()

	if m.arbiter != nil && m.arbiter.IsActive(reading.Device) {
		telemetry.ReadingsSuppressed.Inc()
		slog.Debug("Suppressing short-range reading, long-range active", "device", reading.Device)
		return
	}

	telemetry.ReadingsReceived.WithLabelValues("shortrange").Inc()
	if m.hooks.OnReading != nil {
		m.hooks.OnReading(reading)
	}
}

// ConnectedSensors returns a snapshot of every open session.
func (m *SessionManager) ConnectedSensors() []domain.SensorInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]domain.SensorInfo, 0, len(m.sessions))
	for _, rec := range m.sessions {
		info := domain.SensorInfo{
			Device:    rec.device,
			Address:   rec.address,
			Name:      rec.name,
			Connected: rec.connected,
		}
		if rec.lastReading != nil {
			r := *rec.lastReading
			info.LastReading = &r
		}
		infos = append(infos, info)
	}
	return infos
}

// SessionCount returns the number of open sessions.
func (m *SessionManager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) findSession(device string) ports.DeviceSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.sessions {
		if rec.device == device && rec.session.Connected() {
			return rec.session
		}
	}
	return nil
}

// WriteConfig pushes a configuration document to a connected sensor. It fails
// with ErrNotConnected when no session exists for the device; callers decide
// whether to retry.
func (m *SessionManager) WriteConfig(ctx context.Context, device string, payload []byte) error {
	session := m.findSession(device)
	if session == nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, device)
	}
	if err := session.WriteConfig(ctx, payload); err != nil {
		return fmt.Errorf("writing config to %s: %w", device, err)
	}
	slog.Info("Config pushed to sensor", "device", device)
	return nil
}

// ReadConfig reads the configuration document from a connected sensor.
func (m *SessionManager) ReadConfig(ctx context.Context, device string) ([]byte, error) {
	session := m.findSession(device)
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, device)
	}
	data, err := session.ReadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", device, err)
	}
	return data, nil
}
