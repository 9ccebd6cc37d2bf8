package longrange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
)

// configStorage implements ports.Storage with a fixed device config set.
type configStorage struct {
	configs []domain.DeviceConfig
}

func (s *configStorage) StoreReading(ctx context.Context, reading domain.Reading) error { return nil }
func (s *configStorage) StoreReadingsBatch(ctx context.Context, readings []domain.Reading) error {
	return nil
}
func (s *configStorage) GetReadings(ctx context.Context, filter ports.ReadingFilter) ([]domain.Reading, error) {
	return nil, nil
}
func (s *configStorage) GetDevices(ctx context.Context) ([]string, error) { return nil, nil }
func (s *configStorage) GetReadingCount(ctx context.Context, device string) (int64, error) {
	return 0, nil
}
func (s *configStorage) GetDeviceConfig(ctx context.Context, device string) (*domain.DeviceConfig, error) {
	return nil, nil
}
func (s *configStorage) SaveDeviceConfig(ctx context.Context, cfg domain.DeviceConfig) error {
	return nil
}
func (s *configStorage) ListDeviceConfigs(ctx context.Context) ([]domain.DeviceConfig, error) {
	return s.configs, nil
}
func (s *configStorage) Close() error { return nil }

type readingCollector struct {
	mu       sync.Mutex
	readings []domain.Reading
}

func (c *readingCollector) sink(reading domain.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readings = append(c.readings, reading)
}

func (c *readingCollector) all() []domain.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Reading, len(c.readings))
	copy(out, c.readings)
	return out
}

func eligibleConfig(device, hostname string) domain.DeviceConfig {
	return domain.DeviceConfig{Device: device, Hostname: hostname, WiFiEnabled: true}
}

func newTestPoller(t *testing.T, storage ports.Storage, sink ports.ReadingSink, url string) *Poller {
	t.Helper()
	p := NewPoller(storage, sink, time.Hour)
	p.urlFor = func(hostname string) string { return url }
	return p
}

func TestPollCycleActivatesDevice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"device":"AQ-12","ts":100,"pm2_5":8,"wifi_connected":true,"hostname":"aq-12"}`))
	}))
	defer server.Close()

	collector := &readingCollector{}
	storage := &configStorage{configs: []domain.DeviceConfig{eligibleConfig("AQ-12", "aq-12")}}
	p := newTestPoller(t, storage, collector.sink, server.URL)

	p.pollCycle(context.Background())

	readings := collector.all()
	require.Len(t, readings, 1)
	assert.Equal(t, "AQ-12", readings[0].Device)
	assert.True(t, p.IsActive("AQ-12"))
	assert.ElementsMatch(t, []string{"AQ-12"}, p.ActiveDevices())
}

func TestPollCycleSkipsIneligibleDevices(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"device":"AQ-12","ts":100}`))
	}))
	defer server.Close()

	storage := &configStorage{configs: []domain.DeviceConfig{
		{Device: "AQ-01", Hostname: "aq-01", WiFiEnabled: false},
		{Device: "AQ-02", Hostname: "", WiFiEnabled: true},
	}}
	collector := &readingCollector{}
	p := newTestPoller(t, storage, collector.sink, server.URL)

	p.pollCycle(context.Background())

	assert.Equal(t, int32(0), requests.Load())
	assert.Empty(t, collector.all())
}

func TestPollCycleFailureHysteresis(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"device":"AQ-12","ts":100}`))
	}))
	defer server.Close()

	collector := &readingCollector{}
	storage := &configStorage{configs: []domain.DeviceConfig{eligibleConfig("AQ-12", "aq-12")}}
	p := newTestPoller(t, storage, collector.sink, server.URL)

	p.pollCycle(context.Background())
	require.True(t, p.IsActive("AQ-12"))

	failing.Store(true)

	// Two failed cycles: still active, readings keep flowing short-range.
	p.pollCycle(context.Background())
	p.pollCycle(context.Background())
	assert.True(t, p.IsActive("AQ-12"))

	// Third consecutive failure crosses the threshold.
	p.pollCycle(context.Background())
	assert.False(t, p.IsActive("AQ-12"))

	// Recovery is immediate on the next good poll.
	failing.Store(false)
	p.pollCycle(context.Background())
	assert.True(t, p.IsActive("AQ-12"))
}

func TestPollCycleFailureDoesNotForward(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	collector := &readingCollector{}
	storage := &configStorage{configs: []domain.DeviceConfig{eligibleConfig("AQ-12", "aq-12")}}
	p := newTestPoller(t, storage, collector.sink, server.URL)

	p.pollCycle(context.Background())

	assert.Empty(t, collector.all())
	assert.False(t, p.IsActive("AQ-12"))
}

func TestPollOnceDoesNotTouchReachability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"device":"AQ-12","ts":100}`))
	}))
	defer server.Close()

	collector := &readingCollector{}
	storage := &configStorage{}
	p := newTestPoller(t, storage, collector.sink, server.URL)

	reading, err := p.PollOnce(context.Background(), "aq-12")
	require.NoError(t, err)
	assert.Equal(t, "AQ-12", reading.Device)

	// Diagnostics never promote a device to long-range-active.
	assert.False(t, p.IsActive("AQ-12"))
	assert.Empty(t, collector.all(), "one-shot polls bypass the sink")
}

func TestPollOnceReportsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := newTestPoller(t, &configStorage{}, func(domain.Reading) {}, server.URL)

	_, err := p.PollOnce(context.Background(), "aq-12")
	require.Error(t, err)
	assert.Equal(t, "status", failureReason(err))
}

func TestFailureReasonDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ts":100}`))
	}))
	defer server.Close()

	p := newTestPoller(t, &configStorage{}, func(domain.Reading) {}, server.URL)

	_, err := p.PollOnce(context.Background(), "aq-12")
	require.Error(t, err)
	assert.Equal(t, "decode", failureReason(err))
}

func TestPollerStartStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"device":"AQ-12","ts":100}`))
	}))
	defer server.Close()

	storage := &configStorage{configs: []domain.DeviceConfig{eligibleConfig("AQ-12", "aq-12")}}
	collector := &readingCollector{}
	p := newTestPoller(t, storage, collector.sink, server.URL)

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())
	assert.Error(t, p.Start(context.Background()), "double start must fail")

	// The first cycle runs immediately on start.
	require.Eventually(t, func() bool {
		return len(collector.all()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	p.Stop()
	assert.False(t, p.Running())
	p.Stop() // idempotent
}
