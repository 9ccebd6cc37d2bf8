package longrange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/telemetry"
)

const (
	defaultPollInterval = 10 * time.Second
	requestTimeout      = 5 * time.Second
	failureThreshold    = 3
	readingsPath        = "/api/readings"
	maxBodySize         = 1 << 20
)

var (
	pollSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "centerville_poll_success_total",
		Help: "The total number of successful long-range polls",
	})
	pollFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "centerville_poll_failures_total",
		Help: "The total number of failed long-range polls",
	}, []string{"reason"})
	wifiActiveDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "centerville_wifi_active_devices",
		Help: "The number of devices currently long-range-active",
	})
)

type pollerState int

const (
	pollerNotStarted pollerState = iota
	pollerRunning
	pollerStopped
)

// Poller periodically polls every WiFi-enabled device over HTTP and maintains
// the per-device reachability state that arbitration reads. Long-range
// readings are forwarded unconditionally; the poller never suppresses its own
// data.
type Poller struct {
	storage  ports.Storage
	sink     ports.ReadingSink
	reach    *ReachabilityTable
	client   *http.Client
	interval time.Duration

	// urlFor builds the poll URL for a hostname; replaced in tests.
	urlFor func(hostname string) string

	mu     sync.Mutex
	state  pollerState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller that reads the eligible device set from storage
// and forwards readings to sink.
func NewPoller(storage ports.Storage, sink ports.ReadingSink, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		storage: storage,
		sink:    sink,
		reach:   NewReachabilityTable(failureThreshold),
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		interval: interval,
		urlFor:   deviceURL,
	}
}

func deviceURL(hostname string) string {
	return "http://" + hostname + ".local" + readingsPath
}

// Start launches the poll cycle loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != pollerNotStarted {
		p.mu.Unlock()
		return errors.New("poller already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = pollerRunning
	p.mu.Unlock()

	go p.pollLoop(ctx)
	slog.Info("WiFi poller started", "interval", p.interval)
	return nil
}

// Stop cancels the poll loop, waits for the in-flight cycle to settle and
// releases pooled connections.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != pollerRunning {
		p.mu.Unlock()
		return
	}
	p.state = pollerStopped
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.client.CloseIdleConnections()
	slog.Info("WiFi poller stopped")
}

// Running reports whether the poll loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == pollerRunning
}

// IsActive implements ports.Arbiter.
func (p *Poller) IsActive(device string) bool {
	return p.reach.IsActive(device)
}

// ActiveDevices returns the ids of all currently long-range-active devices.
func (p *Poller) ActiveDevices() []string {
	return p.reach.Active()
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollCycle polls every eligible device concurrently and waits for all
// requests to settle. A slow device never blocks the others, but the next
// cycle only starts once this one has fully finished.
func (p *Poller) pollCycle(ctx context.Context) {
	configs, err := p.storage.ListDeviceConfigs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("WiFi poll cycle: listing device configs", "error", err)
		}
		return
	}

	var wg sync.WaitGroup
	for _, cfg := range configs {
		if !cfg.PollEligible() {
			continue
		}
		wg.Add(1)
		go func(cfg domain.DeviceConfig) {
			defer wg.Done()
			p.pollDevice(ctx, cfg)
		}(cfg)
	}
	wg.Wait()
}

func (p *Poller) pollDevice(ctx context.Context, cfg domain.DeviceConfig) {
	reading, err := p.fetch(ctx, cfg.Hostname)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		pollFailures.WithLabelValues(failureReason(err)).Inc()
		if p.reach.MarkFailure(cfg.Device) {
			wifiActiveDevices.Dec()
			slog.Info("WiFi connection lost, falling back to short-range", "device", cfg.Device)
		}
		slog.Debug("WiFi poll failed", "hostname", cfg.Hostname, "error", err)
		return
	}

	pollSuccesses.Inc()
	if p.reach.MarkSuccess(reading.Device, reading.ReceivedAt) {
		wifiActiveDevices.Inc()
		slog.Info("WiFi connection established, preempting short-range", "device", reading.Device)
	}

	telemetry.ReadingsReceived.WithLabelValues("wifi").Inc()
	p.sink(reading)
	slog.Debug("WiFi reading", "hostname", cfg.Hostname, "device", reading.Device)
}

// PollOnce performs a one-shot poll of a hostname, independent of the cycle.
// It never touches the reachability table, so diagnostics cannot flip
// arbitration state.
func (p *Poller) PollOnce(ctx context.Context, hostname string) (*domain.Reading, error) {
	reading, err := p.fetch(ctx, hostname)
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (p *Poller) fetch(ctx context.Context, hostname string) (domain.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.urlFor(hostname), nil)
	if err != nil {
		return domain.Reading{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Reading{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Reading{}, statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.Reading{}, err
	}

	return domain.DecodeReading(body, time.Now().UTC())
}

// statusError is a non-200 response from a device.
type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", int(e))
}

func failureReason(err error) string {
	var netErr net.Error
	var stErr statusError
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &stErr):
		return "status"
	case errors.Is(err, domain.ErrNoDevice):
		return "decode"
	default:
		return "connect"
	}
}
