package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/core/services/longrange"
	"github.com/lcalzada-xor/centerville/internal/core/services/persistence"
	"github.com/lcalzada-xor/centerville/internal/core/services/shortrange"
)

const writerBuffer = 1024

// Coordinator wires the two transport managers, the broadcaster and
// persistence together and owns their lifecycles. Every accepted reading,
// from either transport, flows through HandleReading exactly once.
type Coordinator struct {
	sessions  *shortrange.SessionManager
	poller    *longrange.Poller
	broadcast ports.Broadcaster
	writer    *persistence.ReadingWriter

	// writerCancel stops the writer even when the parent context outlives us
	writerCancel context.CancelFunc
}

// New builds the coordinator graph: the poller doubles as the arbitration
// authority consulted by the session manager.
func New(storage ports.Storage, broadcast ports.Broadcaster, transport ports.Transport, scanInterval, pollInterval time.Duration) *Coordinator {
	c := &Coordinator{
		broadcast: broadcast,
		writer:    persistence.NewReadingWriter(storage, writerBuffer),
	}
	c.poller = longrange.NewPoller(storage, c.HandleReading, pollInterval)
	c.sessions = shortrange.NewSessionManager(transport, c.poller, shortrange.Hooks{
		OnReading:    c.HandleReading,
		OnConnect:    c.handleSessionConnect,
		OnDisconnect: c.handleSessionDisconnect,
	}, scanInterval)
	return c
}

// Start launches the reading writer, the session manager and the poller.
func (c *Coordinator) Start(ctx context.Context) error {
	writerCtx, cancel := context.WithCancel(ctx)
	c.writerCancel = cancel
	c.writer.Start(writerCtx)
	if err := c.sessions.Start(ctx); err != nil {
		cancel()
		c.writer.Wait()
		return err
	}
	if err := c.poller.Start(ctx); err != nil {
		c.sessions.Stop()
		cancel()
		c.writer.Wait()
		return err
	}
	slog.Info("Coordinator started")
	return nil
}

// Stop shuts the transports down and waits for the writer to flush.
func (c *Coordinator) Stop() {
	c.poller.Stop()
	c.sessions.Stop()
	if c.writerCancel != nil {
		c.writerCancel()
	}
	c.writer.Wait()
	slog.Info("Coordinator stopped")
}

// HandleReading routes an accepted reading to every consumer.
func (c *Coordinator) HandleReading(reading domain.Reading) {
	c.broadcast.BroadcastReading(reading)
	c.writer.Enqueue(reading)
}

func (c *Coordinator) handleSessionConnect(device, address, name string) {
	slog.Info("Sensor session up", "device", device, "name", name)
	c.broadcast.BroadcastSensorStatus(device, address, name, true)
}

func (c *Coordinator) handleSessionDisconnect(device, address, name string) {
	slog.Info("Sensor session down", "device", device, "name", name)
	c.broadcast.BroadcastSensorStatus(device, address, name, false)
}

// Sessions exposes the short-range session manager to the API layer.
func (c *Coordinator) Sessions() *shortrange.SessionManager {
	return c.sessions
}

// Poller exposes the long-range poller to the API layer.
func (c *Coordinator) Poller() *longrange.Poller {
	return c.poller
}
