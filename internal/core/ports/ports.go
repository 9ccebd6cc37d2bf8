package ports

import (
	"github.com/lcalzada-xor/centerville/internal/core/domain"
)

// ReadingSink receives readings that a transport manager accepted for
// publication. Implementations must not block for long; transport loops call
// it inline.
type ReadingSink func(reading domain.Reading)

// Arbiter decides whether the long-range transport currently preempts the
// short-range feed for a device. Implementations must be safe for concurrent
// reads while the poller mutates the underlying state.
type Arbiter interface {
	IsActive(deviceID string) bool
}

// Broadcaster fans accepted events out to all live subscribers.
type Broadcaster interface {
	BroadcastReading(reading domain.Reading)
	BroadcastSensorStatus(device, address, name string, connected bool)
	ClientCount() int
}
