package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
)

// ReadingFilter narrows a readings query. Zero values leave a dimension
// unfiltered; Limit defaults to the adapter's cap when zero.
type ReadingFilter struct {
	Device string
	Limit  int
	Offset int
	Since  time.Time
}

// Storage is the persistence gateway consumed by the core. Readings are
// append-only: nothing in the core ever mutates or deletes a stored reading.
type Storage interface {
	StoreReading(ctx context.Context, reading domain.Reading) error
	StoreReadingsBatch(ctx context.Context, readings []domain.Reading) error
	GetReadings(ctx context.Context, filter ReadingFilter) ([]domain.Reading, error)
	GetDevices(ctx context.Context) ([]string, error)
	GetReadingCount(ctx context.Context, device string) (int64, error)

	GetDeviceConfig(ctx context.Context, device string) (*domain.DeviceConfig, error)
	SaveDeviceConfig(ctx context.Context, cfg domain.DeviceConfig) error
	ListDeviceConfigs(ctx context.Context) ([]domain.DeviceConfig, error)

	Close() error
}
