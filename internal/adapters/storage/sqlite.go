package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
)

const defaultReadingLimit = 100

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// ReadingModel is the GORM model for stored readings. The table is
// append-only; rows are never updated or deleted.
type ReadingModel struct {
	ID         uint   `gorm:"primaryKey"`
	Device     string `gorm:"index"`
	Timestamp  int64
	ReceivedAt time.Time `gorm:"index"`
	Version    string

	PM25     *int
	PM25Norm *float64
	PMOk     *bool
	GasRaw   *int
	GasNorm  *float64
	GasOk    *bool
	Temp     *float64
	Humidity *float64
	DHTOk    *bool

	WiFiConnected bool
	Hostname      string
}

// DeviceConfigModel is the GORM model for per-device configuration.
type DeviceConfigModel struct {
	Device       string `gorm:"primaryKey"`
	WiFiSSID     string
	WiFiPassword string
	Hostname     string
	WiFiEnabled  bool
	DisplayColor string
	UpdatedAt    time.Time
}

// NewSQLiteAdapter initializes the database and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&ReadingModel{}, &DeviceConfigModel{}); err != nil {
		return nil, err
	}

	return &SQLiteAdapter{db: db}, nil
}

// StoreReading appends a single reading.
func (a *SQLiteAdapter) StoreReading(ctx context.Context, reading domain.Reading) error {
	model := toReadingModel(reading)
	return a.db.WithContext(ctx).Create(&model).Error
}

// StoreReadingsBatch appends multiple readings in a single transaction.
func (a *SQLiteAdapter) StoreReadingsBatch(ctx context.Context, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	models := make([]ReadingModel, len(readings))
	for i, r := range readings {
		models[i] = toReadingModel(r)
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(models, 100).Error
	})
}

// GetReadings retrieves readings matching the filter, newest first.
func (a *SQLiteAdapter) GetReadings(ctx context.Context, filter ports.ReadingFilter) ([]domain.Reading, error) {
	query := a.db.WithContext(ctx).Model(&ReadingModel{})

	if filter.Device != "" {
		query = query.Where("device = ?", filter.Device)
	}
	if !filter.Since.IsZero() {
		query = query.Where("received_at >= ?", filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReadingLimit
	}

	var models []ReadingModel
	if err := query.Order("received_at DESC").Limit(limit).Offset(filter.Offset).Find(&models).Error; err != nil {
		return nil, err
	}

	readings := make([]domain.Reading, len(models))
	for i, m := range models {
		readings[i] = toReading(m)
	}
	return readings, nil
}

// GetDevices returns the distinct device ids with stored readings.
func (a *SQLiteAdapter) GetDevices(ctx context.Context) ([]string, error) {
	var devices []string
	err := a.db.WithContext(ctx).
		Model(&ReadingModel{}).
		Distinct("device").
		Order("device").
		Pluck("device", &devices).Error
	return devices, err
}

// GetReadingCount counts stored readings, optionally for one device.
func (a *SQLiteAdapter) GetReadingCount(ctx context.Context, device string) (int64, error) {
	query := a.db.WithContext(ctx).Model(&ReadingModel{})
	if device != "" {
		query = query.Where("device = ?", device)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

// GetDeviceConfig retrieves the stored configuration for a device, or nil
// when none exists.
func (a *SQLiteAdapter) GetDeviceConfig(ctx context.Context, device string) (*domain.DeviceConfig, error) {
	var model DeviceConfigModel
	if err := a.db.WithContext(ctx).First(&model, "device = ?", device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cfg := toDeviceConfig(model)
	return &cfg, nil
}

// SaveDeviceConfig upserts a device configuration and stamps UpdatedAt.
func (a *SQLiteAdapter) SaveDeviceConfig(ctx context.Context, cfg domain.DeviceConfig) error {
	model := toDeviceConfigModel(cfg)
	model.UpdatedAt = time.Now().UTC()
	return a.db.WithContext(ctx).Save(&model).Error
}

// ListDeviceConfigs returns all stored device configurations.
func (a *SQLiteAdapter) ListDeviceConfigs(ctx context.Context) ([]domain.DeviceConfig, error) {
	var models []DeviceConfigModel
	if err := a.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	configs := make([]domain.DeviceConfig, len(models))
	for i, m := range models {
		configs[i] = toDeviceConfig(m)
	}
	return configs, nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var _ ports.Storage = (*SQLiteAdapter)(nil)
