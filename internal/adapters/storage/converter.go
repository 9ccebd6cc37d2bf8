package storage

import (
	"github.com/lcalzada-xor/centerville/internal/core/domain"
)

func toReadingModel(r domain.Reading) ReadingModel {
	return ReadingModel{
		Device:        r.Device,
		Timestamp:     r.TS,
		ReceivedAt:    r.ReceivedAt,
		Version:       r.Version,
		PM25:          r.PM25,
		PM25Norm:      r.PM25Norm,
		PMOk:          r.PMOk,
		GasRaw:        r.GasRaw,
		GasNorm:       r.GasNorm,
		GasOk:         r.GasOk,
		Temp:          r.Temp,
		Humidity:      r.Humidity,
		DHTOk:         r.DHTOk,
		WiFiConnected: r.WiFiConnected,
		Hostname:      r.Hostname,
	}
}

func toReading(m ReadingModel) domain.Reading {
	return domain.Reading{
		Device:        m.Device,
		TS:            m.Timestamp,
		ReceivedAt:    m.ReceivedAt,
		Version:       m.Version,
		PM25:          m.PM25,
		PM25Norm:      m.PM25Norm,
		PMOk:          m.PMOk,
		GasRaw:        m.GasRaw,
		GasNorm:       m.GasNorm,
		GasOk:         m.GasOk,
		Temp:          m.Temp,
		Humidity:      m.Humidity,
		DHTOk:         m.DHTOk,
		WiFiConnected: m.WiFiConnected,
		Hostname:      m.Hostname,
	}
}

func toDeviceConfigModel(c domain.DeviceConfig) DeviceConfigModel {
	return DeviceConfigModel{
		Device:       c.Device,
		WiFiSSID:     c.WiFiSSID,
		WiFiPassword: c.WiFiPassword,
		Hostname:     c.Hostname,
		WiFiEnabled:  c.WiFiEnabled,
		DisplayColor: c.DisplayColor,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toDeviceConfig(m DeviceConfigModel) domain.DeviceConfig {
	return domain.DeviceConfig{
		Device:       m.Device,
		WiFiSSID:     m.WiFiSSID,
		WiFiPassword: m.WiFiPassword,
		Hostname:     m.Hostname,
		WiFiEnabled:  m.WiFiEnabled,
		DisplayColor: m.DisplayColor,
		UpdatedAt:    m.UpdatedAt,
	}
}
