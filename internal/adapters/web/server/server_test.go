package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/centerville/internal/adapters/storage"
	"github.com/lcalzada-xor/centerville/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/centerville/internal/core/domain"
	"github.com/lcalzada-xor/centerville/internal/core/services/coordinator"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.SQLiteAdapter) {
	t.Helper()

	store, err := storage.NewSQLiteAdapter(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := websocket.NewHub()
	coord := coordinator.New(store, hub, nil, time.Minute, time.Minute)
	srv := NewServer(":0", coord, hub, store)

	ts := httptest.NewServer(SetupRoutes(srv))
	t.Cleanup(ts.Close)
	return ts, store
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]interface{}
	resp := getJSON(t, ts.URL+"/api/status", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "centerville-coordinator", body["service"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(0), body["websocket_clients"])
	assert.Equal(t, float64(0), body["connected_sensors"])
	assert.Equal(t, false, body["wifi_polling"])
}

func TestSensorsEndpointEmpty(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Sensors []domain.SensorInfo `json:"sensors"`
	}
	resp := getJSON(t, ts.URL+"/api/sensors", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body.Sensors)
}

func TestReadingsEndpoint(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pm := 9
	for i := 0; i < 3; i++ {
		require.NoError(t, store.StoreReading(ctx, domain.Reading{
			Device:     "AQ-01",
			TS:         now.Unix(),
			PM25:       &pm,
			ReceivedAt: now.Add(-time.Duration(i) * time.Minute),
		}))
	}

	var body struct {
		Readings []domain.Reading `json:"readings"`
		Count    int              `json:"count"`
	}
	resp := getJSON(t, ts.URL+"/api/readings?device=AQ-01&limit=2", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Readings, 2)
	assert.Equal(t, "AQ-01", body.Readings[0].Device)
}

func TestReadingsEndpointValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, query := range []string{"?limit=0", "?limit=5000", "?limit=abc", "?offset=-1", "?hours=0", "?hours=200"} {
		resp := getJSON(t, ts.URL+"/api/readings"+query, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %s should be rejected", query)
	}
}

func TestDevicesEndpoint(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.StoreReading(ctx, domain.Reading{Device: "AQ-01", ReceivedAt: now}))
	require.NoError(t, store.StoreReading(ctx, domain.Reading{Device: "AQ-01", ReceivedAt: now}))
	require.NoError(t, store.StoreReading(ctx, domain.Reading{Device: "AQ-02", ReceivedAt: now}))

	var body struct {
		Devices []struct {
			Device       string `json:"device"`
			ReadingCount int64  `json:"reading_count"`
		} `json:"devices"`
		TotalReadings int64 `json:"total_readings"`
	}
	resp := getJSON(t, ts.URL+"/api/devices", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Devices, 2)
	assert.Equal(t, "AQ-01", body.Devices[0].Device)
	assert.Equal(t, int64(2), body.Devices[0].ReadingCount)
	assert.Equal(t, int64(3), body.TotalReadings)
}

func TestConfigSaveAndGet(t *testing.T) {
	ts, _ := newTestServer(t)

	payload := `{"wifi_ssid":"home","wifi_password":"secret","hostname":"aq-01","wifi_enabled":true,"background_color":"#112233"}`
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/config/AQ-01", bytes.NewBufferString(payload))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.Equal(t, "saved", saved["status"])
	// no short-range session is open, so the push cannot land
	assert.Equal(t, false, saved["pushed_to_sensor"])

	var got map[string]interface{}
	getResp := getJSON(t, ts.URL+"/api/config/AQ-01", &got)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, "home", got["wifi_ssid"])
	assert.Equal(t, true, got["wifi_configured"])
	assert.NotContains(t, got, "wifi_password", "stored password must never be served")
}

func TestConfigGetMissing(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := getJSON(t, ts.URL+"/api/config/AQ-99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfigPush(t *testing.T) {
	ts, store := newTestServer(t)

	// no stored config
	resp, err := http.Post(ts.URL+"/api/config/AQ-01/push", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// stored config but sensor not connected
	require.NoError(t, store.SaveDeviceConfig(context.Background(), domain.DeviceConfig{
		Device: "AQ-01", Hostname: "aq-01", WiFiEnabled: true,
	}))
	resp, err = http.Post(ts.URL+"/api/config/AQ-01/push", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/readings", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := getJSON(t, ts.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
