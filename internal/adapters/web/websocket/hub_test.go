package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/centerville/internal/core/domain"
)

func dialTestClient(t *testing.T, server *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gws.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReadingReachesAllClients(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	c1 := dialTestClient(t, server)
	c2 := dialTestClient(t, server)
	waitForClients(t, hub, 2)

	pm := 9
	hub.BroadcastReading(domain.Reading{Device: "AQ-01", TS: 42, PM25: &pm})

	for _, conn := range []*gws.Conn{c1, c2} {
		msg := readMessage(t, conn)
		assert.Equal(t, "reading", msg.Type)

		data, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "AQ-01", data["device"])
		assert.Equal(t, float64(9), data["pm2_5"])
	}
}

func TestBroadcastSensorStatus(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialTestClient(t, server)
	waitForClients(t, hub, 1)

	hub.BroadcastSensorStatus("AQ-01", "AA:01", "Centerville Sensor (AQ-01)", true)

	msg := readMessage(t, conn)
	assert.Equal(t, "sensor_status", msg.Type)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "AQ-01", data["device"])
	assert.Equal(t, true, data["connected"])
}

func TestClosedClientIsEvicted(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	stays := dialTestClient(t, server)
	leaves := dialTestClient(t, server)
	waitForClients(t, hub, 2)

	leaves.Close()

	// Broadcasting keeps working for the surviving client; the dead one is
	// evicted by either the read drain or a failed write.
	hub.BroadcastReading(domain.Reading{Device: "AQ-01", TS: 1})
	msg := readMessage(t, stays)
	assert.Equal(t, "reading", msg.Type)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientCountStartsAtZero(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.ClientCount())
}
