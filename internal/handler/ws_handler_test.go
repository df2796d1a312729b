package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-canvas/internal/config"
	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/internal/hub"
	"github.com/weiawesome/live-canvas/internal/registry"
	"github.com/weiawesome/live-canvas/internal/service"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

type fakeRegistry struct {
	registry.Registry
	peers []registry.Instance
}

func (f *fakeRegistry) Peers(ctx context.Context) ([]registry.Instance, error) {
	return f.peers, nil
}

func newTestServer(t *testing.T, wsCfg config.WebSocketConfig, reg registry.Registry) (*httptest.Server, service.RelayService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	svc := service.NewRelayService(h, nil, "default", "test-instance")

	r := gin.New()
	NewWSHandler(svc, reg, wsCfg).RegisterRoutes(r)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-h.Done()
	})
	return srv, svc
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) domain.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := domain.DecodeFrame(data)
	require.NoError(t, err)
	return f
}

// expectSilence fails if conn receives a frame within wait. A timed-out read
// breaks a gorilla connection, so it must be the last read on conn.
func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %s", data)
}

func TestRelayFansOutToAllParticipants(t *testing.T) {
	srv, svc := newTestServer(t, testWSConfig(), nil)

	a := dial(t, srv, "/ws")
	b := dial(t, srv, "/ws")
	c := dial(t, srv, "/canvas/ws")
	require.Eventually(t, func() bool { return svc.SessionCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	draw := `{"type":"draw","prevX":10,"prevY":10,"x":20,"y":20,"color":"#ff0000"}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(draw)))

	want := domain.Segment{PrevX: 10, PrevY: 10, X: 20, Y: 20, Color: "#ff0000"}
	for _, conn := range []*websocket.Conn{a, b, c} {
		f := readFrame(t, conn)
		assert.Equal(t, domain.MsgTypeReceive, f.Type)
		assert.Equal(t, want, f.Segment)
	}

	require.NoError(t, b.WriteMessage(websocket.TextMessage, domain.EncodeType(domain.MsgTypeClear)))
	for _, conn := range []*websocket.Conn{a, b, c} {
		assert.Equal(t, domain.MsgTypeClear, readFrame(t, conn).Type)
	}

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return svc.SessionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(draw)))
	for _, conn := range []*websocket.Conn{a, b} {
		assert.Equal(t, domain.MsgTypeReceive, readFrame(t, conn).Type)
	}
}

func TestMalformedEventsAreDropped(t *testing.T) {
	srv, svc := newTestServer(t, testWSConfig(), nil)

	a := dial(t, srv, "/ws")
	b := dial(t, srv, "/ws")
	require.Eventually(t, func() bool { return svc.SessionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	for _, raw := range []string{
		`not json`,
		`{"type":"draw","prevX":1,"prevY":1,"x":2}`,
		`{"type":"draw","prevX":1,"prevY":1,"x":2,"y":2,"color":"nope"}`,
		`{"type":"receive","prevX":1,"prevY":1,"x":2,"y":2,"color":"red"}`,
		`{"type":"explode"}`,
	} {
		require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(raw)))
	}

	// The session survives and the first frame b sees is the valid draw.
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"draw","prevX":7,"prevY":1,"x":2,"y":2,"color":"red"}`)))
	f := readFrame(t, b)
	assert.Equal(t, domain.MsgTypeReceive, f.Type)
	assert.Equal(t, 7.0, f.Segment.PrevX)
	assert.Equal(t, 2, svc.SessionCount())
}

func TestLargeFrameRelayedWithoutSizeLimit(t *testing.T) {
	cfg := testWSConfig()
	cfg.MaxMessageSize = 0
	srv, svc := newTestServer(t, cfg, nil)

	a := dial(t, srv, "/ws")
	b := dial(t, srv, "/ws")
	require.Eventually(t, func() bool { return svc.SessionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	pad := strings.Repeat("x", 64*1024)
	draw := `{"type":"draw","prevX":3,"prevY":1,"x":2,"y":2,"color":"red","note":"` + pad + `"}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(draw)))

	f := readFrame(t, b)
	assert.Equal(t, domain.MsgTypeReceive, f.Type)
	assert.Equal(t, 3.0, f.Segment.PrevX)
	assert.Equal(t, 2, svc.SessionCount())
}

func TestPingPong(t *testing.T) {
	srv, _ := newTestServer(t, testWSConfig(), nil)
	a := dial(t, srv, "/ws")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, domain.EncodeType(domain.MsgTypePing)))
	assert.Equal(t, domain.MsgTypePong, readFrame(t, a).Type)
}

func TestRateLimitDropsExcessEvents(t *testing.T) {
	cfg := testWSConfig()
	cfg.EventsPerSecond = 0.001
	cfg.Burst = 1
	srv, _ := newTestServer(t, cfg, nil)
	a := dial(t, srv, "/ws")

	draw := []byte(`{"type":"draw","prevX":1,"prevY":1,"x":2,"y":2,"color":"red"}`)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, draw))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, draw))

	assert.Equal(t, domain.MsgTypeReceive, readFrame(t, a).Type)
	expectSilence(t, a, 200*time.Millisecond)
}

func TestHealth(t *testing.T) {
	srv, svc := newTestServer(t, testWSConfig(), nil)
	dial(t, srv, "/ws")
	require.Eventually(t, func() bool { return svc.SessionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1.0, body["sessions"])
	assert.Equal(t, "test-instance", body["instance"])
}

func TestPeers(t *testing.T) {
	srv, _ := newTestServer(t, testWSConfig(), nil)
	resp, err := http.Get(srv.URL + "/peers")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	reg := &fakeRegistry{peers: []registry.Instance{{ID: "a", Address: "10.0.0.1:4000"}}}
	srv, _ = newTestServer(t, testWSConfig(), reg)
	resp, err = http.Get(srv.URL + "/peers")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Success bool                `json:"success"`
		Data    []registry.Instance `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, reg.peers, body.Data)
}
