package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-launcher/internal/clients"
)

func startStream(t *testing.T) (*LaunchStream, *httptest.Server, context.CancelFunc) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	stream := NewLaunchStream(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go stream.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream.ServeWS(w, r, r.URL.Query().Get("run"))
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return stream, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello StreamMessage
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "connection_established", hello.Type)
	return conn
}

func TestLaunchStream_FiltersByRun(t *testing.T) {
	stream, srv, _ := startStream(t)
	all := dial(t, srv, "/")
	one := dial(t, srv, "/?run=r2")
	require.Eventually(t, func() bool { return stream.ActiveConnections() == 2 }, time.Second, 10*time.Millisecond)

	stream.Broadcast(&clients.LaunchEvent{Type: clients.EventRunStarted, RunID: "r1"}, "launch.r1.run_started")
	stream.Broadcast(&clients.LaunchEvent{Type: clients.EventStepCompleted, RunID: "r2", Step: "deploy_token"}, "launch.r2.step_completed.deploy_token")

	var msg StreamMessage
	all.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, all.ReadJSON(&msg))
	assert.Equal(t, "r1", msg.Event.RunID)
	require.NoError(t, all.ReadJSON(&msg))
	assert.Equal(t, "r2", msg.Event.RunID)

	one.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, one.ReadJSON(&msg))
	assert.Equal(t, "launch_event", msg.Type)
	assert.Equal(t, "launch.r2.step_completed.deploy_token", msg.Subject)
	assert.Equal(t, "deploy_token", msg.Event.Step)
}

func TestLaunchStream_ClientDisconnect(t *testing.T) {
	stream, srv, _ := startStream(t)
	conn := dial(t, srv, "/")
	require.Eventually(t, func() bool { return stream.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return stream.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLaunchStream_ShutdownClosesSubscribers(t *testing.T) {
	stream, srv, cancel := startStream(t)
	conn := dial(t, srv, "/")
	require.Eventually(t, func() bool { return stream.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, stream.ActiveConnections())

	assert.NotPanics(t, func() {
		stream.Broadcast(&clients.LaunchEvent{RunID: "late"}, "launch.late.run_started")
	})
}
