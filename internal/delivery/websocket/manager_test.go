package websocket_test

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
	"go.uber.org/zap"

	ws "storybook-server/internal/delivery/websocket"
)

func dialTestServer(t *testing.T, manager *ws.Manager, origin string) *gws.Conn {
	t.Helper()

	srv := httptest.NewServer(manager.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, _, err := gws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gws.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestBroadcastReachesSubscribedClient(t *testing.T) {
	manager := ws.NewManager(nil, zap.NewNop())
	manager.Start()

	conn := dialTestServer(t, manager, "")

	// Регистрация клиента асинхронна, даем циклу менеджера времени
	time.Sleep(50 * time.Millisecond)

	manager.Broadcast("task_update", "tasks", map[string]interface{}{
		"task_id":  "t-1",
		"status":   "running",
		"progress": 40,
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "task_update", msg.Type)
	assert.Equal(t, "tasks", msg.Topic)

	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "t-1", payload["task_id"])
	assert.Equal(t, float64(40), payload["progress"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	manager := ws.NewManager(nil, zap.NewNop())
	manager.Start()

	conn := dialTestServer(t, manager, "")
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "unsubscribe", "topic": "tasks"}))
	time.Sleep(50 * time.Millisecond)

	manager.Broadcast("task_update", "tasks", map[string]string{"task_id": "t-2"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "после отписки сообщения темы не доставляются")
}

func TestOriginCheck(t *testing.T) {
	manager := ws.NewManager([]string{"http://allowed.example"}, zap.NewNop())
	manager.Start()

	srv := httptest.NewServer(manager.Handler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := gws.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://allowed.example")
	conn, _, err := gws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	conn.Close()
}
