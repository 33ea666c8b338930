package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startManager(t *testing.T) (*Manager, *httptest.Server, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	manager := NewManager(utils.NewNopLogger())
	go manager.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(manager.HandleConnections))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return manager, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestManager_BroadcastsProgressToAllClients(t *testing.T) {
	t.Parallel()

	manager, server, _ := startManager(t)
	first := dial(t, server)
	second := dial(t, server)
	require.Eventually(t, func() bool { return manager.ClientCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	event := models.ProgressEvent{
		RunID:  "run-1",
		Phase:  "load_facts",
		Status: "completed",
		Rows:   42,
		Time:   time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
	manager.PublishProgress(event)

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageProgress, msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, event.RunID, msg.Event.RunID)
		assert.Equal(t, event.Phase, msg.Event.Phase)
		assert.Equal(t, event.Status, msg.Event.Status)
		assert.Equal(t, 42, msg.Event.Rows)
		assert.True(t, event.Time.Equal(msg.Event.Time))
	}
}

func TestManager_AnswersPing(t *testing.T) {
	t.Parallel()

	_, server, _ := startManager(t)
	conn := dial(t, server)

	require.NoError(t, conn.WriteJSON(Message{Type: MessagePing}))
	assert.Equal(t, MessagePong, readMessage(t, conn).Type)
}

func TestManager_UnregistersClosedClient(t *testing.T) {
	t.Parallel()

	manager, server, _ := startManager(t)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return manager.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)

	// Рассылка без клиентов не блокирует
	manager.PublishProgress(models.ProgressEvent{Phase: "extract"})
}

func TestManager_StopClosesClients(t *testing.T) {
	t.Parallel()

	manager, server, cancel := startManager(t)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return manager.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)

	// После остановки публикация не блокирует
	manager.PublishProgress(models.ProgressEvent{Phase: "run"})
}
