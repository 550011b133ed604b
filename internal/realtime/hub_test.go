package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishReachesSubscriber(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "checkout_request_id": "C1"}))
	require.Eventually(t, func() bool { return hub.Subscribers("C1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("C2", map[string]string{"status": "Failed"})
	hub.Publish("C1", map[string]string{"status": "Completed"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type              string            `json:"type"`
		CheckoutRequestID string            `json:"checkout_request_id"`
		Data              map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "payment_update", msg.Type)
	assert.Equal(t, "C1", msg.CheckoutRequestID, "updates for other checkouts are not delivered")
	assert.Equal(t, "Completed", msg.Data["status"])
}

func TestHub_UnsubscribeAndDisconnect(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "checkout_request_id": "C1"}))
	require.Eventually(t, func() bool { return hub.Subscribers("C1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "unsubscribe", "checkout_request_id": "C1"}))
	require.Eventually(t, func() bool { return hub.Subscribers("C1") == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "checkout_request_id": "C9"}))
	require.Eventually(t, func() bool { return hub.Subscribers("C9") == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("C9") == 0 }, time.Second, 10*time.Millisecond)
}
