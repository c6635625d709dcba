package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pietro2356/gr-selcall/pkg/logger"
)

func TestWebSocketHub_New(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log)

	if hub == nil {
		t.Fatal("NewWebSocketHub returned nil")
	}
}

func TestWebSocketHub_Run(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	// Start hub in goroutine
	go hub.Run(ctx)

	// Wait for hub to start
	time.Sleep(50 * time.Millisecond)

	// Cancel context to stop hub
	cancel()

	// Wait a bit for hub to stop
	time.Sleep(50 * time.Millisecond)
}

func TestWebSocketHub_Broadcast(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Start hub
	go hub.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Broadcast should not panic even with no clients
	hub.Broadcast(Event{
		Type: "test",
		Data: map[string]interface{}{"message": "hello"},
	})

	// Give time for broadcast to process
	time.Sleep(50 * time.Millisecond)
}

// dialTestHub starts a hub behind an httptest server and dials it.
func dialTestHub(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	// Wait until the hub has registered the client
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client was not registered in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestWebSocketHub_ClientReceivesBroadcast(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log)
	conn := dialTestHub(t, hub)

	hub.BroadcastDecode(map[string]interface{}{
		"code":    "12345",
		"matched": true,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var event struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("Failed to unmarshal broadcast: %v", err)
	}
	if event.Type != "decode" {
		t.Errorf("Expected event type decode, got %q", event.Type)
	}
	if event.Data["code"] != "12345" {
		t.Errorf("Expected code 12345 in payload, got %v", event.Data["code"])
	}
}

func TestWebSocketHub_ClientCount(t *testing.T) {
	log := logger.New(logger.Config{Level: "info"})
	hub := NewWebSocketHub(log)
	conn := dialTestHub(t, hub)

	if got := hub.GetClientCount(); got != 1 {
		t.Errorf("Expected 1 client, got %d", got)
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client was not unregistered in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEvent_Marshal(t *testing.T) {
	event := Event{
		Type:      "decode",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"code":     "12345",
			"protocol": "ZVEI-1",
		},
	}

	data, err := event.Marshal()
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	if len(data) == 0 {
		t.Error("Marshaled data is empty")
	}

	// Should contain the type
	if !strings.Contains(string(data), "decode") {
		t.Error("Marshaled data doesn't contain event type")
	}
}
