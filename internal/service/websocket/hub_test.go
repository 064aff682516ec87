package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"yorae/internal/logger"

	"github.com/gorilla/websocket"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupHub(t *testing.T) (*HubService, *websocket.Conn) {
	t.Helper()

	hub := NewHubService(logger.NewWithWriter(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Viewer was never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, client
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid message %q: %v", data, err)
	}
	return msg
}

// ========================================
// Hub Tests
// ========================================

func TestHub_PublishSession(t *testing.T) {
	hub, client := setupHub(t)

	hub.Publish(TypeSession, map[string]string{"stage": "CLEANING"})

	msg := readMessage(t, client)
	if msg.Type != TypeSession {
		t.Errorf("Expected session message, got %q", msg.Type)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok || payload["stage"] != "CLEANING" {
		t.Errorf("Unexpected payload %+v", msg.Payload)
	}
}

func TestHub_BroadcastFrame(t *testing.T) {
	hub, client := setupHub(t)

	frame := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}
	hub.BroadcastFrame("phone", frame)

	msg := readMessage(t, client)
	if msg.Type != TypeFrame || msg.Camera != "phone" {
		t.Errorf("Unexpected frame message %+v", msg)
	}
	if msg.Image != base64.StdEncoding.EncodeToString(frame) {
		t.Errorf("Unexpected image payload %q", msg.Image)
	}
}

func TestHub_FrameSkippedWithoutViewers(t *testing.T) {
	hub := NewHubService(logger.NewWithWriter(io.Discard))

	hub.BroadcastFrame("phone", []byte{0xFF, 0xD8})

	if len(hub.broadcast) != 0 {
		t.Error("Frames must not be queued when nobody is watching")
	}
}

func TestHub_BroadcastDoesNotBlock(t *testing.T) {
	hub := NewHubService(logger.NewWithWriter(io.Discard))

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Publish(TypeSession, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
}

func TestHub_RegisterAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHubService(logger.NewWithWriter(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	returned := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		hub.Unregister(conn)
		close(returned)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	defer client.Close()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Register/Unregister blocked on a stopped hub")
	}
	if count := hub.GetClientCount(); count != 0 {
		t.Errorf("Expected no viewers on a stopped hub, got %d", count)
	}
}
