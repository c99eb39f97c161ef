package websocket

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alertcam/internal/logger"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()

	hub := NewHubService(logger.NewConsole(&bytes.Buffer{}, "info"))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func waitForClients(t *testing.T, hub *HubService, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, server := startHub(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	if !hub.Broadcast([]byte(`{"camera":"cam0"}`)) {
		t.Fatal("Expected broadcast to be queued")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if string(msg) != `{"camera":"cam0"}` {
		t.Errorf("Unexpected message %s", msg)
	}

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHubService(logger.NewConsole(&bytes.Buffer{}, "info"))

	if hub.Broadcast([]byte("frame")) {
		t.Error("Broadcast without clients should be dropped")
	}
}
