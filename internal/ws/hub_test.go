package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/passrelay/internal/telemetry"
)

func TestNilHubIsSafe(t *testing.T) {
	var h *Hub
	h.BroadcastJSON(map[string]any{"type": "log"})
	h.Log("test", "info", "ignored")
	if h.Clients() != 0 || h.Dropped() != 0 {
		t.Error("nil hub should report zero clients and drops")
	}
}

func TestHubDeliversLogEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", h.Clients())
	}

	h.Log("tracker", "info", "pass imminent")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got telemetry.LogLine
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != telemetry.EventLog || got.Component != "tracker" || got.Message != "pass imminent" {
		t.Errorf("unexpected event %+v", got)
	}
}
