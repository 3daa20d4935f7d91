package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/lab-scheduler/internal/notify"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubDeliversBySubscription(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	anatomy := dial(t, srv, "?channel=anatomy")
	everything := dial(t, srv, "")
	waitForClients(t, hub, 2)

	if err := hub.Send(context.Background(), notify.Message{ChannelID: "chemistry", Text: "skip"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := hub.Send(context.Background(), notify.Message{ChannelID: "anatomy", Text: "Aula aprovada"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	_ = anatomy.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got notify.Message
	if err := anatomy.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.ChannelID != "anatomy" || got.Text != "Aula aprovada" {
		t.Fatalf("anatomy subscriber got %+v", got)
	}

	_ = everything.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first map[string]any
	if _, raw, err := everything.ReadMessage(); err != nil {
		t.Fatalf("read failed: %v", err)
	} else if err := json.Unmarshal(raw, &first); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if first["channelId"] != "chemistry" {
		t.Fatalf("wildcard subscriber should get every message in order, got %v", first)
	}
}
