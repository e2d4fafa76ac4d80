package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(func(*http.Request) bool { return true }, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitSubscribers espera o hub registrar n assinantes para o jogo.
func waitSubscribers(t *testing.T, hub *Hub, gameID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		got := len(hub.subs[gameID])
		hub.mu.RUnlock()
		if got == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d subscribers for %s", n, gameID)
}

func subscribe(t *testing.T, conn *websocket.Conn, gameID string) {
	t.Helper()
	if err := conn.WriteJSON(clientMsg{Type: "subscribe", GameID: gameID}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

func TestHubRoutesByGame(t *testing.T) {
	hub, srv := newTestHub(t)

	connA := dialHub(t, srv)
	connB := dialHub(t, srv)
	subscribe(t, connA, "g1")
	subscribe(t, connB, "g2")
	waitSubscribers(t, hub, "g1", 1)
	waitSubscribers(t, hub, "g2", 1)

	hub.Broadcast(Event{Topic: TopicOdds, Type: TypeOddsUpdate, GameID: "g1", Payload: map[string]int{"home_price": -110}})

	_ = connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type    string          `json:"type"`
		GameID  string          `json:"game_id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := connA.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != TypeOddsUpdate || got.GameID != "g1" {
		t.Fatalf("frame = %+v", got)
	}

	// o assinante de g2 não recebe nada
	_ = connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := connB.ReadJSON(&got); err == nil {
		t.Fatalf("g2 subscriber got a g1 event: %+v", got)
	}
}

func TestHubPingPong(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dialHub(t, srv)

	if err := conn.WriteJSON(clientMsg{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]string
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["type"] != "pong" {
		t.Fatalf("frame = %v", got)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dialHub(t, srv)

	subscribe(t, conn, "g1")
	waitSubscribers(t, hub, "g1", 1)

	if err := conn.WriteJSON(clientMsg{Type: "unsubscribe", GameID: "g1"}); err != nil {
		t.Fatal(err)
	}
	waitSubscribers(t, hub, "g1", 0)

	hub.Broadcast(Event{Topic: TopicOdds, Type: TypeOddsUpdate, GameID: "g1"})
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var got map[string]any
	if err := conn.ReadJSON(&got); err == nil {
		t.Fatalf("unsubscribed client got event: %v", got)
	}
}

func TestHubRemovesClientOnDisconnect(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dialHub(t, srv)

	subscribe(t, conn, "g1")
	waitSubscribers(t, hub, "g1", 1)

	conn.Close()
	waitSubscribers(t, hub, "g1", 0)

	// broadcast para jogo sem assinantes é inofensivo
	hub.Broadcast(Event{Topic: TopicOdds, Type: TypeOddsUpdate, GameID: "g1"})
}
