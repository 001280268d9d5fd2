package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sitebook/gateway/internal/auth"
	"github.com/sitebook/gateway/internal/notify"
	"go.uber.org/zap"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, room string) *Client {
	return &Client{
		hub:  hub,
		room: room,
		send: make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
	return Event{}
}

func expectNothing(t *testing.T, c *Client, who string) {
	t.Helper()
	select {
	case <-c.send:
		t.Fatalf("%s should not have received a message", who)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, Room("7", "3"))

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms["7:3"] == nil {
		t.Fatal("site room not created")
	}
	if !hub.rooms["7:3"][client] {
		t.Fatal("client not registered in site room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, Room("7", "3"))

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if hub.Subscribers("7:3") != 0 {
		t.Fatal("site room not cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestBroadcastToSingleRoom(t *testing.T) {
	hub := startHub(t)
	client1 := mockClient(hub, Room("7", "3"))
	client2 := mockClient(hub, Room("7", "4"))

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	payload := json.RawMessage(`{"message":"Material added"}`)
	if err := hub.BroadcastToRoom(context.Background(), "7:3", Event{Type: "notification", Payload: payload}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	ev := receive(t, client1)
	if ev.Type != "notification" {
		t.Errorf("expected type 'notification', got '%s'", ev.Type)
	}
	if string(ev.Payload) != string(payload) {
		t.Errorf("expected payload '%s', got '%s'", payload, ev.Payload)
	}
	expectNothing(t, client2, "client2")
}

func TestNotify_ReachesSiteAndAllSitesRooms(t *testing.T) {
	hub := startHub(t)
	site := mockClient(hub, Room("7", "3"))
	all := mockClient(hub, Room("7", "0"))
	otherSite := mockClient(hub, Room("7", "4"))
	otherBusiness := mockClient(hub, Room("8", "0"))

	for _, c := range []*Client{site, all, otherSite, otherBusiness} {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	n := notify.New(notify.KindSuccess, "materials", "create", "Material added")
	n.SiteID = "3"
	n.BusinessID = "7"
	if err := hub.Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	for name, c := range map[string]*Client{"site": site, "all": all} {
		ev := receive(t, c)
		var got notify.Notification
		if err := json.Unmarshal(ev.Payload, &got); err != nil {
			t.Fatalf("%s: decode payload: %v", name, err)
		}
		if got.Message != "Material added" || got.SiteID != "3" {
			t.Errorf("%s: unexpected notification %+v", name, got)
		}
	}
	expectNothing(t, otherSite, "other site")
	expectNothing(t, otherBusiness, "other business")
}

func TestNotify_AllSitesGoesOnce(t *testing.T) {
	hub := startHub(t)
	all := mockClient(hub, Room("7", "0"))
	hub.register <- all
	time.Sleep(10 * time.Millisecond)

	n := notify.New(notify.KindError, "owners", "delete", "failed")
	n.SiteID = "0"
	n.BusinessID = "7"
	if err := hub.Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	receive(t, all)
	expectNothing(t, all, "all-sites client")
}

func TestServeWS(t *testing.T) {
	const secret = "ws-secret"
	hub := startHub(t)

	r := chi.NewRouter()
	r.Get("/ws/sites/{sid}/notifications", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, secret, w, r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sites/3/notifications"

	if _, resp, err := websocket.DefaultDialer.Dial(base, nil); err == nil {
		t.Fatal("expected dial without token to fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", resp)
	}

	token, err := auth.GenerateToken(secret, auth.Identity{UserID: "1", BusinessID: "7", Role: "staff"}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers("7:3") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	n := notify.New(notify.KindSuccess, "labor-entries", "update", "Labor entry updated")
	n.SiteID = "3"
	n.BusinessID = "7"
	if err := hub.Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != EventNotification {
		t.Errorf("expected notification event, got %q", ev.Type)
	}
}

func TestValidSite(t *testing.T) {
	for in, want := range map[string]bool{"0": true, "12": true, "": false, "abc": false, "1a": false} {
		if got := validSite(in); got != want {
			t.Errorf("validSite(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := mockClient(hub, Room("2", "3"))
	if !hub.join(client) {
		t.Fatal("join failed on a running hub")
	}

	cancel()
	<-stopped

	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed on shutdown")
	}
	if hub.join(mockClient(hub, Room("2", "3"))) {
		t.Error("join should fail after shutdown")
	}

	left := make(chan struct{})
	go func() {
		hub.leave(client)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("leave blocked after shutdown")
	}

	err := hub.Notify(context.Background(), notify.Notification{SiteID: "3", BusinessID: "2"})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("notify after shutdown: got %v, want ErrClosed", err)
	}
}
