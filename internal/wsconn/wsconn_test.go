package wsconn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/termdeck/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type eventRecorder struct {
	events chan core.ConnEvent
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{events: make(chan core.ConnEvent, 64)}
}

func (r *eventRecorder) onEvent(event core.ConnEvent) {
	r.events <- event
}

func (r *eventRecorder) next(t *testing.T) core.ConnEvent {
	t.Helper()
	select {
	case event := <-r.events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for conn event")
		return core.ConnEvent{}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialDeliversOrderedEvents(t *testing.T) {
	received := make(chan []byte, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if err := ws.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
			return
		}
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- data
		deadline := time.Now().Add(time.Second)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}))
	defer server.Close()

	rec := newEventRecorder()
	dialer := NewDialer(DialerConfig{})
	conn, err := dialer.Dial(context.Background(), core.DialRequest{
		Endpoint:  wsURL(server),
		SessionID: "s1",
		OnEvent:   rec.onEvent,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if event := rec.next(t); event.Type != core.ConnEventOpened {
		t.Fatalf("expected opened, got %v", event.Type)
	}
	event := rec.next(t)
	if event.Type != core.ConnEventData || string(event.Data) != "hello" {
		t.Fatalf("expected data hello, got %v %q", event.Type, event.Data)
	}

	conn.Send([]byte("world"))
	select {
	case data := <-received:
		if string(data) != "world" {
			t.Fatalf("server received %q", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server never received the message")
	}

	if event := rec.next(t); event.Type != core.ConnEventClosed {
		t.Fatalf("expected closed, got %v err=%v", event.Type, event.Err)
	}
}

func TestSendQueuesUntilOpen(t *testing.T) {
	release := make(chan struct{})
	received := make(chan []byte, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- data
	}))
	defer server.Close()

	rec := newEventRecorder()
	dialer := NewDialer(DialerConfig{})
	conn, err := dialer.Dial(context.Background(), core.DialRequest{
		Endpoint:  wsURL(server),
		SessionID: "s1",
		OnEvent:   rec.onEvent,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Send([]byte("queued"))
	close(release)

	if event := rec.next(t); event.Type != core.ConnEventOpened {
		t.Fatalf("expected opened, got %v", event.Type)
	}
	select {
	case data := <-received:
		if string(data) != "queued" {
			t.Fatalf("server received %q", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("queued message never flushed")
	}
}

func TestDialAttachesSessionAndToken(t *testing.T) {
	params := make(chan [2]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params <- [2]string{r.URL.Query().Get("session"), r.URL.Query().Get("token")}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer server.Close()

	rec := newEventRecorder()
	dialer := NewDialer(DialerConfig{Token: "secret"})
	conn, err := dialer.Dial(context.Background(), core.DialRequest{
		Endpoint:  wsURL(server),
		SessionID: "abc123",
		OnEvent:   rec.onEvent,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case got := <-params:
		if got[0] != "abc123" || got[1] != "secret" {
			t.Fatalf("unexpected query params: %v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server never saw the handshake")
	}
}

func TestDialFailureEmitsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	rec := newEventRecorder()
	dialer := NewDialer(DialerConfig{})
	if _, err := dialer.Dial(context.Background(), core.DialRequest{
		Endpoint: wsURL(server),
		OnEvent:  rec.onEvent,
	}); err != nil {
		t.Fatalf("dial: %v", err)
	}

	event := rec.next(t)
	if event.Type != core.ConnEventFailed {
		t.Fatalf("expected failed, got %v", event.Type)
	}
	if event.Err == nil {
		t.Fatalf("expected failure error")
	}
}

func TestDialValidatesRequest(t *testing.T) {
	dialer := NewDialer(DialerConfig{})
	if _, err := dialer.Dial(context.Background(), core.DialRequest{OnEvent: func(core.ConnEvent) {}}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := dialer.Dial(context.Background(), core.DialRequest{Endpoint: "ws://host"}); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}
