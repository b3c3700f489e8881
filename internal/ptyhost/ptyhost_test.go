package ptyhost

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseResize(t *testing.T) {
	cases := []struct {
		input string
		cols  int
		rows  int
		ok    bool
	}{
		{"\x01resize:120:40", 120, 40, true},
		{"\x01resize:2:2", 2, 2, true},
		{"\x01resize:0:40", 0, 0, false},
		{"\x01resize:120:-1", 0, 0, false},
		{"\x01resize:120", 0, 0, false},
		{"\x01resize:a:b", 0, 0, false},
		{"resize:120:40", 0, 0, false},
		{"plain input", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		cols, rows, ok := parseResize([]byte(tc.input))
		if ok != tc.ok || cols != tc.cols || rows != tc.rows {
			t.Fatalf("parseResize(%q) = %d,%d,%v want %d,%d,%v",
				tc.input, cols, rows, ok, tc.cols, tc.rows, tc.ok)
		}
	}
}

func TestHostRejectsBadToken(t *testing.T) {
	host := New(Config{Token: "good"})
	server := httptest.NewServer(host)
	defer server.Close()

	resp, err := http.Get(server.URL + "?token=bad")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHostBridgesShellOutput(t *testing.T) {
	host := New(Config{Command: []string{"/bin/cat"}})
	server := httptest.NewServer(host)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("\x01resize:100:30")); err != nil {
		t.Fatalf("resize write: %v", err)
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("roundtrip\n")); err != nil {
		t.Fatalf("data write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var collected strings.Builder
	for time.Now().Before(deadline) {
		_ = ws.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		collected.Write(data)
		if strings.Contains(collected.String(), "roundtrip") {
			break
		}
	}
	if !strings.Contains(collected.String(), "roundtrip") {
		t.Fatalf("shell output never arrived: %q", collected.String())
	}
}

func TestEndpointFormat(t *testing.T) {
	if got := Endpoint("127.0.0.1:8767"); got != "ws://127.0.0.1:8767/term" {
		t.Fatalf("unexpected endpoint: %q", got)
	}
}
