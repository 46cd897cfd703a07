// SPDX-License-Identifier: MIT
package transport

import (
	"affect/internal/metrics"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	wst := NewWebSocketTransport(m)
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return wst.Clients() == 1 })

	msg, _ := NewMessage(testResult, time.Unix(0, 7))
	if err := wst.Send(msg); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if got.Top != "sad" || got.Timestamp != 7 || len(got.Probabilities) != 4 || got.Labels[3] != "surprised" {
		t.Errorf("received %+v", got)
	}

	conn.Close()
	waitFor(t, func() bool { return wst.Clients() == 0 })
}

func TestWebSocketClose(t *testing.T) {
	wst := NewWebSocketTransport(nil)
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return wst.Clients() == 1 })

	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := wst.Send("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client connection still open after Close")
	}
}

func TestWebSocketSendWithoutClients(t *testing.T) {
	wst := NewWebSocketTransport(nil)
	defer wst.Close()
	for range broadcastBuffer * 2 {
		if err := wst.Send("tick"); err != nil {
			t.Fatalf("Send() error = %v, must never block or fail while open", err)
		}
	}
}
