package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeSource struct{ roll float64 }

func (f *fakeSource) Snapshot() Telemetry {
	return Telemetry{Roll: f.roll, Connected: true}
}

func TestHandleWSBroadcastsSnapshot(t *testing.T) {
	src := &fakeSource{roll: 12.5}
	s := New("", src, 100)

	server := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give handleWS's goroutines a moment to register the client.
	time.Sleep(20 * time.Millisecond)

	frame := s.src.Snapshot()
	frame.Stamp = time.Now().UnixMilli()
	s.broadcast(frame)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if len(msg) == 0 {
		t.Fatal("empty message")
	}
}

func TestBroadcastSkipsSlowClientsWithoutBlocking(t *testing.T) {
	s := New("", &fakeSource{}, 100)
	client := &wsClient{send: make(chan []byte)} // unbuffered, nobody reads
	s.clients[client] = struct{}{}

	done := make(chan struct{})
	go func() {
		s.broadcast(Telemetry{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
