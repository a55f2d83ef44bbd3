// Package dashboard broadcasts live flight telemetry to WebSocket
// clients for bench debugging — a thin, read-only view onto
// FlightControl, not part of the control loop itself.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aeroquad/flightcore/internal/statuslog"
)

var logTag = statuslog.Tag("dashboard")

// Telemetry is the JSON structure sent to every connected client.
type Telemetry struct {
	Roll        float64    `json:"roll"`
	Pitch       float64    `json:"pitch"`
	Yaw         float64    `json:"yaw"`
	MotorSpeeds [4]float64 `json:"motorSpeeds"`
	Battery     byte       `json:"battery"`
	AnglePIDOut float64    `json:"anglePidOut"`
	RatePIDOut  float64    `json:"ratePidOut"`
	Connected   bool       `json:"connected"`
	Stamp       int64      `json:"stamp"`
}

// Source is whatever can produce a Telemetry snapshot — FlightControl
// implements it.
type Source interface {
	Snapshot() Telemetry
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Server broadcasts telemetry frames polled from a Source to every
// connected WebSocket client at a fixed rate.
type Server struct {
	addr   string
	src    Source
	rateHz float64

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
}

// New constructs a Server that polls src at rateHz and serves
// WebSocket clients on addr.
func New(addr string, src Source, rateHz float64) *Server {
	return &Server{
		addr:   addr,
		src:    src,
		rateHz: rateHz,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the HTTP server and the poll/broadcast loop, blocking
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	go s.pollLoop(ctx)

	srv := &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logTag.Printf("listening on %s", s.addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logTag.Printf("upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 16)}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) pollLoop(ctx context.Context) {
	hz := s.rateHz
	if hz <= 0 {
		hz = 10
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := s.src.Snapshot()
			frame.Stamp = time.Now().UnixMilli()
			s.broadcast(frame)
		}
	}
}

func (s *Server) broadcast(frame Telemetry) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}
