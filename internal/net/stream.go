package net

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"graveward/internal/telemetry"
	"graveward/logging"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPongWait   = 30 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

type StreamConfig struct {
	// AllowedOrigins lists accepted Origin headers. Empty accepts any origin.
	AllowedOrigins []string
	// Backlog is the per-subscriber queue length; a subscriber that falls
	// this far behind misses events.
	Backlog int
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Stream is a logging sink that forwards every event to websocket
// subscribers as one JSON text frame.
type Stream struct {
	cfg      StreamConfig
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*streamSubscriber]struct{}
	closed bool

	dropped atomic.Uint64
}

type streamSubscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *streamSubscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func NewStream(cfg StreamConfig) *Stream {
	if cfg.Backlog <= 0 {
		cfg.Backlog = 256
	}
	s := &Stream{cfg: cfg, subs: make(map[*streamSubscriber]struct{})}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			if len(cfg.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return s
}

// Write implements logging.Sink. It never blocks on slow subscribers.
func (s *Stream) Write(event logging.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.send <- data:
		default:
			s.dropped.Add(1)
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.Add("stream_events_dropped_total", 1)
			}
		}
	}
	return nil
}

// Close implements logging.Sink and disconnects every subscriber.
func (s *Stream) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subs {
		sub.stop()
	}
	return nil
}

func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped reports how many frames were skipped for slow subscribers.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Handle upgrades the request and streams events until either side closes.
func (s *Stream) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("stream: upgrade failed: %v", err)
		return
	}
	sub := &streamSubscriber{
		conn: conn,
		send: make(chan []byte, s.cfg.Backlog),
		done: make(chan struct{}),
	}
	if !s.add(sub) {
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	defer s.remove(sub)

	go s.readPump(sub)
	s.writePump(sub)
}

func (s *Stream) add(sub *streamSubscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.subs[sub] = struct{}{}
	return true
}

func (s *Stream) remove(sub *streamSubscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.stop()
	sub.conn.Close()
}

// readPump only drains control frames; subscribers never send commands here.
func (s *Stream) readPump(sub *streamSubscriber) {
	defer sub.stop()
	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) writePump(sub *streamSubscriber) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-sub.done:
			sub.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Stream) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}
