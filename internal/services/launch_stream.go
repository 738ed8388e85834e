package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"token-launcher/internal/clients"
	"token-launcher/internal/metrics"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 54 * time.Second
	streamSendBuffer = 64
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the API group is already IP restricted
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is one frame pushed to stream subscribers.
type StreamMessage struct {
	Type    string               `json:"type"`
	Subject string               `json:"subject,omitempty"`
	Event   *clients.LaunchEvent `json:"event,omitempty"`
}

type streamConn struct {
	id    string
	runID string // empty receives every run
	conn  *websocket.Conn
	send  chan []byte
}

type streamFrame struct {
	runID string
	data  []byte
}

// LaunchStream fans launch events out to websocket subscribers. Feed it
// with Broadcast (for example from a NATS subscription) and start Run.
type LaunchStream struct {
	log        logrus.FieldLogger
	conns      map[string]*streamConn
	register   chan *streamConn
	unregister chan *streamConn
	hub        chan streamFrame
	done       chan struct{}
	mu         sync.RWMutex
}

// NewLaunchStream creates an idle stream hub.
func NewLaunchStream(logger logrus.FieldLogger) *LaunchStream {
	return &LaunchStream{
		log:        logger.WithField("component", "launch_stream"),
		conns:      make(map[string]*streamConn),
		register:   make(chan *streamConn),
		unregister: make(chan *streamConn),
		hub:        make(chan streamFrame, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches registrations and frames until ctx is done, then closes
// every subscriber.
func (s *LaunchStream) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.conns[conn.id] = conn
			s.mu.Unlock()
			metrics.StreamConnections.Inc()
			s.log.WithFields(logrus.Fields{"conn": conn.id, "run": conn.runID}).Debug("Stream subscriber connected")

		case conn := <-s.unregister:
			s.drop(conn)

		case frame := <-s.hub:
			s.deliver(frame)

		case <-ctx.Done():
			s.mu.RLock()
			open := make([]*streamConn, 0, len(s.conns))
			for _, conn := range s.conns {
				open = append(open, conn)
			}
			s.mu.RUnlock()
			for _, conn := range open {
				s.drop(conn)
			}
			return
		}
	}
}

// Broadcast queues event for delivery. The signature matches
// NATSClient.SubscribeLaunchEvents handlers.
func (s *LaunchStream) Broadcast(event *clients.LaunchEvent, subject string) {
	data, err := json.Marshal(StreamMessage{Type: "launch_event", Subject: subject, Event: event})
	if err != nil {
		s.log.WithError(err).Warn("Failed to encode stream frame")
		return
	}
	select {
	case s.hub <- streamFrame{runID: event.RunID, data: data}:
	default:
		s.log.WithField("run", event.RunID).Warn("Stream hub full, dropping event")
	}
}

// ActiveConnections returns the number of open subscribers.
func (s *LaunchStream) ActiveConnections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// ServeWS upgrades the request and subscribes it to runID (or every run
// when runID is empty).
func (s *LaunchStream) ServeWS(w http.ResponseWriter, r *http.Request, runID string) {
	ws, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	conn := &streamConn{
		id:    uuid.NewString(),
		runID: runID,
		conn:  ws,
		send:  make(chan []byte, streamSendBuffer),
	}
	hello, _ := json.Marshal(StreamMessage{Type: "connection_established"})
	conn.send <- hello

	select {
	case s.register <- conn:
	case <-s.done:
		ws.Close()
		return
	}
	go s.writeLoop(conn)
	go s.readLoop(conn)
}

func (s *LaunchStream) deliver(frame streamFrame) {
	s.mu.RLock()
	var slow []*streamConn
	for _, conn := range s.conns {
		if conn.runID != "" && conn.runID != frame.runID {
			continue
		}
		select {
		case conn.send <- frame.data:
		default:
			slow = append(slow, conn)
		}
	}
	s.mu.RUnlock()

	for _, conn := range slow {
		s.log.WithField("conn", conn.id).Warn("Stream subscriber too slow, disconnecting")
		s.drop(conn)
	}
}

func (s *LaunchStream) drop(conn *streamConn) {
	s.mu.Lock()
	_, ok := s.conns[conn.id]
	delete(s.conns, conn.id)
	s.mu.Unlock()
	if !ok {
		return
	}
	close(conn.send)
	metrics.StreamConnections.Dec()
	s.log.WithField("conn", conn.id).Debug("Stream subscriber disconnected")
}

func (s *LaunchStream) writeLoop(conn *streamConn) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case data, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only services control frames; clients never send data.
func (s *LaunchStream) readLoop(conn *streamConn) {
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.done:
		}
	}()

	conn.conn.SetReadLimit(512)
	conn.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})
	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithError(err).Debug("Stream read error")
			}
			return
		}
	}
}
