package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/events"
)

// FlowPushService fans flow transitions out to connected WebSocket clients.
// A nil service drops all broadcasts.
type FlowPushService struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *logrus.Logger
}

func NewFlowPushService(logger *logrus.Logger) *FlowPushService {
	return &FlowPushService{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// Register adds a client connection. The service owns the connection from
// this point and closes it on write failure.
func (s *FlowPushService) Register(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = true
}

func (s *FlowPushService) Unregister(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[conn] {
		delete(s.clients, conn)
		conn.Close()
	}
}

// Broadcast sends the event to every connected client, dropping clients
// whose writes fail.
func (s *FlowPushService) Broadcast(event events.FlowEvent) {
	if s == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal push event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.logger.WithError(err).Debug("dropping websocket client")
			delete(s.clients, conn)
			conn.Close()
		}
	}
}

func (s *FlowPushService) ClientCount() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
