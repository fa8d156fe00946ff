// Package sse provides Server-Sent Events support for the live staff dashboard.
package sse

import (
	"encoding/json"
	"log/slog"
	"sync"

	"rivo_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventClientCreated        EventType = "client_created"
	EventClientStageChanged   EventType = "client_stage_changed"
	EventClientAssigned       EventType = "client_assigned"
	EventClientInitialized    EventType = "client_initialized"
	EventClientContextUpdated EventType = "client_context_updated"
)

// Event represents an SSE event payload
type Event struct {
	Type     EventType `json:"type"`
	ClientID uuid.UUID `json:"clientId"`
	Message  string    `json:"message,omitempty"`
	Data     any       `json:"data,omitempty"`
}

// Viewer identifies who is on the other end of a stream.
type Viewer struct {
	UserID uuid.UUID
	Admin  bool
}

// client represents a connected SSE client
type client struct {
	viewer Viewer
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client // userID -> clients
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.viewer.UserID] = append(s.clients[c.viewer.UserID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.viewer.UserID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.viewer.UserID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.viewer.UserID]) == 0 {
		delete(s.clients, c.viewer.UserID)
	}
}

// Publish sends an event to every stream of one user.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients[userID] {
		s.deliver(c, event)
	}
}

// PublishToAdmins sends an event to every admin stream, plus the extra
// recipient when one is given and is not an admin.
func (s *Service) PublishToAdmins(event Event, extra *uuid.UUID) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for userID, clients := range s.clients {
		for _, c := range clients {
			if c.viewer.Admin || (extra != nil && userID == *extra) {
				s.deliver(c, event)
				delivered++
			}
		}
	}
	s.log.Debug("sse event published",
		slog.String("type", string(event.Type)),
		slog.String("client_id", event.ClientID.String()),
		slog.Int("streams", delivered),
	)
}

// deliver must be called with s.mu held so the channel cannot be closed underneath it.
func (s *Service) deliver(c *client, event Event) {
	select {
	case c.events <- event:
	default:
		s.log.Warn("sse buffer full, dropping event",
			slog.String("user_id", c.viewer.UserID.String()),
			slog.String("type", string(event.Type)),
		)
	}
}

// Connections returns the number of open streams.
func (s *Service) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, clients := range s.clients {
		n += len(clients)
	}
	return n
}

// Handler returns a Gin handler for SSE connections. resolve reports false
// after writing its own error response.
func (s *Service) Handler(resolve func(*gin.Context) (Viewer, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer, ok := resolve(c)
		if !ok {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{viewer: viewer, events: make(chan Event, 32)}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": viewer.UserID, "admin": viewer.Admin})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close drops every open stream.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}

