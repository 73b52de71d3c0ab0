// Package sse provides Server-Sent Events support for live campaign
// progress streaming.
package sse

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"

	"callpilot_backend/platform/logger"
)

// Event is one SSE payload pushed to group listeners.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// client is a connected listener on one group's stream.
type client struct {
	groupID string
	events  chan Event
}

// Service manages SSE connections grouped by campaign group id.
type Service struct {
	mu    sync.RWMutex
	rooms map[string][]*client
	log   *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{
		rooms: make(map[string][]*client),
		log:   log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[c.groupID] = append(s.rooms[c.groupID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.rooms[c.groupID]
	for i, cl := range clients {
		if cl == c {
			s.rooms[c.groupID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.rooms[c.groupID]) == 0 {
		delete(s.rooms, c.groupID)
	}
}

// ListenerCount reports how many clients are watching a group.
func (s *Service) ListenerCount(groupID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[groupID])
}

// Publish sends an event to every listener of a group. Slow listeners
// whose buffer is full miss the event rather than block the publisher.
// The lock is held across the sends so a concurrent disconnect cannot
// close a channel mid-send; the sends never block, so holding it is safe.
func (s *Service) Publish(groupID string, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.rooms[groupID] {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, dropping event", "group_id", groupID, "type", event.Type)
		}
	}
}

// Handler returns a Gin handler streaming one group's events.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			groupID: groupID,
			events:  make(chan Event, 32),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"groupId": groupID})
		c.Writer.Flush()

		s.log.Debug("sse client connected", "group_id", groupID)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "group_id", groupID)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event.Data)
				c.SSEvent(event.Type, string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close drops every connected client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.rooms {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.rooms = make(map[string][]*client)
}
