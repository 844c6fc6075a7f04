package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Dashboard message types
const (
	MsgSubscribed        MessageType = "subscribed"
	MsgObservationScored MessageType = "observation.scored"
	MsgError             MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans course events out to dashboard subscribers
type Hub struct {
	// course -> subscribers
	courses map[string]map[*Connection]struct{}

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	logger zerolog.Logger
}

// Connection is one dashboard subscription
type Connection struct {
	CourseID string
	Send     chan []byte
	Hub      *Hub
}

// BroadcastMessage is a message for every subscriber of a course
type BroadcastMessage struct {
	CourseID string
	Message  *Message
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub(logger zerolog.Logger) *Hub {
	h := &Hub{
		courses:    make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go h.run()
	return h
}

// NewConnection creates a subscription for courseID with a buffered send queue.
func (h *Hub) NewConnection(courseID string) *Connection {
	return &Connection{CourseID: courseID, Send: make(chan []byte, 256), Hub: h}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for course, subs := range h.courses {
				for conn := range subs {
					close(conn.Send)
				}
				delete(h.courses, course)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.courses[conn.CourseID] == nil {
				h.courses[conn.CourseID] = make(map[*Connection]struct{})
			}
			h.courses[conn.CourseID][conn] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug().Str("course", conn.CourseID).Msg("dashboard subscribed")

		case conn := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.courses[conn.CourseID]; ok {
				if _, ok := subs[conn]; ok {
					delete(subs, conn)
					close(conn.Send)
					if len(subs) == 0 {
						delete(h.courses, conn.CourseID)
					}
					h.logger.Debug().Str("course", conn.CourseID).Msg("dashboard unsubscribed")
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Message)
			if err != nil {
				h.logger.Error().Err(err).Str("course", msg.CourseID).Msg("encode broadcast")
				continue
			}
			h.mu.RLock()
			for conn := range h.courses[msg.CourseID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Subscribers returns the number of dashboards following courseID.
func (h *Hub) Subscribers(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.courses[courseID])
}

// Close stops the hub loop and closes every subscriber queue.
func (h *Hub) Close() {
	close(h.done)
}

// BroadcastToCourse sends a message to every dashboard of a course (implements service.Broadcaster)
func (h *Hub) BroadcastToCourse(courseID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("encode broadcast payload")
		return
	}
	msg := &BroadcastMessage{
		CourseID: courseID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}
