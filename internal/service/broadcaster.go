package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToCourse(courseID string, msgType string, payload interface{})
}
