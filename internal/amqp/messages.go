package amqp

import (
	"encoding/json"
	"time"
)

// Change operations carried in notifications. Subscribers must not rely on
// them: the feed is an invalidation signal, not a replication stream.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// EventChangeMessage is a lightweight notification that a calendar event
// changed. Subscribers refetch the full window rather than applying the
// message contents.
type EventChangeMessage struct {
	EventID   string    `json:"event_id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEventChangeMessage(eventID, op string) *EventChangeMessage {
	return &EventChangeMessage{
		EventID:   eventID,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *EventChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventChangeMessageFromJSON creates a message from JSON bytes.
func EventChangeMessageFromJSON(data []byte) (*EventChangeMessage, error) {
	var msg EventChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
