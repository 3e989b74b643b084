// Package bus provides the in-process event bus for share lifecycle events.
package bus

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Intake events
	EventShareReceived EventType = "share.received"
	EventShareIgnored  EventType = "share.ignored"

	// Delivery lifecycle events
	EventDeliveryPending    EventType = "delivery.pending"
	EventDeliveryRetrying   EventType = "delivery.retrying"
	EventDeliverySuperseded EventType = "delivery.superseded"
	EventDeliveryDelivered  EventType = "delivery.delivered"
	EventDeliveryDropped    EventType = "delivery.dropped"

	// Surface events
	EventSurfaceConnected    EventType = "surface.connected"
	EventSurfaceDisconnected EventType = "surface.disconnected"
)

// Event represents a bus event.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source"` // component name
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// NewEvent creates a new event.
func NewEvent(eventType EventType, source string, data any) (*Event, error) {
	var dataBytes json.RawMessage
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      dataBytes,
		Metadata:  make(map[string]any),
	}, nil
}

// WithMetadata adds metadata to the event.
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// ParseData unmarshals the event data into the given struct.
func (e *Event) ParseData(v any) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// ShareEventData describes an intent accepted or ignored by the dispatcher.
type ShareEventData struct {
	IntentID string `json:"intent_id,omitempty"`
	Source   string `json:"source,omitempty"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason,omitempty"`
}

// DeliveryEventData describes a transition of the pending delivery.
type DeliveryEventData struct {
	Generation uint64        `json:"generation"`
	Path       string        `json:"path,omitempty"`
	Payload    string        `json:"payload,omitempty"`
	Attempt    int           `json:"attempt,omitempty"`
	ColdStart  bool          `json:"cold_start,omitempty"`
	Delay      time.Duration `json:"delay,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

var eventCounter atomic.Int64

// generateEventID generates a unique event ID.
func generateEventID() string {
	n := eventCounter.Add(1)
	return fmt.Sprintf("evt-%d-%d", time.Now().UnixMilli(), n)
}
