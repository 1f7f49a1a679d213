package shared

import (
	"time"
)

// API Response types
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Event is the envelope published on every overwatch subject.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Subject   string                 `json:"subject"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
}

// NewEvent builds an event emitted by the tracking engine.
func NewEvent(id, eventType, subject string, data map[string]interface{}, at time.Time) Event {
	return Event{
		ID:        id,
		Type:      eventType,
		Subject:   subject,
		Data:      data,
		Timestamp: at.UTC(),
		Source:    SourceTrackingEngine,
	}
}

// Health check
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Uptime    time.Duration     `json:"uptime,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Constants
const (
	ServiceName = "tourist-overwatch"

	// Event Types
	EventTypeAlert       = "alert"
	EventTypeTelemetry   = "telemetry"
	EventTypeReset       = "simulation_reset"
	EventTypeAlertsClear = "alerts_cleared"

	// Event sources
	SourceTrackingEngine = "tracking-engine"
)
