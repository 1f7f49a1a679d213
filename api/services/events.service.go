package services

import (
	"encoding/json"
	"sync"
	"time"

	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StreamPublisher is the JetStream publish surface of the embedded broker.
type StreamPublisher interface {
	PublishWithDedup(subject string, data []byte, msgID string) error
}

// DefaultEventQueueSize bounds events waiting for the publisher goroutine.
const DefaultEventQueueSize = 4096

type queuedEvent struct {
	event shared.Event
	msgID string
}

// EventService publishes tracking engine events to NATS. Publishing is
// best-effort and never fails the originating operation. Events are queued
// and published in order by one goroutine; when the queue is full new events
// are dropped. A zero EventService publishes synchronously.
type EventService struct {
	nats StreamPublisher

	mu     sync.RWMutex
	queue  chan queuedEvent
	closed bool
	done   chan struct{}
}

func NewEventService(nats StreamPublisher) *EventService {
	return newEventService(nats, DefaultEventQueueSize)
}

func newEventService(nats StreamPublisher, size int) *EventService {
	s := &EventService{
		nats:  nats,
		queue: make(chan queuedEvent, size),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *EventService) run() {
	defer close(s.done)
	for q := range s.queue {
		s.publish(q.event, q.msgID)
	}
}

// Close stops accepting events and waits until queued ones are published.
func (s *EventService) Close() {
	s.mu.Lock()
	if s.queue == nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
}

func (s *EventService) PublishAlert(alert ontology.SafetyAlert) {
	event := shared.NewEvent(alert.AlertID, shared.EventTypeAlert,
		shared.AlertSubject(string(alert.Type), alert.TouristID),
		map[string]interface{}{"alert": alert}, alert.Timestamp)
	s.dispatch(event, alert.AlertID)
}

func (s *EventService) PublishTelemetry(entry ontology.LogEntry) {
	event := shared.NewEvent(uuid.New().String(), shared.EventTypeTelemetry,
		shared.TelemetryTouristSubject(entry.TouristID),
		map[string]interface{}{"entry": entry}, entry.Timestamp)
	s.dispatch(event, event.ID)
}

func (s *EventService) PublishSystemEvent(eventType string, data map[string]interface{}) {
	event := shared.NewEvent(uuid.New().String(), eventType,
		shared.SystemEventSubject(eventType), data, time.Now())
	s.dispatch(event, event.ID)
}

func (s *EventService) dispatch(event shared.Event, msgID string) {
	if s.queue == nil {
		s.publish(event, msgID)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logger.Debug("Event service closed, dropping event", zap.String("subject", event.Subject))
		return
	}
	select {
	case s.queue <- queuedEvent{event: event, msgID: msgID}:
	default:
		logger.Warn("Event queue full, dropping event",
			zap.String("type", event.Type),
			zap.String("subject", event.Subject),
		)
	}
}

func (s *EventService) publish(event shared.Event, msgID string) {
	if s.nats == nil {
		logger.Debug("NATS not available for publishing event", zap.String("subject", event.Subject))
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	if err := s.nats.PublishWithDedup(event.Subject, data, msgID); err != nil {
		logger.Warn("Failed to publish event", zap.String("subject", event.Subject), zap.Error(err))
		return
	}
	logger.Debug("Published event", zap.String("type", event.Type), zap.String("subject", event.Subject))
}
