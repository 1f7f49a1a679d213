package tracking

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PathLookup resolves a tourist id to its simulated route.
type PathLookup interface {
	Lookup(touristID string) (ontology.Path, error)
	IDsByType() (ontology.TouristDirectory, error)
}

// EventPublisher receives engine events after the state change is committed.
// Implementations must not block for long and must not call back into the Engine.
type EventPublisher interface {
	PublishAlert(alert ontology.SafetyAlert)
	PublishTelemetry(entry ontology.LogEntry)
	PublishSystemEvent(eventType string, data map[string]interface{})
}

type Config struct {
	// PredictDelay is the minimum time before a prediction is acknowledged.
	PredictDelay time.Duration
	LogCapacity  int
	Now          func() time.Time
}

func DefaultConfig() *Config {
	return &Config{
		PredictDelay: 100 * time.Millisecond,
		LogCapacity:  LogCapacity,
		Now:          time.Now,
	}
}

// Engine owns all live tourist state. Every mutation runs under the write
// lock together with its log append and alert emission.
type Engine struct {
	mu sync.RWMutex

	tourists map[string]*ontology.TouristState
	bindings map[string]string
	alerted  map[string]struct{}
	logs     *moveLog
	feed     alertFeed

	paths     PathLookup
	publisher EventPublisher
	config    *Config
}

func New(paths PathLookup, publisher EventPublisher, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = LogCapacity
	}

	return &Engine{
		tourists:  make(map[string]*ontology.TouristState),
		bindings:  make(map[string]string),
		alerted:   make(map[string]struct{}),
		logs:      newMoveLog(cfg.LogCapacity),
		paths:     paths,
		publisher: publisher,
		config:    cfg,
	}
}

// outbox collects events during a locked mutation so they can be published
// once the lock is released.
type outbox struct {
	alerts    []ontology.SafetyAlert
	telemetry []ontology.LogEntry
}

func (e *Engine) flush(out *outbox) {
	if e.publisher == nil || out == nil {
		return
	}
	for _, entry := range out.telemetry {
		e.publisher.PublishTelemetry(entry)
	}
	for _, alert := range out.alerts {
		e.publisher.PublishAlert(alert)
	}
}

// record appends a log entry for the tourist's current position and status.
func (e *Engine) record(out *outbox, state *ontology.TouristState) {
	entry := e.logs.append(state.TouristID, state.Lat, state.Lon, state.Status, state.LastUpdated)
	out.telemetry = append(out.telemetry, entry)
}

func (e *Engine) raise(out *outbox, alertType ontology.AlertType, message string, state *ontology.TouristState) ontology.SafetyAlert {
	alert := ontology.SafetyAlert{
		AlertID:        uuid.New().String(),
		Message:        message,
		Type:           alertType,
		TouristID:      state.TouristID,
		AssociatedUser: e.resolveUser(state.TouristID),
		Lat:            state.Lat,
		Lon:            state.Lon,
		Timestamp:      state.LastUpdated,
	}
	e.feed.append(alert)
	out.alerts = append(out.alerts, alert)
	return alert
}

func (e *Engine) resolveUser(touristID string) string {
	if user, ok := e.bindings[touristID]; ok && user != "" {
		return user
	}
	return ontology.UnknownUser
}

// ResolveUser returns the user bound to a tourist, or "unknown".
func (e *Engine) ResolveUser(touristID string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resolveUser(touristID)
}

func (e *Engine) snapshot(state *ontology.TouristState) ontology.TouristState {
	s := *state
	if user, ok := e.bindings[s.TouristID]; ok && user != "" {
		s.AssociatedUser = user
	}
	if s.AssociatedUser == "" {
		s.AssociatedUser = ontology.UnknownUser
	}
	return s
}

func (e *Engine) GetSnapshot(touristID string) (ontology.TouristState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, ok := e.tourists[touristID]
	if !ok {
		return ontology.TouristState{}, false
	}
	return e.snapshot(state), true
}

func (e *Engine) GetAllSnapshots() map[string]ontology.TouristState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]ontology.TouristState, len(e.tourists))
	for id, state := range e.tourists {
		out[id] = e.snapshot(state)
	}
	return out
}

// GetLog returns a tourist's movement log, oldest first. Unknown ids yield an
// empty log.
func (e *Engine) GetLog(touristID string) []ontology.LogEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logs.get(touristID)
}

func (e *Engine) Alerts() []ontology.SafetyAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feed.all()
}

func (e *Engine) ClearAlerts() int {
	e.mu.Lock()
	n := e.feed.clear()
	e.mu.Unlock()

	logger.Info("Safety alerts cleared", zap.Int("count", n))
	if e.publisher != nil {
		e.publisher.PublishSystemEvent(shared.EventTypeAlertsClear, map[string]interface{}{"count": n})
	}
	return n
}

// Reset drops all registry, log, alert, dedup and binding state in one step.
func (e *Engine) Reset() {
	e.mu.Lock()
	tourists := len(e.tourists)
	e.tourists = make(map[string]*ontology.TouristState)
	e.bindings = make(map[string]string)
	e.alerted = make(map[string]struct{})
	e.logs.clear()
	e.feed.clear()
	e.mu.Unlock()

	logger.Info("Simulation reset", zap.Int("tourists", tourists))
	if e.publisher != nil {
		e.publisher.PublishSystemEvent(shared.EventTypeReset, map[string]interface{}{"tourists": tourists})
	}
}

// TouristIDs lists the dataset's tourist ids partitioned by path type.
func (e *Engine) TouristIDs() (ontology.TouristDirectory, error) {
	if e.paths == nil {
		return ontology.TouristDirectory{}, shared.ErrUnavailable
	}
	return e.paths.IDsByType()
}

func requireID(touristID string) error {
	if strings.TrimSpace(touristID) == "" {
		return fmt.Errorf("tourist_id is required: %w", shared.ErrValidation)
	}
	return nil
}
