package tracking

import (
	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/ontology"

	"go.uber.org/zap"
)

// RaiseSOS replaces the tourist's state with an SOS record at the given
// position, creating the tourist if needed. Every call emits a new alert.
func (e *Engine) RaiseSOS(touristID string, lat, lon float64) (ontology.SafetyAlert, error) {
	if err := requireID(touristID); err != nil {
		return ontology.SafetyAlert{}, err
	}

	out := &outbox{}
	e.mu.Lock()
	// the previous record, path type included, is replaced outright
	state := &ontology.TouristState{
		TouristID:      touristID,
		Lat:            lat,
		Lon:            lon,
		Status:         ontology.StatusSOS,
		AssociatedUser: e.resolveUser(touristID),
		LastUpdated:    e.config.Now(),
	}
	e.tourists[touristID] = state
	e.record(out, state)
	alert := e.raise(out, ontology.AlertSOS, SOSAlertMessage, state)
	e.mu.Unlock()

	e.flush(out)
	logger.Warn("SOS received",
		zap.String("tourist_id", touristID),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("user", alert.AssociatedUser),
	)

	return alert, nil
}

// ResolveSOS returns a tourist to normal. Unknown tourists are ignored.
// Emitted alerts and the anomaly dedup set are left alone.
func (e *Engine) ResolveSOS(touristID string) error {
	if err := requireID(touristID); err != nil {
		return err
	}

	out := &outbox{}
	e.mu.Lock()
	state, ok := e.tourists[touristID]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	state.Status = ontology.StatusNormal
	state.LastUpdated = e.config.Now()
	e.record(out, state)
	e.mu.Unlock()

	e.flush(out)
	logger.Debug("SOS cleared", zap.String("tourist_id", touristID))
	return nil
}
