package tracking

import (
	"fmt"

	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"

	"go.uber.org/zap"
)

// StartPath begins tracking a tourist along its dataset route. A non-empty
// requestedType must match the dataset's type. user, when set, claims the tourist.
func (e *Engine) StartPath(touristID string, requestedType ontology.PathType, user string) (ontology.Path, error) {
	if err := requireID(touristID); err != nil {
		return ontology.Path{}, err
	}
	if e.paths == nil {
		return ontology.Path{}, shared.ErrUnavailable
	}

	path, err := e.paths.Lookup(touristID)
	if err != nil {
		return ontology.Path{}, err
	}
	if len(path.Coordinates) == 0 {
		return ontology.Path{}, fmt.Errorf("tourist %s has an empty path: %w", touristID, shared.ErrNotFound)
	}
	if requestedType != "" && requestedType != path.PathType {
		return ontology.Path{}, fmt.Errorf("requested %s, dataset has %s: %w", requestedType, path.PathType, shared.ErrTypeMismatch)
	}

	associated := user
	if associated == "" {
		associated = ontology.UnknownUser
	}
	first := path.Coordinates[0]

	out := &outbox{}
	e.mu.Lock()
	state := &ontology.TouristState{
		TouristID:      touristID,
		Lat:            first.Lat,
		Lon:            first.Lon,
		Status:         ontology.StatusNormal,
		PathType:       path.PathType,
		AssociatedUser: associated,
		LastUpdated:    e.config.Now(),
	}
	e.tourists[touristID] = state
	if user != "" {
		e.bindings[touristID] = user
	}
	e.record(out, state)
	e.mu.Unlock()

	e.flush(out)
	logger.Debug("Path started",
		zap.String("tourist_id", touristID),
		zap.String("path_type", string(path.PathType)),
		zap.Int("points", len(path.Coordinates)),
		zap.String("user", associated),
	)

	return path, nil
}

// UpdateLocation moves a tracked tourist. Unknown tourists are ignored and
// reported as success whatever the requested status. An active SOS keeps its
// status.
func (e *Engine) UpdateLocation(touristID string, lat, lon float64, requested ontology.Status) error {
	if err := requireID(touristID); err != nil {
		return err
	}
	if requested == "" {
		requested = ontology.StatusNormal
	}

	out := &outbox{}
	e.mu.Lock()
	state, ok := e.tourists[touristID]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if !requested.Valid() {
		e.mu.Unlock()
		return fmt.Errorf("unknown status %q: %w", requested, shared.ErrValidation)
	}
	state.Lat = lat
	state.Lon = lon
	if state.Status != ontology.StatusSOS {
		state.Status = requested
	}
	state.LastUpdated = e.config.Now()
	e.record(out, state)
	e.mu.Unlock()

	e.flush(out)
	return nil
}
