package tracking

import (
	"context"
	"time"

	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/services/geo"

	"go.uber.org/zap"
)

// AnomalyPathThreshold is the number of points an anomaly-typed path must
// exceed before it is flagged.
const AnomalyPathThreshold = 30

type Prediction struct {
	TouristID string `json:"tourist_id"`
	IsAnomaly bool   `json:"is_anomaly"`
	// Applied is false when the tourist is unknown or in SOS.
	Applied     bool             `json:"applied"`
	Status      ontology.Status  `json:"status,omitempty"`
	AlertRaised bool             `json:"alert_raised"`
	Features    geo.PathFeatures `json:"features"`
}

// IsAnomalous is the fixed detection rule.
func IsAnomalous(pathType ontology.PathType, pathLen int) bool {
	return pathType == ontology.PathAnomaly && pathLen > AnomalyPathThreshold
}

// Predict evaluates a path-so-far and applies the result to the tourist.
// The state change is committed first; the acknowledgment then waits until
// PredictDelay has passed since the call began. The wait holds no lock.
func (e *Engine) Predict(ctx context.Context, req ontology.PredictionRequest) (Prediction, error) {
	var timer *time.Timer
	if e.config.PredictDelay > 0 {
		timer = time.NewTimer(e.config.PredictDelay)
		defer timer.Stop()
	}

	pred, err := e.evaluate(req)
	if err != nil {
		return pred, err
	}

	if timer != nil {
		select {
		case <-timer.C:
		case <-ctx.Done():
			return pred, ctx.Err()
		}
	}
	return pred, nil
}

func (e *Engine) evaluate(req ontology.PredictionRequest) (Prediction, error) {
	if err := requireID(req.TouristID); err != nil {
		return Prediction{}, err
	}

	pred := Prediction{
		TouristID: req.TouristID,
		IsAnomaly: IsAnomalous(req.PathType, len(req.Path)),
		Features:  geo.Features(req.Path),
	}

	out := &outbox{}
	e.mu.Lock()
	state, ok := e.tourists[req.TouristID]
	if !ok || state.Status == ontology.StatusSOS {
		e.mu.Unlock()
		return pred, nil
	}

	if pred.IsAnomaly {
		state.Status = ontology.StatusAnomaly
	} else {
		state.Status = ontology.StatusNormal
	}
	state.LastUpdated = e.config.Now()

	if pred.IsAnomaly {
		if _, seen := e.alerted[req.TouristID]; !seen {
			e.raise(out, ontology.AlertAnomaly, AnomalyAlertMessage, state)
			e.alerted[req.TouristID] = struct{}{}
			pred.AlertRaised = true
		}
	}
	e.record(out, state)

	pred.Applied = true
	pred.Status = state.Status
	e.mu.Unlock()

	e.flush(out)
	if pred.AlertRaised {
		logger.Warn("Anomalous path detected",
			zap.String("tourist_id", req.TouristID),
			zap.Int("points", len(req.Path)),
			zap.Float64("distance_m", pred.Features.TotalDistanceMeters),
		)
	}

	return pred, nil
}
