package tracking

import (
	"tourist-overwatch/pkg/ontology"
)

const (
	IntensityNormal  = 0.3
	IntensityAnomaly = 0.6
	IntensitySOS     = 1.0
)

// Intensity maps an observed status to its heatmap weight.
func Intensity(status ontology.Status) float64 {
	switch status {
	case ontology.StatusSOS:
		return IntensitySOS
	case ontology.StatusAnomaly:
		return IntensityAnomaly
	default:
		return IntensityNormal
	}
}

// Heatmap derives one point per logged observation across all tourists.
func (e *Engine) Heatmap() []ontology.HeatPoint {
	e.mu.RLock()
	defer e.mu.RUnlock()

	points := make([]ontology.HeatPoint, 0, e.logs.len())
	e.logs.each(func(entry ontology.LogEntry) {
		points = append(points, ontology.HeatPoint{
			Lat:       entry.Lat,
			Lon:       entry.Lon,
			Intensity: Intensity(entry.Status),
		})
	})
	return points
}
