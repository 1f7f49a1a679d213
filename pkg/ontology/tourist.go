package ontology

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusNormal  Status = "normal"
	StatusAnomaly Status = "anomaly"
	StatusSOS     Status = "sos"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNormal, StatusAnomaly, StatusSOS:
		return true
	}
	return false
}

type PathType string

const (
	PathNormal  PathType = "normal"
	PathAnomaly PathType = "anomaly"
)

type AlertType string

const (
	AlertAnomaly AlertType = "anomaly"
	AlertSOS     AlertType = "sos"
)

// UnknownUser is reported for tourists nobody has claimed.
const UnknownUser = "unknown"

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type TouristState struct {
	TouristID      string    `json:"tourist_id"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	Status         Status    `json:"status"`
	PathType       PathType  `json:"path_type,omitempty"`
	AssociatedUser string    `json:"associated_user"`
	LastUpdated    time.Time `json:"last_updated"`
}

type LogEntry struct {
	TouristID string    `json:"tourist_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

type SafetyAlert struct {
	AlertID        string    `json:"alert_id"`
	Message        string    `json:"message"`
	Type           AlertType `json:"type"`
	TouristID      string    `json:"tourist_id"`
	AssociatedUser string    `json:"associated_user"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	Timestamp      time.Time `json:"timestamp"`
}

// HeatPoint serialises as a [lat, lon, intensity] triple.
type HeatPoint struct {
	Lat       float64
	Lon       float64
	Intensity float64
}

func (p HeatPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{p.Lat, p.Lon, p.Intensity})
}

func (p *HeatPoint) UnmarshalJSON(data []byte) error {
	var triple [3]float64
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	p.Lat, p.Lon, p.Intensity = triple[0], triple[1], triple[2]
	return nil
}

type UpdateLocationRequest struct {
	TouristID string  `json:"tourist_id" validate:"required"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Status    Status  `json:"status,omitempty" validate:"omitempty,oneof=normal anomaly sos"`
}

type PredictionRequest struct {
	TouristID string       `json:"tourist_id" validate:"required"`
	PathType  PathType     `json:"path_type"`
	Path      []Coordinate `json:"path"`
}

type SOSRequest struct {
	TouristID string  `json:"tourist_id" validate:"required"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

type ResolveSOSRequest struct {
	TouristID string `json:"tourist_id" validate:"required"`
}

// Path is a simulated route as recorded in the dataset.
type Path struct {
	TouristID   string       `json:"tourist_id"`
	PathType    PathType     `json:"path_type"`
	Coordinates []Coordinate `json:"path"`
}

type TouristDirectory struct {
	Normal  []string `json:"normal"`
	Anomaly []string `json:"anomaly"`
}
