package dataset

import (
	"tourist-overwatch/pkg/ontology"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   LineString             `json:"geometry"`
}

type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// GeoJSON renders a tourist's path as a styled LineString feature.
// Coordinates are in [lon, lat] order.
func (d *Dataset) GeoJSON(touristID string) (*FeatureCollection, error) {
	p, err := d.Lookup(touristID)
	if err != nil {
		return nil, err
	}
	return PathFeatureCollection(p), nil
}

func PathFeatureCollection(p ontology.Path) *FeatureCollection {
	coords := make([][2]float64, len(p.Coordinates))
	for i, c := range p.Coordinates {
		coords[i] = [2]float64{c.Lon, c.Lat}
	}

	return &FeatureCollection{
		Type: "FeatureCollection",
		Features: []Feature{{
			Type: "Feature",
			Properties: map[string]interface{}{
				"tourist_id":       p.TouristID,
				"path_type":        string(p.PathType),
				"stroke":           "#FF5733",
				"stroke-width":     2,
				"stroke-opacity":   1,
				"stroke-dasharray": "10, 5",
			},
			Geometry: LineString{
				Type:        "LineString",
				Coordinates: coords,
			},
		}},
	}
}
