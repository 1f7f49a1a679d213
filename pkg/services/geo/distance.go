package geo

import (
	"tourist-overwatch/pkg/ontology"

	"github.com/golang/geo/s2"
)

const EarthRadiusMeters = 6371000.0

// PathFeatures summarises a submitted path. Values are informational only.
type PathFeatures struct {
	NumPoints           int     `json:"num_points"`
	TotalDistanceMeters float64 `json:"total_distance_m"`
	MaxLegMeters        float64 `json:"max_leg_m"`
	MeanLegMeters       float64 `json:"mean_leg_m"`
}

// Distance returns the great-circle distance between two coordinates in meters.
func Distance(a, b ontology.Coordinate) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

func Features(path []ontology.Coordinate) PathFeatures {
	f := PathFeatures{NumPoints: len(path)}
	if len(path) < 2 {
		return f
	}

	for i := 1; i < len(path); i++ {
		leg := Distance(path[i-1], path[i])
		f.TotalDistanceMeters += leg
		if leg > f.MaxLegMeters {
			f.MaxLegMeters = leg
		}
	}
	f.MeanLegMeters = f.TotalDistanceMeters / float64(len(path)-1)

	return f
}
