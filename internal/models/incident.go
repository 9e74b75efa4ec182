// internal/models/incident.go
package models

import (
	"math"
	"time"
)

// IncidentType classifies a reported safety event.
type IncidentType string

const (
	IncidentPanic      IncidentType = "panic"
	IncidentAmber      IncidentType = "amber"
	IncidentRobbery    IncidentType = "robbery"
	IncidentAssault    IncidentType = "assault"
	IncidentAccident   IncidentType = "accident"
	IncidentSuspicious IncidentType = "suspicious"
	IncidentCrash      IncidentType = "crash"
	IncidentOther      IncidentType = "other"
)

// IncidentStatus is owned by the upstream incident system; the pipeline
// only observes it.
type IncidentStatus string

const (
	StatusActive   IncidentStatus = "active"
	StatusEnRoute  IncidentStatus = "en_route"
	StatusOnScene  IncidentStatus = "on_scene"
	StatusResolved IncidentStatus = "resolved"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Incident is a reported safety event with a location and lifecycle status.
type Incident struct {
	ID              string         `json:"id"`
	Type            IncidentType   `json:"type"`
	Status          IncidentStatus `json:"status"`
	Latitude        float64        `json:"latitude"`
	Longitude       float64        `json:"longitude"`
	CreatedAt       time.Time      `json:"createdAt"`
	ConfidenceScore float64        `json:"confidenceScore"`
}

// HasCoordinates reports whether the incident carries a usable location.
// Incidents without one are excluded from scoring and geo fan-out.
func (i Incident) HasCoordinates() bool {
	if i.Latitude == 0 && i.Longitude == 0 {
		return false
	}
	return i.Latitude >= -90 && i.Latitude <= 90 && i.Longitude >= -180 && i.Longitude <= 180
}

// Location returns the incident coordinates.
func (i Incident) Location() LatLng {
	return LatLng{Lat: i.Latitude, Lng: i.Longitude}
}

const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
