package navigation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"supmap-navigation/internal/gis"
)

type Point = gis.Point

// Position is a live sample from the device location stream. Accuracy and
// Timestamp are carried through but unused by the engine.
type Position struct {
	Lat       float64   `json:"lat" validate:"latitude"`
	Lon       float64   `json:"lon" validate:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (p Position) Point() Point {
	return Point{Lat: p.Lat, Lon: p.Lon}
}

type Profile string

const (
	ProfileDriving Profile = "driving"
	ProfileWalking Profile = "walking"
	ProfileCycling Profile = "cycling"
)

func (p Profile) IsValid() bool {
	switch p {
	case ProfileDriving, ProfileWalking, ProfileCycling:
		return true
	}
	return false
}

type RouteRequest struct {
	Origin      *Point  `json:"origin" validate:"required"`
	Destination *Point  `json:"destination" validate:"required"`
	Waypoints   []Point `json:"waypoints,omitempty" validate:"dive"`
	Profile     Profile `json:"profile,omitempty" validate:"omitempty,oneof=driving walking cycling"`
}

// Normalized returns a copy of the request with the default profile applied.
func (r RouteRequest) Normalized() RouteRequest {
	if r.Profile == "" {
		r.Profile = ProfileDriving
	}
	return r
}

// Coordinates returns origin, waypoints and destination in travel order.
func (r RouteRequest) Coordinates() []Point {
	coords := make([]Point, 0, len(r.Waypoints)+2)
	if r.Origin != nil {
		coords = append(coords, *r.Origin)
	}
	coords = append(coords, r.Waypoints...)
	if r.Destination != nil {
		coords = append(coords, *r.Destination)
	}
	return coords
}

// Key is the cache key of the normalized request. Waypoint order matters.
func (r RouteRequest) Key() string {
	r = r.Normalized()

	var b strings.Builder
	b.WriteString(string(r.Profile))
	for i, p := range r.Coordinates() {
		if i == 0 {
			b.WriteByte(':')
		} else {
			b.WriteByte(';')
		}
		b.WriteString(formatCoord(p.Lat))
		b.WriteByte(',')
		b.WriteString(formatCoord(p.Lon))
	}
	return b.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

type Route struct {
	Geometry []Point `json:"geometry"`
	// Distance in meters
	Distance float64 `json:"distance"`
	// Duration in seconds
	Duration float64 `json:"duration"`
	Steps    []Step  `json:"steps"`
}

type Step struct {
	Instruction string  `json:"instruction"`
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Maneuver    string  `json:"maneuver"`
	Name        string  `json:"name,omitempty"`
	Geometry    []Point `json:"geometry"`
}

// ManeuverPoint is the last coordinate of the step geometry, where the next
// maneuver happens.
func (s Step) ManeuverPoint() (Point, bool) {
	if len(s.Geometry) == 0 {
		return Point{}, false
	}
	return s.Geometry[len(s.Geometry)-1], true
}

func (r *Route) Validate() error {
	if r == nil {
		return fmt.Errorf("route is nil")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("route has no steps")
	}
	return nil
}
