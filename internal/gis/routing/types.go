package routing

import (
	"fmt"

	"github.com/twpayne/go-polyline"

	"supmap-navigation/internal/navigation"
)

// DirectionsResponse is the JSON document returned by the directions provider.
type DirectionsResponse struct {
	Code    string           `json:"code"`
	Message string           `json:"message,omitempty"`
	Routes  []DirectionRoute `json:"routes"`
}

type DirectionRoute struct {
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Legs     []Leg   `json:"legs"`
}

type Leg struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Steps    []Step  `json:"steps"`
}

type Step struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Name     string   `json:"name"`
	Geometry string   `json:"geometry"`
	Maneuver Maneuver `json:"maneuver"`
}

type Maneuver struct {
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier,omitempty"`
	Instruction string    `json:"instruction"`
	Location    []float64 `json:"location,omitempty"`
}

// toNavigationRoute flattens every leg's steps into one ordered step list.
func (r DirectionRoute) toNavigationRoute() (*navigation.Route, error) {
	geometry, err := decodePolyline(r.Geometry)
	if err != nil {
		return nil, fmt.Errorf("decoding route geometry: %w", err)
	}

	route := &navigation.Route{
		Geometry: geometry,
		Distance: r.Distance,
		Duration: r.Duration,
	}
	for _, leg := range r.Legs {
		for _, s := range leg.Steps {
			stepGeometry, err := decodePolyline(s.Geometry)
			if err != nil {
				return nil, fmt.Errorf("decoding step geometry: %w", err)
			}
			route.Steps = append(route.Steps, navigation.Step{
				Instruction: s.Maneuver.Instruction,
				Distance:    s.Distance,
				Duration:    s.Duration,
				Maneuver:    s.Maneuver.Type,
				Name:        s.Name,
				Geometry:    stepGeometry,
			})
		}
	}
	if len(route.Steps) == 0 {
		return nil, fmt.Errorf("route has no steps")
	}
	return route, nil
}

func decodePolyline(encoded string) ([]navigation.Point, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	points := make([]navigation.Point, len(coords))
	for i, c := range coords {
		points[i] = navigation.Point{Lat: c[0], Lon: c[1]}
	}
	return points, nil
}
