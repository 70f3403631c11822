package navigation

import (
	"time"

	"supmap-navigation/internal/gis"
)

type Verdict int

const (
	// VerdictSkipped means the sample fell inside the throttle window and was
	// not evaluated. It says nothing about being on route.
	VerdictSkipped Verdict = iota
	// VerdictUnknown means the step geometry was too short to evaluate.
	VerdictUnknown
	VerdictOnRoute
	VerdictOffRoute
)

func (v Verdict) String() string {
	switch v {
	case VerdictSkipped:
		return "skipped"
	case VerdictUnknown:
		return "unknown"
	case VerdictOnRoute:
		return "on_route"
	case VerdictOffRoute:
		return "off_route"
	}
	return "invalid"
}

type offRouteDetector struct {
	threshold float64
	interval  time.Duration
	lastCheck time.Time
}

func newOffRouteDetector(threshold float64, interval time.Duration) *offRouteDetector {
	return &offRouteDetector{threshold: threshold, interval: interval}
}

func (d *offRouteDetector) evaluate(now time.Time, position Point, geometry []Point) (Verdict, float64) {
	if !d.lastCheck.IsZero() && now.Sub(d.lastCheck) < d.interval {
		return VerdictSkipped, 0
	}
	d.lastCheck = now

	if len(geometry) < 2 {
		return VerdictUnknown, 0
	}
	distance := gis.DistanceToPolyline(position, geometry)
	if distance > d.threshold {
		return VerdictOffRoute, distance
	}
	return VerdictOnRoute, distance
}

func (d *offRouteDetector) reset() {
	d.lastCheck = time.Time{}
}
