package gis

import (
	"math"
)

// EarthRadius in meters (spherical approximation).
const EarthRadius = 6371000

// Degrees to radians conversion
const degToRad = math.Pi / 180

type Point struct {
	Lat float64 `json:"latitude" validate:"latitude"`
	Lon float64 `json:"longitude" validate:"longitude"`
}

// Haversine distance between two points in meters
func Haversine(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad

	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad

	sinDlat := math.Sin(dLat / 2)
	sinDlon := math.Sin(dLon / 2)

	aVal := sinDlat*sinDlat + sinDlon*sinDlon*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(aVal), math.Sqrt(1-aVal))
	return EarthRadius * c
}

// DistanceToPolyline returns the minimum distance (in metres) from point to any
// segment of the polyline. A polyline with fewer than 2 points cannot be
// evaluated and yields 0.
func DistanceToPolyline(point Point, polyline []Point) float64 {
	if len(polyline) < 2 {
		return 0
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(polyline)-1; i++ {
		if d := distanceToSegment(point, polyline[i], polyline[i+1]); d < minDistance {
			minDistance = d
		}
	}
	return minDistance
}

// distanceToSegment calculates the minimum distance (in metres) from point P to the segment [A, B].
func distanceToSegment(P, A, B Point) float64 {
	lat1 := A.Lat * degToRad
	lon1 := A.Lon * degToRad
	lat2 := B.Lat * degToRad
	lon2 := B.Lon * degToRad
	latP := P.Lat * degToRad
	lonP := P.Lon * degToRad

	// Equirectangular projection around the segment's mean latitude. Good
	// enough at step scale, where segments are at most a few kilometres long.
	latRef := (lat1 + lat2) / 2
	cosLatRef := math.Cos(latRef)

	// Local Cartesian coordinates (x east-west, y north-south)
	xA, yA := lon1*EarthRadius*cosLatRef, lat1*EarthRadius
	xB, yB := lon2*EarthRadius*cosLatRef, lat2*EarthRadius
	xP, yP := lonP*EarthRadius*cosLatRef, latP*EarthRadius

	dx, dy := xB-xA, yB-yA

	// Degenerate segment case (A == B)
	if dx == 0 && dy == 0 {
		return math.Hypot(xP-xA, yP-yA)
	}

	// Orthogonal projection of point P onto segment AB, clamped to [0,1]
	t := ((xP-xA)*dx + (yP-yA)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	xProj := xA + t*dx
	yProj := yA + t*dy

	return math.Hypot(xP-xProj, yP-yProj)
}
