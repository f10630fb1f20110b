package route

import "math"

// EarthRadius is the mean Earth radius in meters used by every distance
// computation in this package.
const EarthRadius = 6371000.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle (haversine) distance between two points
// in meters. Elevation is ignored.
func Distance(a, b GeoPoint) float64 {
	if a.Lat == b.Lat && a.Lon == b.Lon {
		return 0
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push h slightly outside [0,1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

// DistanceToSegment returns the distance in meters from p to the nearest
// point of the segment a-b. The projection is done in a local equirectangular
// frame centred on p; the final measurement is haversine.
func DistanceToSegment(p, a, b GeoPoint) float64 {
	if a.Lat == b.Lat && a.Lon == b.Lon {
		return Distance(p, a)
	}

	cosLat := math.Cos(toRadians(p.Lat))
	ax := (a.Lon - p.Lon) * cosLat
	ay := a.Lat - p.Lat
	bx := (b.Lon - p.Lon) * cosLat
	by := b.Lat - p.Lat

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Distance(p, a)
	}

	t := -(ax*dx + ay*dy) / lenSq
	switch {
	case t <= 0:
		return Distance(p, a)
	case t >= 1:
		return Distance(p, b)
	}

	nearest := GeoPoint{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return Distance(p, nearest)
}

// nearestPointDistance returns the smallest distance from p to any point of
// points, or +Inf when points is empty.
func nearestPointDistance(p GeoPoint, points []GeoPoint) float64 {
	best := math.Inf(1)
	for _, q := range points {
		if d := Distance(p, q); d < best {
			best = d
		}
	}
	return best
}

// nearestCorridorDistance returns the distance from p to the polyline through
// points. A single point degenerates to a point distance; no points yields +Inf.
func nearestCorridorDistance(p GeoPoint, points []GeoPoint) float64 {
	if len(points) < 2 {
		return nearestPointDistance(p, points)
	}
	best := math.Inf(1)
	for i := 1; i < len(points); i++ {
		if d := DistanceToSegment(p, points[i-1], points[i]); d < best {
			best = d
		}
	}
	return best
}
