// Package markers prepares candidate coordinates for the map widget.
package markers

import "github.com/Dosada05/lunch-roulette/models"

// Offset is added to both axes of a point that lands exactly on an already
// placed one (degrees of longitude/latitude).
const Offset = 0.00007

// maxNudges bounds the search for a free spot when offsets chain.
const maxNudges = 64

type Point struct {
	Lon float64 `json:"x"`
	Lat float64 `json:"y"`
}

// Marker is one pin on the map.
type Marker struct {
	ID       int     `json:"id"`
	Ref      string  `json:"rid"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Lon      float64 `json:"x"`
	Lat      float64 `json:"y"`
	Survived bool    `json:"survived"`
}

// Adjust returns points in the same order with exact duplicates nudged by
// Offset. A nudged point that collides again is nudged again, so the result
// has no two bit-equal points. Distinct inputs are never moved unless they
// collide with an earlier nudged point.
func Adjust(points []Point) []Point {
	placed := make(map[Point]struct{}, len(points))
	adjusted := make([]Point, len(points))
	for i, p := range points {
		for n := 0; n < maxNudges; n++ {
			if _, taken := placed[p]; !taken {
				break
			}
			p.Lon += Offset
			p.Lat += Offset
		}
		placed[p] = struct{}{}
		adjusted[i] = p
	}
	return adjusted
}

// FromCandidates builds de-overlapped markers for candidates in list order.
func FromCandidates(candidates []models.Candidate) []Marker {
	points := make([]Point, len(candidates))
	for i, c := range candidates {
		points[i] = Point{Lon: c.Lon, Lat: c.Lat}
	}
	adjusted := Adjust(points)

	out := make([]Marker, len(candidates))
	for i, c := range candidates {
		out[i] = Marker{
			ID:       c.ID,
			Ref:      c.Ref,
			Name:     c.Name,
			Category: c.Category,
			Lon:      adjusted[i].Lon,
			Lat:      adjusted[i].Lat,
			Survived: c.Survived,
		}
	}
	return out
}
