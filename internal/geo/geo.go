package geo

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

const (
	ResolutionCoarse = 5
	ResolutionMedium = 7
	ResolutionFine   = 9

	DefaultRadiusMeters = 50000
	MaxRadiusMeters     = 200000

	earthRadius = 6371000 // meters
	maxRing     = 30
)

// Average hexagon edge length in meters per resolution.
var avgEdgeMeters = map[int]float64{
	ResolutionCoarse: 9854.091,
	ResolutionMedium: 1406.476,
	ResolutionFine:   200.786,
}

// searchOrder is finest first so small radii scan few cells.
var searchOrder = []int{ResolutionFine, ResolutionMedium, ResolutionCoarse}

// Cells holds the index cells stored alongside a point.
type Cells struct {
	R5 string
	R7 string
	R9 string
}

// CellsFor indexes a point at every stored resolution.
func CellsFor(lat, lng float64) Cells {
	latLng := h3.NewLatLng(lat, lng)
	return Cells{
		R5: h3.LatLngToCell(latLng, ResolutionCoarse).String(),
		R7: h3.LatLngToCell(latLng, ResolutionMedium).String(),
		R9: h3.LatLngToCell(latLng, ResolutionFine).String(),
	}
}

// Search is the candidate cell set covering a circle.
type Search struct {
	Resolution int
	Ring       int
	Cells      []string
}

// Covering returns cells at one resolution whose union contains every point
// within radiusMeters of the center. Candidates still need a distance check.
func Covering(lat, lng, radiusMeters float64) (Search, error) {
	if err := ValidateRadius(radiusMeters); err != nil {
		return Search{}, err
	}
	if err := ValidatePoint(lat, lng); err != nil {
		return Search{}, err
	}

	res, k := ResolutionFor(radiusMeters)
	center := h3.LatLngToCell(h3.NewLatLng(lat, lng), res)
	disk := center.GridDisk(k)

	cells := make([]string, len(disk))
	for i, c := range disk {
		cells[i] = c.String()
	}
	return Search{Resolution: res, Ring: k, Cells: cells}, nil
}

// ResolutionFor picks the finest resolution whose ring stays small.
func ResolutionFor(radiusMeters float64) (int, int) {
	for _, res := range searchOrder {
		k := ringFor(res, radiusMeters)
		if k <= maxRing {
			return res, k
		}
	}
	return ResolutionCoarse, ringFor(ResolutionCoarse, radiusMeters)
}

// Each ring adds at least one average edge of reach.
func ringFor(res int, radiusMeters float64) int {
	return int(math.Ceil(radiusMeters/avgEdgeMeters[res])) + 1
}

func ValidateRadius(radiusMeters float64) error {
	if radiusMeters <= 0 || radiusMeters > MaxRadiusMeters || math.IsNaN(radiusMeters) {
		return fmt.Errorf("radius must be in (0, %d] meters", MaxRadiusMeters)
	}
	return nil
}

func ValidatePoint(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinates out of range")
	}
	return nil
}

// Distance is the great-circle distance between two points in meters.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
