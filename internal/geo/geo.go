package geo

import (
	"fmt"
	"math"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point is the travel cost of one directed leg.
type Point struct {
	Distance int // meters
	Duration int // seconds
}

// Minutes returns the leg duration in minutes.
func (p Point) Minutes() float64 { return float64(p.Duration) / 60 }

// Kind selects which travel profile a matrix was built for.
type Kind int

const (
	Driving Kind = iota
	Cycling
	Walking
)

func (k Kind) String() string {
	switch k {
	case Cycling:
		return "cycling"
	case Walking:
		return "walking"
	default:
		return "driving"
	}
}

// ParseKind maps a config name to a Kind. Unknown names map to Driving.
func ParseKind(s string) Kind {
	switch s {
	case "cycling", "bicycle":
		return Cycling
	case "walking", "onfoot":
		return Walking
	default:
		return Driving
	}
}

// Matrix is the dense distance table for one shop batch. Orders occupy
// nodes 0..n-1 and the shop is node n.
type Matrix struct {
	n    int
	data []Point
	set  []bool
}

// NewMatrix allocates a table for orderCount orders plus the shop node.
func NewMatrix(orderCount int) *Matrix {
	size := orderCount + 1
	return &Matrix{
		n:    orderCount,
		data: make([]Point, size*size),
		set:  make([]bool, size*size),
	}
}

// Orders returns the number of order nodes.
func (m *Matrix) Orders() int { return m.n }

// Shop returns the shop node index.
func (m *Matrix) Shop() int { return m.n }

// At returns the leg from node i to node j.
func (m *Matrix) At(i, j int) Point { return m.data[i*(m.n+1)+j] }

// Set stores the leg from node i to node j.
func (m *Matrix) Set(i, j int, p Point) {
	k := i*(m.n+1) + j
	m.data[k] = p
	m.set[k] = true
}

// Complete reports whether every off-diagonal leg has been populated.
func (m *Matrix) Complete() bool {
	size := m.n + 1
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i != j && !m.set[i*size+j] {
				return false
			}
		}
	}
	return true
}

// Validate returns an error naming the first missing leg.
func (m *Matrix) Validate() error {
	size := m.n + 1
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i != j && !m.set[i*size+j] {
				return fmt.Errorf("geo matrix: missing leg %d->%d", i, j)
			}
		}
	}
	return nil
}

// Provider estimates legs between arbitrary coordinates.
type Provider interface {
	Between(a, b LatLng) Point
}

// Haversine estimates legs from great-circle distance scaled by a detour
// factor, at a constant speed.
type Haversine struct {
	SpeedKph float64
	Detour   float64
}

// DefaultSpeeds are used when a profile speed is not configured.
var DefaultSpeeds = map[Kind]float64{
	Driving: 30,
	Cycling: 15,
	Walking: 5,
}

// NewHaversine returns a provider for the given kind and speed. A zero speed
// picks the default for the kind.
func NewHaversine(kind Kind, speedKph, detour float64) Haversine {
	if speedKph <= 0 {
		speedKph = DefaultSpeeds[kind]
	}
	if detour <= 0 {
		detour = 1.3
	}
	return Haversine{SpeedKph: speedKph, Detour: detour}
}

func (h Haversine) Between(a, b LatLng) Point {
	d := Distance(a, b) * h.Detour
	speed := h.SpeedKph / 3.6
	if speed <= 0 {
		speed = DefaultSpeeds[Driving] / 3.6
	}
	return Point{Distance: int(math.Round(d)), Duration: int(math.Round(d / speed))}
}

// Distance is the great-circle distance in meters.
func Distance(a, b LatLng) float64 {
	const R = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lng - a.Lng) * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

// Build fills a matrix for the given order points and shop using p.
func Build(p Provider, shop LatLng, orders []LatLng) *Matrix {
	m := NewMatrix(len(orders))
	at := func(i int) LatLng {
		if i == len(orders) {
			return shop
		}
		return orders[i]
	}
	for i := 0; i <= len(orders); i++ {
		for j := 0; j <= len(orders); j++ {
			if i == j {
				m.Set(i, j, Point{})
				continue
			}
			m.Set(i, j, p.Between(at(i), at(j)))
		}
	}
	return m
}
