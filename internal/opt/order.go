package opt

import (
	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
)

// Order is a delivery request. Times are minutes since the plan day's
// midnight; the delivery window is [TimeFrom, TimeTo).
type Order struct {
	ID        string
	ShopID    string
	Location  geo.LatLng
	Weight    float64
	Assembled float64
	TimeFrom  float64
	TimeTo    float64
	Vehicles  courier.VehicleSet

	// Completed is written only by the greedy selection loop.
	Completed bool
	// Number is the order's node in its shop matrix.
	Number int
}

// Overlaps reports whether the delivery windows of o and x intersect.
func (o *Order) Overlaps(x *Order) bool {
	return o.TimeFrom < x.TimeTo && x.TimeFrom < o.TimeTo
}

// Shop is a pickup point with the orders assigned to it for the day.
type Shop struct {
	ID        string
	Location  geo.LatLng
	WorkStart float64
	WorkEnd   float64
	Orders    []*Order

	// Geo holds one matrix per travel kind over Orders plus the shop node.
	Geo map[geo.Kind]*geo.Matrix
}

// Renumber assigns each order its index in Orders.
func (s *Shop) Renumber() {
	for i, o := range s.Orders {
		o.Number = i
	}
}

// Matrix returns the matrix for kind, falling back to driving.
func (s *Shop) Matrix(kind geo.Kind) *geo.Matrix {
	if m, ok := s.Geo[kind]; ok {
		return m
	}
	return s.Geo[geo.Driving]
}

// BuildGeo fills missing matrices from coordinates using the providers.
func (s *Shop) BuildGeo(providers map[geo.Kind]geo.Provider) {
	if s.Geo == nil {
		s.Geo = map[geo.Kind]*geo.Matrix{}
	}
	pts := make([]geo.LatLng, len(s.Orders))
	for i, o := range s.Orders {
		pts[i] = o.Location
	}
	for kind, p := range providers {
		if m, ok := s.Geo[kind]; ok && m.Orders() == len(s.Orders) {
			continue
		}
		s.Geo[kind] = geo.Build(p, s.Location, pts)
	}
}

// Pending returns the orders not yet completed.
func (s *Shop) Pending() []*Order {
	out := make([]*Order, 0, len(s.Orders))
	for _, o := range s.Orders {
		if !o.Completed {
			out = append(out, o)
		}
	}
	return out
}

func (s *Shop) hasHours() bool { return s.WorkEnd > s.WorkStart }
