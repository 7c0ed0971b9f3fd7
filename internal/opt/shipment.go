package opt

import (
	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
)

const costEpsilon = 1e-9

// Shipment is one courier trip: an ordered sequence of orders from one shop
// with its feasible start interval and cost. Fields are valid only for
// shipments returned by a successful check.
type Shipment struct {
	ID      string
	Shop    *Shop
	Type    *courier.Type
	Courier *courier.Courier

	Orders []*Order
	Index  []int
	Key    Key

	Legs             []geo.Point
	NodeDeliveryTime []float64
	Weight           float64
	Distance         int
	IsLoop           bool

	Cost          float64
	OrderCost     float64
	DeliveryTime  float64
	ExecutionTime float64
	ReserveTime   float64

	StartDeliveryInterval float64
	EndDeliveryInterval   float64
	StartDelivery         float64
}

func (s *Shipment) OrderCount() int { return len(s.Orders) }

// EndDelivery is when the courier is free again.
func (s *Shipment) EndDelivery() float64 { return s.StartDelivery + s.ExecutionTime }

// LastStop is where the courier ends the trip.
func (s *Shipment) LastStop() geo.LatLng {
	if s.IsLoop || len(s.Orders) == 0 {
		return s.Shop.Location
	}
	return s.Orders[len(s.Orders)-1].Location
}

// Arrivals returns the absolute hand-over time of each order.
func (s *Shipment) Arrivals() []float64 {
	out := make([]float64, len(s.NodeDeliveryTime))
	for i, t := range s.NodeDeliveryTime {
		out[i] = s.StartDelivery + t
	}
	return out
}

// Placed returns a copy started at start and assigned to c.
func (s *Shipment) Placed(start float64, c *courier.Courier) *Shipment {
	cp := *s
	cp.StartDelivery = start
	cp.Courier = c
	return &cp
}

// anyCompleted reports whether one of the orders is already shipped.
func (s *Shipment) anyCompleted() bool {
	for _, o := range s.Orders {
		if o.Completed {
			return true
		}
	}
	return false
}

// cheaper orders shipments by total cost; ties go to the earlier start and
// then to the smaller index sequence so results are deterministic.
func cheaper(a, b *Shipment) bool {
	if b == nil {
		return a != nil
	}
	if a == nil {
		return false
	}
	if d := a.Cost - b.Cost; d < -costEpsilon || d > costEpsilon {
		return d < 0
	}
	if a.StartDeliveryInterval != b.StartDeliveryInterval {
		return a.StartDeliveryInterval < b.StartDeliveryInterval
	}
	return lessIndex(a.Index, b.Index)
}

// cheaperPerOrder orders shipments by per-order cost; ties prefer more
// orders, then the cheaper trip.
func cheaperPerOrder(a, b *Shipment) bool {
	if b == nil {
		return a != nil
	}
	if a == nil {
		return false
	}
	if d := a.OrderCost - b.OrderCost; d < -costEpsilon || d > costEpsilon {
		return d < 0
	}
	if len(a.Orders) != len(b.Orders) {
		return len(a.Orders) > len(b.Orders)
	}
	return cheaper(a, b)
}

func lessIndex(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
