package courier

import (
	"math"

	"courierdispatch/internal/geo"
)

// CalcMethod is the closed set of cost model families.
type CalcMethod int

const (
	MethodHourly CalcMethod = iota
	MethodTaxi
)

func (m CalcMethod) String() string {
	if m == MethodTaxi {
		return "taxi"
	}
	return "hourly"
}

// Calculation is the timing and cost of one shipment. Times are minutes
// relative to the shipment start.
type Calculation struct {
	NodeDeliveryTime []float64
	DeliveryTime     float64
	ExecutionTime    float64
	Cost             float64
	Distance         int // meters, raw
}

// CostModel prices a sequence of legs. legs[0] runs from the shop to the
// first order; a loop shipment carries one extra leg back to the shop.
// ok is false when the profile rejects the shipment.
type CostModel interface {
	Method() CalcMethod
	Single(to geo.Point) (Calculation, bool)
	SingleLoop(to, back geo.Point) (Calculation, bool)
	Path(legs []geo.Point, loop bool) (Calculation, bool)
}

type limits struct {
	maxCount    int
	maxDistance float64 // meters, 0 = unlimited
	allowance   float64
}

func (l limits) accept(orders, distance int) bool {
	if orders <= 0 || orders > l.maxCount {
		return false
	}
	if l.maxDistance > 0 && float64(distance)*l.allowance > l.maxDistance {
		return false
	}
	return true
}

type timing struct {
	startDelay float64
	getOrder   float64
	handover   float64
}

// schedule fills node times and returns (distance, delivery, execution).
func (tm timing) schedule(legs []geo.Point, n int, loop bool, nodes []float64) (int, float64, float64) {
	t := tm.startDelay + tm.getOrder
	dist := 0
	for i := 0; i < n; i++ {
		t += legs[i].Minutes()
		dist += legs[i].Distance
		nodes[i] = t
		t += tm.handover
	}
	delivery := t
	if loop {
		t += legs[n].Minutes()
		dist += legs[n].Distance
	}
	return dist, delivery, t
}

func orderCount(legs []geo.Point, loop bool) int {
	if loop {
		return len(legs) - 1
	}
	return len(legs)
}

// Hourly bills execution time at an hourly rate plus insurance.
type Hourly struct {
	limits
	timing
	Rate      float64
	Insurance float64
}

func (Hourly) Method() CalcMethod { return MethodHourly }

func (h Hourly) Single(to geo.Point) (Calculation, bool) {
	return h.Path([]geo.Point{to}, false)
}

func (h Hourly) SingleLoop(to, back geo.Point) (Calculation, bool) {
	return h.Path([]geo.Point{to, back}, true)
}

func (h Hourly) Path(legs []geo.Point, loop bool) (Calculation, bool) {
	n := orderCount(legs, loop)
	if n <= 0 {
		return Calculation{}, false
	}
	nodes := make([]float64, n)
	dist, delivery, exec := h.schedule(legs, n, loop, nodes)
	if !h.accept(n, dist) {
		return Calculation{}, false
	}
	return Calculation{
		NodeDeliveryTime: nodes,
		DeliveryTime:     delivery,
		ExecutionTime:    exec,
		Cost:             (1 + h.Insurance) * h.Rate * exec / 60,
		Distance:         dist,
	}, true
}

// Taxi bills a fixed first fare, a per-kilometer surcharge beyond the
// included distance and a flat fee per extra order.
type Taxi struct {
	limits
	timing
	FirstPay         float64
	SecondPay        float64
	FirstDistanceKm  float64
	AdditionalKmCost float64
}

func (Taxi) Method() CalcMethod { return MethodTaxi }

func (x Taxi) Single(to geo.Point) (Calculation, bool) {
	return x.Path([]geo.Point{to}, false)
}

func (x Taxi) SingleLoop(to, back geo.Point) (Calculation, bool) {
	return x.Path([]geo.Point{to, back}, true)
}

func (x Taxi) Path(legs []geo.Point, loop bool) (Calculation, bool) {
	n := orderCount(legs, loop)
	if n <= 0 {
		return Calculation{}, false
	}
	nodes := make([]float64, n)
	dist, delivery, exec := x.schedule(legs, n, loop, nodes)
	if !x.accept(n, dist) {
		return Calculation{}, false
	}
	return Calculation{
		NodeDeliveryTime: nodes,
		DeliveryTime:     delivery,
		ExecutionTime:    exec,
		Cost:             x.Fare(float64(dist)/1000, n),
		Distance:         dist,
	}, true
}

// Fare prices a trip of km kilometers carrying orders orders.
func (x Taxi) Fare(km float64, orders int) float64 {
	extra := math.Max(0, km-x.FirstDistanceKm)
	cost := x.FirstPay + x.AdditionalKmCost*math.Ceil(extra-1e-9)
	if orders > 1 {
		cost += float64(orders-1) * x.SecondPay
	}
	return cost
}

// BilledHours rounds a duration in minutes up to whole hours.
func BilledHours(minutes float64) int {
	if minutes <= 0 {
		return 0
	}
	return int(math.Ceil(minutes/60 - 1e-9))
}
