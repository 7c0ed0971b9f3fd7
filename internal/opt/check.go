package opt

import (
	"errors"
	"fmt"
	"math"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
)

var ErrNilContext = errors.New("nil check context")

// Context binds one shop batch to one courier type at a model time. It is
// read-only once built and may be shared by concurrent enumerators.
type Context struct {
	Shop      *Shop
	Orders    []*Order
	Geo       *geo.Matrix
	Type      *courier.Type
	Shift     courier.Shift
	ModelTime float64
	Loop      bool

	open Key
}

// NewContext prepares a check context for the shop's orders. Orders already
// completed are left out of the open set.
func NewContext(shop *Shop, t *courier.Type, modelTime float64) (*Context, error) {
	if shop == nil || t == nil {
		return nil, ErrNilContext
	}
	if err := checkCapacity(len(shop.Orders)); err != nil {
		return nil, fmt.Errorf("shop %s: %w", shop.ID, err)
	}
	m := shop.Matrix(t.Kind)
	if m == nil || m.Orders() != len(shop.Orders) {
		return nil, fmt.Errorf("shop %s: geo matrix does not match %d orders", shop.ID, len(shop.Orders))
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("shop %s: %w", shop.ID, err)
	}
	c := &Context{
		Shop:      shop,
		Orders:    shop.Orders,
		Geo:       m,
		Type:      t,
		Shift:     t.Shift,
		ModelTime: modelTime,
		Loop:      t.ReturnToShop,
	}
	for i, o := range shop.Orders {
		if !o.Completed {
			c.open = c.open.With(i)
		}
	}
	return c, nil
}

// Open returns the open order set.
func (c *Context) Open() Key { return c.open }

// OpenIndices returns the open orders in index order.
func (c *Context) OpenIndices() []int { return c.open.Indices() }

// Restrict narrows the open set to keep.
func (c *Context) Restrict(keep Key) { c.open = c.open.Intersect(keep) }

// Check runs the delivery check for orders visited in the given index
// order. It returns false when the sequence is infeasible for the context's
// courier type.
func (c *Context) Check(idx []int) (*Shipment, bool) {
	return c.check(idx, c.Loop)
}

func (c *Context) check(idx []int, loop bool) (*Shipment, bool) {
	n := len(idx)
	if n == 0 || n > MaxPathLength {
		return nil, false
	}
	t := c.Type
	start := c.ModelTime
	weight := 0.0
	for _, i := range idx {
		o := c.Orders[i]
		if !o.Vehicles.Allows(t.Vehicle) {
			return nil, false
		}
		if t.MaxOrderWeight > 0 && o.Weight > t.MaxOrderWeight {
			return nil, false
		}
		weight += o.Weight
		if o.Assembled > start {
			start = o.Assembled
		}
	}
	if t.MaxWeight > 0 && weight > t.MaxWeight {
		return nil, false
	}

	var buf [MaxPathLength + 1]geo.Point
	legs := buf[:0]
	prev := c.Geo.Shop()
	for _, i := range idx {
		legs = append(legs, c.Geo.At(prev, i))
		prev = i
	}
	if loop {
		legs = append(legs, c.Geo.At(prev, c.Geo.Shop()))
	}
	calc, ok := t.Model.Path(legs, loop)
	if !ok {
		return nil, false
	}

	end := math.Inf(1)
	for k, i := range idx {
		o := c.Orders[i]
		off := calc.NodeDeliveryTime[k]
		to := o.TimeTo - off
		if c.ModelTime > to {
			return nil, false
		}
		if from := o.TimeFrom - off; from > start {
			start = from
		}
		if to < end {
			end = to
		}
		if start > end {
			return nil, false
		}
	}

	if c.Shop.hasHours() {
		start = math.Max(start, c.Shop.WorkStart)
		end = math.Min(end, c.Shop.WorkEnd)
	}
	if !t.IsTaxi() {
		if start, end, ok = clipShift(start, end, calc.ExecutionTime, c.Shift); !ok {
			return nil, false
		}
	}
	if start > end {
		return nil, false
	}

	s := &Shipment{
		Shop:                  c.Shop,
		Type:                  t,
		Orders:                make([]*Order, n),
		Index:                 append([]int(nil), idx...),
		Legs:                  append([]geo.Point(nil), legs...),
		NodeDeliveryTime:      calc.NodeDeliveryTime,
		Weight:                weight,
		Distance:              calc.Distance,
		IsLoop:                loop,
		Cost:                  calc.Cost,
		OrderCost:             calc.Cost / float64(n),
		DeliveryTime:          calc.DeliveryTime,
		ExecutionTime:         calc.ExecutionTime,
		ReserveTime:           end - c.ModelTime,
		StartDeliveryInterval: start,
		EndDeliveryInterval:   end,
		StartDelivery:         start,
	}
	for k, i := range idx {
		s.Orders[k] = c.Orders[i]
		s.Key = s.Key.With(i)
	}
	return s, true
}

// clipShift narrows a start interval to the working day and the lunch
// break. The shipment must finish before the shift ends.
func clipShift(start, end, exec float64, sh courier.Shift) (float64, float64, bool) {
	start = math.Max(start, sh.Start)
	end = math.Min(end, sh.End-exec)
	if start > end {
		return start, end, false
	}
	if !sh.HasLunch() {
		return start, end, true
	}
	switch {
	case start >= sh.LunchStart && end <= sh.LunchEnd:
		return start, end, false
	case start < sh.LunchStart && sh.LunchStart <= end:
		end = sh.LunchStart
	case start >= sh.LunchStart && start < sh.LunchEnd:
		start = sh.LunchEnd
	}
	return start, end, start <= end
}

// SolveSalesman returns the cheapest feasible ordering of idx by trying
// every permutation, or nil.
func (c *Context) SolveSalesman(idx []int) *Shipment {
	n := len(idx)
	if n == 0 || n > MaxPathLength {
		return nil
	}
	var best *Shipment
	var buf [MaxPathLength]int
	seq := buf[:n]
	for _, p := range Permutations(n) {
		for k, j := range p {
			seq[k] = idx[j]
		}
		if s, ok := c.Check(seq); ok && cheaper(s, best) {
			best = s
		}
	}
	return best
}
