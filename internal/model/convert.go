package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
	"courierdispatch/internal/opt"
)

var ErrBadTime = errors.New("invalid time")

// Clock converts between wall time and engine minutes since the plan day's
// midnight.
type Clock struct {
	Day time.Time
}

// DayOf returns the clock of t's calendar day in t's location.
func DayOf(t time.Time) Clock {
	y, m, d := t.Date()
	return Clock{Day: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// ParseDay parses a YYYY-MM-DD plan date.
func ParseDay(date string, loc *time.Location) (Clock, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), loc)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: plan date %q", ErrBadTime, date)
	}
	return Clock{Day: d}, nil
}

// ParseCalcTime parses an absolute calculation time, RFC3339 or
// "YYYY-MM-DD HH:MM:SS" in UTC.
func ParseCalcTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateTime, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: calc time %q", ErrBadTime, s)
}

func (c Clock) Minutes(t time.Time) float64 { return t.Sub(c.Day).Minutes() }

func (c Clock) At(min float64) time.Time {
	return c.Day.Add(time.Duration(min * float64(time.Minute))).Round(time.Second)
}

func (c Clock) Format(min float64) string { return c.At(min).Format(time.RFC3339) }

// ParseTime accepts RFC3339 or HH:MM on the clock's day.
func (c Clock) ParseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return c.Minutes(t), nil
	}
	if m, err := courier.ParseClock(s); err == nil {
		return m, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
}

func (o OrderIn) toOrder(c Clock, shopID string) (*opt.Order, error) {
	if o.ID == "" {
		return nil, errors.New("order id is required")
	}
	from, err := c.ParseTime(o.Window.Start)
	if err != nil {
		return nil, fmt.Errorf("order %s window start: %w", o.ID, err)
	}
	to, err := c.ParseTime(o.Window.End)
	if err != nil {
		return nil, fmt.Errorf("order %s window end: %w", o.ID, err)
	}
	if to <= from {
		return nil, fmt.Errorf("order %s: empty window", o.ID)
	}
	if o.Weight < 0 {
		return nil, fmt.Errorf("order %s: negative weight", o.ID)
	}
	out := &opt.Order{
		ID:        o.ID,
		ShopID:    shopID,
		Location:  geo.LatLng{Lat: o.Location.Lat, Lng: o.Location.Lng},
		Weight:    o.Weight,
		TimeFrom:  from,
		TimeTo:    to,
		Completed: o.Completed,
	}
	if o.Assembled != "" {
		if out.Assembled, err = c.ParseTime(o.Assembled); err != nil {
			return nil, fmt.Errorf("order %s assembled: %w", o.ID, err)
		}
	}
	for _, name := range o.Vehicles {
		v, err := courier.ParseVehicle(name)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", o.ID, err)
		}
		out.Vehicles |= courier.NewVehicleSet(v)
	}
	return out, nil
}

// ToShop converts a shop and the given orders (the shop's own orders when
// orders is nil).
func (s ShopIn) ToShop(c Clock, orders []OrderIn) (*opt.Shop, error) {
	if s.ID == "" {
		return nil, errors.New("shop id is required")
	}
	if orders == nil {
		orders = s.Orders
	}
	sh := &opt.Shop{ID: s.ID, Location: geo.LatLng{Lat: s.Location.Lat, Lng: s.Location.Lng}}
	var err error
	if s.WorkStart != "" && s.WorkEnd != "" {
		if sh.WorkStart, err = courier.ParseClock(s.WorkStart); err != nil {
			return nil, fmt.Errorf("shop %s: %w", s.ID, err)
		}
		if sh.WorkEnd, err = courier.ParseClock(s.WorkEnd); err != nil {
			return nil, fmt.Errorf("shop %s: %w", s.ID, err)
		}
	}
	seen := map[string]bool{}
	for _, o := range orders {
		if seen[o.ID] {
			return nil, fmt.Errorf("shop %s: duplicate order %s", s.ID, o.ID)
		}
		seen[o.ID] = true
		order, err := o.toOrder(c, s.ID)
		if err != nil {
			return nil, err
		}
		sh.Orders = append(sh.Orders, order)
	}
	sh.Renumber()
	return sh, nil
}

func money(v float64) decimal.Decimal { return decimal.NewFromFloat(v).Round(2) }

func orderIDs(os []*opt.Order) []string {
	out := make([]string, len(os))
	for i, o := range os {
		out[i] = o.ID
	}
	return out
}

func ShipmentFrom(s *opt.Shipment, c Clock) ShipmentOut {
	out := ShipmentOut{
		ID:       s.ID,
		Orders:   orderIDs(s.Orders),
		Start:    c.Format(s.StartDelivery),
		End:      c.Format(s.EndDelivery()),
		Cost:     money(s.Cost),
		Distance: s.Distance,
		IsLoop:   s.IsLoop,
	}
	if s.Shop != nil {
		out.ShopID = s.Shop.ID
	}
	if s.Type != nil {
		out.Vehicle = s.Type.Vehicle.String()
	}
	if s.Courier != nil {
		out.CourierID = s.Courier.ID
	}
	for _, a := range s.Arrivals() {
		out.Arrivals = append(out.Arrivals, c.Format(a))
	}
	return out
}

// DeliveryFrom renders a checked shipment in the delivery check contract.
func DeliveryFrom(s *opt.Shipment, c Clock) *DeliveryInfo {
	d := &DeliveryInfo{
		Orders:                orderIDs(s.Orders),
		NodeDeliveryTime:      append([]float64(nil), s.NodeDeliveryTime...),
		StartDeliveryInterval: c.Format(s.StartDeliveryInterval),
		EndDeliveryInterval:   c.Format(s.EndDeliveryInterval),
		Weight:                s.Weight,
		IsLoop:                s.IsLoop,
		ReserveTime:           s.ReserveTime,
		DeliveryTime:          s.DeliveryTime,
		ExecutionTime:         s.ExecutionTime,
		Cost:                  money(s.Cost),
	}
	for _, l := range s.Legs {
		d.NodeInfo = append(d.NodeInfo, NodeInfo{Distance: l.Distance, Duration: l.Duration})
	}
	return d
}

func CourierFrom(cr *courier.Courier, c Clock) CourierOut {
	out := CourierOut{
		ID:        cr.ID,
		Vehicle:   cr.Type.Vehicle.String(),
		Shipments: cr.Shipments,
		Orders:    cr.OrderCount,
		Cost:      money(cr.PayrollCost()),
	}
	if cr.Shipments > 0 {
		out.FirstStart = c.Format(cr.FirstStart)
		out.LastEnd = c.Format(cr.LastEnd)
	}
	return out
}

// PlanFrom renders a built day plan.
func PlanFrom(p *opt.DayPlan, c Clock, created time.Time) Plan {
	out := Plan{
		ID:           p.ID,
		ServiceID:    p.ServiceID,
		PlanDate:     p.PlanDate,
		Variant:      p.Variant.String(),
		Code:         p.Code,
		CreatedAt:    created.UTC(),
		TotalCost:    p.TotalCost,
		ShipmentCost: p.ShipmentCost,
		Shipments:    make([]ShipmentOut, 0, len(p.Shipments)),
		Couriers:     make([]CourierOut, 0, len(p.Couriers)),
		Unshipped:    orderIDs(p.Unshipped),
		Stats:        p.Stats,
	}
	for _, s := range p.Shipments {
		out.Shipments = append(out.Shipments, ShipmentFrom(s, c))
	}
	for _, cr := range p.Couriers {
		out.Couriers = append(out.Couriers, CourierFrom(cr, c))
	}
	return out
}

func (p Plan) Summary() PlanSummary {
	return PlanSummary{ID: p.ID, ServiceID: p.ServiceID, PlanDate: p.PlanDate, Variant: p.Variant, TotalCost: p.TotalCost, CreatedAt: p.CreatedAt}
}
