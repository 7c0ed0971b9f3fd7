package courier

import (
	"courierdispatch/internal/geo"
)

// Shift is a working day in minutes since midnight. A lunch break is
// present when LunchEnd > LunchStart.
type Shift struct {
	Start      float64
	End        float64
	LunchStart float64
	LunchEnd   float64
}

// HasLunch reports whether the shift carries a lunch break.
func (s Shift) HasLunch() bool { return s.LunchEnd > s.LunchStart }

// InLunch reports whether t falls inside the lunch break.
func (s Shift) InLunch(t float64) bool {
	return s.HasLunch() && t >= s.LunchStart && t < s.LunchEnd
}

// Status is the live state reported by the courier feed.
type Status string

const (
	StatusFree      Status = "free"
	StatusBusy      Status = "busy"
	StatusLunch     Status = "lunch"
	StatusOffDuty   Status = "off_duty"
	StatusReturning Status = "returning"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusFree, StatusBusy, StatusLunch, StatusOffDuty, StatusReturning:
		return true
	}
	return false
}

// Courier is a cursor through one working day. Location and Time advance as
// shipments are assigned; it owns no orders.
type Courier struct {
	ID    string
	Type  *Type
	Shift Shift

	Location    geo.LatLng
	HasLocation bool
	Time        float64
	Status      Status

	FirstStart float64
	LastEnd    float64
	OrderCount int
	Shipments  int
	Cost       float64
}

// New creates a courier of type t with the type's default shift, positioned
// at the shift start with no known location.
func New(id string, t *Type) *Courier {
	return &Courier{ID: id, Type: t, Shift: t.Shift, Time: t.Shift.Start, Status: StatusFree, FirstStart: -1}
}

// WorkSpan is the net time between the first shipment start and the last
// shipment end.
func (c *Courier) WorkSpan() float64 {
	if c.Shipments == 0 || c.FirstStart < 0 {
		return 0
	}
	return c.LastEnd - c.FirstStart
}

// Elapsed is the time since the shift started.
func (c *Courier) Elapsed() float64 { return c.Time - c.Shift.Start }

// Advance moves the courier to loc at time end after a shipment that started
// at start.
func (c *Courier) Advance(loc geo.LatLng, start, end float64, orders int, cost float64) {
	if c.Shipments == 0 {
		c.FirstStart = start
	}
	c.Shipments++
	c.OrderCount += orders
	c.Cost += cost
	c.LastEnd = end
	c.Time = end + c.Type.HandInTime
	c.Location = loc
	c.HasLocation = true
	c.Status = StatusFree
}

// PayrollCost is what the courier costs for the day: billed shift hours for
// hourly couriers, accumulated fares for taxis.
func (c *Courier) PayrollCost() float64 {
	if c.Type.IsTaxi() {
		return c.Cost
	}
	return c.Type.ShiftCost(c.WorkSpan())
}
