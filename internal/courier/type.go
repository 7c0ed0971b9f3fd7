package courier

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"courierdispatch/internal/geo"
)

// Vehicle identifies a courier class.
type Vehicle int

const (
	OnFoot Vehicle = iota + 1
	Bicycle
	Car
	YandexTaxi
	GettTaxi
)

var vehicleNames = map[Vehicle]string{
	OnFoot:     "onfoot",
	Bicycle:    "bicycle",
	Car:        "car",
	YandexTaxi: "yandex",
	GettTaxi:   "gett",
}

func (v Vehicle) String() string {
	if s, ok := vehicleNames[v]; ok {
		return s
	}
	return "vehicle(" + strconv.Itoa(int(v)) + ")"
}

// IsTaxi reports whether the vehicle is a metered taxi service.
func (v Vehicle) IsTaxi() bool { return v == YandexTaxi || v == GettTaxi }

// ParseVehicle maps a config name to a Vehicle.
func ParseVehicle(s string) (Vehicle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range vehicleNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown vehicle %q", s)
}

func (v Vehicle) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Vehicle) UnmarshalText(b []byte) error {
	p, err := ParseVehicle(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// VehicleSet is a bitset of vehicles an order may be delivered by. The zero
// value allows every vehicle.
type VehicleSet uint8

// NewVehicleSet builds a set from vehicles.
func NewVehicleSet(vs ...Vehicle) VehicleSet {
	var s VehicleSet
	for _, v := range vs {
		s |= 1 << uint(v)
	}
	return s
}

// Allows reports whether v may serve an order carrying this set.
func (s VehicleSet) Allows(v Vehicle) bool {
	return s == 0 || s&(1<<uint(v)) != 0
}

var ErrUnknownMethod = errors.New("unknown calculation method")

// Profile is the configured description of a courier type.
type Profile struct {
	ID             int     `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Vehicle        string  `yaml:"vehicle" json:"vehicle"`
	Method         string  `yaml:"method" json:"method"`
	Geo            string  `yaml:"geo" json:"geo"`
	SpeedKph       float64 `yaml:"speed_kph" json:"speedKph"`
	MaxWeight      float64 `yaml:"max_weight" json:"maxWeight"`
	MaxOrderWeight float64 `yaml:"max_order_weight" json:"maxOrderWeight"`
	MaxOrderCount  int     `yaml:"max_order_count" json:"maxOrderCount"`
	MaxDistanceKm  float64 `yaml:"max_distance_km" json:"maxDistanceKm"`

	Insurance  float64 `yaml:"insurance" json:"insurance"`
	HourlyRate float64 `yaml:"hourly_rate" json:"hourlyRate"`

	FirstPay         float64 `yaml:"first_pay" json:"firstPay"`
	SecondPay        float64 `yaml:"second_pay" json:"secondPay"`
	FirstDistanceKm  float64 `yaml:"first_distance_km" json:"firstDistanceKm"`
	AdditionalKmCost float64 `yaml:"additional_km_cost" json:"additionalKmCost"`

	// minutes
	StartDelay   float64 `yaml:"start_delay" json:"startDelay"`
	GetOrderTime float64 `yaml:"get_order_time" json:"getOrderTime"`
	HandoverTime float64 `yaml:"handover_time" json:"handoverTime"`
	HandInTime   float64 `yaml:"hand_in_time" json:"handInTime"`

	ReturnToShop bool `yaml:"return_to_shop" json:"returnToShop"`

	WorkStart  string `yaml:"work_start" json:"workStart"`
	WorkEnd    string `yaml:"work_end" json:"workEnd"`
	LunchStart string `yaml:"lunch_start" json:"lunchStart"`
	LunchEnd   string `yaml:"lunch_end" json:"lunchEnd"`
}

// Type is a resolved courier profile with its cost model bound.
type Type struct {
	Profile
	Vehicle Vehicle
	Kind    geo.Kind
	Shift   Shift
	Model   CostModel
}

// DefaultDistanceAllowance scales straight-line estimates when no allowance
// is configured.
const DefaultDistanceAllowance = 1.2

// NewType validates p and binds its cost model. allowance scales distances
// before they are compared with MaxDistanceKm.
func NewType(p Profile, allowance float64) (*Type, error) {
	v, err := ParseVehicle(p.Vehicle)
	if err != nil {
		return nil, fmt.Errorf("courier type %d: %w", p.ID, err)
	}
	if p.MaxOrderCount <= 0 {
		return nil, fmt.Errorf("courier type %d: max_order_count must be > 0", p.ID)
	}
	if allowance <= 0 {
		allowance = 1
	}
	lim := limits{maxCount: p.MaxOrderCount, maxDistance: p.MaxDistanceKm * 1000, allowance: allowance}
	tm := timing{startDelay: p.StartDelay, getOrder: p.GetOrderTime, handover: p.HandoverTime}

	var m CostModel
	switch strings.ToLower(strings.TrimSpace(p.Method)) {
	case "hourly", "":
		m = Hourly{limits: lim, timing: timing{getOrder: tm.getOrder, handover: tm.handover}, Rate: p.HourlyRate, Insurance: p.Insurance}
	case "taxi":
		m = Taxi{limits: lim, timing: tm, FirstPay: p.FirstPay, SecondPay: p.SecondPay, FirstDistanceKm: p.FirstDistanceKm, AdditionalKmCost: p.AdditionalKmCost}
	default:
		return nil, fmt.Errorf("courier type %d: %w: %q", p.ID, ErrUnknownMethod, p.Method)
	}
	if v.IsTaxi() != (m.Method() == MethodTaxi) {
		return nil, fmt.Errorf("courier type %d: vehicle %s does not match method %s", p.ID, v, m.Method())
	}

	shift, err := parseShift(p)
	if err != nil {
		return nil, fmt.Errorf("courier type %d: %w", p.ID, err)
	}
	kind := geo.ParseKind(p.Geo)
	if p.Geo == "" {
		kind = geo.ParseKind(v.String())
	}
	return &Type{Profile: p, Vehicle: v, Kind: kind, Shift: shift, Model: m}, nil
}

// IsTaxi reports whether the type is billed per trip.
func (t *Type) IsTaxi() bool { return t.Vehicle.IsTaxi() }

// ShiftCost is the hourly pay for a shift of the given length. Taxis have no
// shift pay.
func (t *Type) ShiftCost(minutes float64) float64 {
	if t.IsTaxi() || minutes <= 0 {
		return 0
	}
	return (1 + t.Insurance) * t.HourlyRate * float64(BilledHours(minutes))
}

func parseShift(p Profile) (Shift, error) {
	s := Shift{Start: 0, End: 24 * 60}
	var err error
	if p.WorkStart != "" {
		if s.Start, err = ParseClock(p.WorkStart); err != nil {
			return s, err
		}
	}
	if p.WorkEnd != "" {
		if s.End, err = ParseClock(p.WorkEnd); err != nil {
			return s, err
		}
	}
	if p.LunchStart != "" && p.LunchEnd != "" {
		if s.LunchStart, err = ParseClock(p.LunchStart); err != nil {
			return s, err
		}
		if s.LunchEnd, err = ParseClock(p.LunchEnd); err != nil {
			return s, err
		}
	}
	if s.End <= s.Start {
		return s, fmt.Errorf("work_end must be after work_start")
	}
	return s, nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return float64(h*60 + m), nil
}

// DefaultProfiles is the built-in catalogue used when no file is configured.
func DefaultProfiles() []Profile {
	return []Profile{
		{ID: 1, Name: "On foot", Vehicle: "onfoot", Method: "hourly", Geo: "walking", MaxWeight: 15, MaxOrderWeight: 10, MaxOrderCount: 4, MaxDistanceKm: 8, Insurance: 0.1, HourlyRate: 250, GetOrderTime: 5, HandoverTime: 5, HandInTime: 5, ReturnToShop: true, WorkStart: "09:00", WorkEnd: "21:00", LunchStart: "13:00", LunchEnd: "13:30"},
		{ID: 2, Name: "Bicycle", Vehicle: "bicycle", Method: "hourly", Geo: "cycling", MaxWeight: 25, MaxOrderWeight: 15, MaxOrderCount: 5, MaxDistanceKm: 20, Insurance: 0.1, HourlyRate: 300, GetOrderTime: 5, HandoverTime: 4, HandInTime: 5, ReturnToShop: true, WorkStart: "09:00", WorkEnd: "21:00", LunchStart: "13:00", LunchEnd: "13:30"},
		{ID: 3, Name: "Car", Vehicle: "car", Method: "hourly", Geo: "driving", MaxWeight: 200, MaxOrderWeight: 50, MaxOrderCount: 8, MaxDistanceKm: 60, Insurance: 0.1, HourlyRate: 450, GetOrderTime: 7, HandoverTime: 5, HandInTime: 5, ReturnToShop: true, WorkStart: "08:00", WorkEnd: "22:00", LunchStart: "14:00", LunchEnd: "14:30"},
		{ID: 14, Name: "Yandex taxi", Vehicle: "yandex", Method: "taxi", Geo: "driving", MaxWeight: 50, MaxOrderWeight: 30, MaxOrderCount: 3, MaxDistanceKm: 40, FirstPay: 199, SecondPay: 50, FirstDistanceKm: 5, AdditionalKmCost: 15, StartDelay: 15, GetOrderTime: 5, HandoverTime: 5},
		{ID: 12, Name: "Gett taxi", Vehicle: "gett", Method: "taxi", Geo: "driving", MaxWeight: 50, MaxOrderWeight: 30, MaxOrderCount: 3, MaxDistanceKm: 40, FirstPay: 220, SecondPay: 40, FirstDistanceKm: 4, AdditionalKmCost: 17, StartDelay: 10, GetOrderTime: 5, HandoverTime: 5},
	}
}
