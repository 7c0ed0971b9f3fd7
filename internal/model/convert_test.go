package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/opt"
)

func TestClock(t *testing.T) {
	c, err := ParseDay("2026-10-16", time.UTC)
	require.NoError(t, err)

	m, err := c.ParseTime("2026-10-16T10:30:00Z")
	require.NoError(t, err)
	require.Equal(t, 630.0, m)

	m, err = c.ParseTime("09:15")
	require.NoError(t, err)
	require.Equal(t, 555.0, m)

	require.Equal(t, "2026-10-16T10:30:30Z", c.Format(630.5))

	_, err = c.ParseTime("soon")
	require.ErrorIs(t, err, ErrBadTime)
	_, err = ParseDay("16.10.2026", nil)
	require.ErrorIs(t, err, ErrBadTime)

	require.Equal(t, c, DayOf(time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)))
}

func TestToShop(t *testing.T) {
	c, _ := ParseDay("2026-10-16", time.UTC)
	in := ShopIn{
		ID: "s1", Location: GeoPoint{Lat: 55.75, Lng: 37.61}, WorkStart: "09:00", WorkEnd: "21:00",
		Orders: []OrderIn{
			{ID: "a", Weight: 2, Window: TimeWindow{Start: "10:00", End: "11:00"}, Vehicles: []string{"car", "bicycle"}},
			{ID: "b", Assembled: "2026-10-16T09:30:00Z", Window: TimeWindow{Start: "2026-10-16T10:30:00Z", End: "2026-10-16T10:45:00Z"}},
		},
	}
	sh, err := in.ToShop(c, nil)
	require.NoError(t, err)
	require.Equal(t, 540.0, sh.WorkStart)
	require.Len(t, sh.Orders, 2)
	require.Equal(t, 1, sh.Orders[1].Number)
	require.Equal(t, 570.0, sh.Orders[1].Assembled)
	require.True(t, sh.Orders[0].Vehicles.Allows(courier.Bicycle))
	require.False(t, sh.Orders[0].Vehicles.Allows(courier.OnFoot))
	require.Equal(t, "s1", sh.Orders[0].ShopID)

	bad := in
	bad.Orders = []OrderIn{{ID: "x", Window: TimeWindow{Start: "11:00", End: "10:00"}}}
	_, err = bad.ToShop(c, nil)
	require.Error(t, err)

	bad.Orders = []OrderIn{in.Orders[0], in.Orders[0]}
	_, err = bad.ToShop(c, nil)
	require.Error(t, err)

	_, err = ShopIn{}.ToShop(c, nil)
	require.Error(t, err)
}

func TestPlanFrom(t *testing.T) {
	c, _ := ParseDay("2026-10-16", time.UTC)
	car, err := courier.NewType(courier.DefaultProfiles()[2], 1)
	require.NoError(t, err)
	cr := courier.New("car-1", car)
	shop := &opt.Shop{ID: "s1"}
	o := &opt.Order{ID: "a"}
	s := &opt.Shipment{ID: "sh1", Shop: shop, Type: car, Courier: cr, Orders: []*opt.Order{o}, NodeDeliveryTime: []float64{10}, StartDelivery: 600, ExecutionTime: 25, Cost: 123.456}
	cr.Advance(shop.Location, 600, 625, 1, s.Cost)

	p := PlanFrom(&opt.DayPlan{ID: "p1", PlanDate: "2026-10-16", Variant: opt.VariantEx, IsCreated: true,
		Shipments: []*opt.Shipment{s}, Couriers: []*courier.Courier{cr}, Unshipped: []*opt.Order{{ID: "z"}}}, c, time.Now())

	require.Equal(t, "ex", p.Variant)
	require.Equal(t, []string{"z"}, p.Unshipped)
	require.Len(t, p.Shipments, 1)
	out := p.Shipments[0]
	require.Equal(t, "car-1", out.CourierID)
	require.Equal(t, "car", out.Vehicle)
	require.Equal(t, "2026-10-16T10:00:00Z", out.Start)
	require.Equal(t, "2026-10-16T10:25:00Z", out.End)
	require.Equal(t, []string{"2026-10-16T10:10:00Z"}, out.Arrivals)
	require.Equal(t, "123.46", out.Cost.String())
	require.Equal(t, 1, p.Couriers[0].Shipments)
	require.Equal(t, "2026-10-16T10:00:00Z", p.Couriers[0].FirstStart)
	require.Equal(t, "p1", p.Summary().ID)
}

func TestParseCalcTime(t *testing.T) {
	got, err := ParseCalcTime("2026-10-16 10:00:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), got)

	got, err = ParseCalcTime("2026-10-16T10:00:00+03:00")
	require.NoError(t, err)
	require.Equal(t, 600.0, DayOf(got).Minutes(got))

	_, err = ParseCalcTime("tomorrow")
	require.ErrorIs(t, err, ErrBadTime)
}
