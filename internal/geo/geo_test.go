package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	moscow := LatLng{Lat: 55.7558, Lng: 37.6173}
	spb := LatLng{Lat: 59.9343, Lng: 30.3351}
	d := Distance(moscow, spb)
	require.InDelta(t, 634000, d, 5000)
	require.Zero(t, Distance(moscow, moscow))
}

func TestHaversineBetween(t *testing.T) {
	h := NewHaversine(Driving, 36, 1)
	a := LatLng{Lat: 55.75, Lng: 37.61}
	b := LatLng{Lat: 55.76, Lng: 37.61}
	p := h.Between(a, b)
	require.InDelta(t, 1112, p.Distance, 5)
	// 36 km/h is 10 m/s
	require.InDelta(t, 111, p.Duration, 1)
}

func TestNewHaversineDefaults(t *testing.T) {
	h := NewHaversine(Walking, 0, 0)
	require.Equal(t, 5.0, h.SpeedKph)
	require.Equal(t, 1.3, h.Detour)
}

func TestBuildMatrix(t *testing.T) {
	shop := LatLng{Lat: 55.75, Lng: 37.61}
	orders := []LatLng{{Lat: 55.76, Lng: 37.61}, {Lat: 55.75, Lng: 37.63}}
	m := Build(NewHaversine(Driving, 0, 0), shop, orders)

	require.Equal(t, 2, m.Orders())
	require.Equal(t, 2, m.Shop())
	require.True(t, m.Complete())
	require.NoError(t, m.Validate())
	require.Equal(t, m.At(0, 2), m.At(2, 0))
	require.Greater(t, m.At(m.Shop(), 0).Distance, 0)
}

func TestMatrixIncomplete(t *testing.T) {
	m := NewMatrix(1)
	m.Set(0, 1, Point{Distance: 10, Duration: 5})
	require.False(t, m.Complete())
	require.Error(t, m.Validate())
	m.Set(1, 0, Point{Distance: 10, Duration: 5})
	require.True(t, m.Complete())
}

func TestParseKind(t *testing.T) {
	require.Equal(t, Cycling, ParseKind("bicycle"))
	require.Equal(t, Walking, ParseKind("onfoot"))
	require.Equal(t, Driving, ParseKind("car"))
	require.Equal(t, "walking", Walking.String())
}
