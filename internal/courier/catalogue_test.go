package courier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogue(t *testing.T) {
	c, err := NewCatalogue(DefaultProfiles(), 1.2)
	require.NoError(t, err)
	require.Len(t, c.All(), 5)
	require.Equal(t, 1, c.All()[0].ID)

	y, ok := c.ByID(14)
	require.True(t, ok)
	require.Equal(t, YandexTaxi, y.Vehicle)

	car, ok := c.ByVehicle(Car)
	require.True(t, ok)
	require.Equal(t, 3, car.ID)

	got, err := c.Resolve([]string{"car", "Bicycle"})
	require.NoError(t, err)
	require.Equal(t, []Vehicle{Car, Bicycle}, []Vehicle{got[0].Vehicle, got[1].Vehicle})

	_, err = c.Resolve([]string{"boat"})
	require.Error(t, err)
}

func TestCatalogueRejectsDuplicates(t *testing.T) {
	p := DefaultProfiles()
	p[1].ID = p[0].ID
	_, err := NewCatalogue(p, 1)
	require.Error(t, err)
}

func TestVehicleText(t *testing.T) {
	b, err := Car.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "car", string(b))

	var v Vehicle
	require.NoError(t, v.UnmarshalText([]byte("gett")))
	require.Equal(t, GettTaxi, v)
	require.Error(t, v.UnmarshalText([]byte("rocket")))
}
