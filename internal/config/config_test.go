package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
	"courierdispatch/internal/opt"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	require.Equal(t, []string{"car", "bicycle"}, cfg.Couriers.Classes)

	tun, err := cfg.Tuning.ToTuning()
	require.NoError(t, err)
	require.Equal(t, opt.DefaultTuning(), tun)
	require.Equal(t, courier.DefaultDistanceAllowance, cfg.Tuning.DistanceAllowance)

	cat, err := cfg.Catalogue()
	require.NoError(t, err)
	car, ok := cat.ByVehicle(courier.Car)
	require.True(t, ok)
	_, ok = car.Model.Single(geo.Point{Distance: 55_000, Duration: 3600})
	require.False(t, ok, "55 km scaled by the allowance exceeds the 60 km limit")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  port: "9090"
tuning:
  variant: ex
  workers: 2
couriers:
  classes: [bicycle]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o644))
	t.Setenv("TUNING_COURIER_MIN_WORK_TIME", "120")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/dispatch?sslmode=disable")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, []string{"bicycle"}, cfg.Couriers.Classes)
	require.Equal(t, "postgres://u:p@db:5432/dispatch?sslmode=disable", cfg.Database.DSN)

	tun, err := cfg.Tuning.ToTuning()
	require.NoError(t, err)
	require.Equal(t, opt.VariantEx, tun.Variant)
	require.Equal(t, 2, tun.Workers)
	require.Equal(t, 120.0, tun.CourierMinWorkTime)
}

func TestLoadRejectsBadVariant(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("tuning:\n  variant: best\n"), 0o644))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestDSNFor(t *testing.T) {
	db := DatabaseConfig{DSN: "postgres://u:p@localhost:5432/main?sslmode=disable"}

	got, err := db.DSNFor("pg7", "shop_42")
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@pg7:5432/shop_42?sslmode=disable", got)

	got, err = db.DSNFor("", "")
	require.NoError(t, err)
	require.Equal(t, db.DSN, got)

	got, err = DatabaseConfig{}.DSNFor("pg7", "x")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLoadCourierTypes(t *testing.T) {
	p, err := LoadCourierTypes("")
	require.NoError(t, err)
	require.Equal(t, courier.DefaultProfiles(), p)

	path := filepath.Join(t.TempDir(), "courier_types.yaml")
	yml := `
courier_types:
  - id: 3
    name: Car
    vehicle: car
    method: hourly
    max_order_count: 6
    hourly_rate: 500
    return_to_shop: true
    work_start: "08:00"
    work_end: "20:00"
  - id: 14
    name: Yandex
    vehicle: yandex
    method: taxi
    max_order_count: 3
    first_pay: 199
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	p, err = LoadCourierTypes(path)
	require.NoError(t, err)
	require.Len(t, p, 2)
	require.Equal(t, 500.0, p[0].HourlyRate)
	require.True(t, p[0].ReturnToShop)
	require.Equal(t, "08:00", p[0].WorkStart)

	cfg := &Config{Couriers: CouriersConfig{File: path}, Tuning: TuningConfig{DistanceAllowance: 1}}
	cat, err := cfg.Catalogue()
	require.NoError(t, err)
	car, ok := cat.ByVehicle(courier.Car)
	require.True(t, ok)
	require.Equal(t, 480.0, car.Shift.Start)

	_, err = LoadCourierTypes(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestGeoProviders(t *testing.T) {
	ps := GeoConfig{DrivingKph: 40, Detour: 1}.Providers()
	require.Len(t, ps, 3)
	require.Equal(t, geo.Haversine{SpeedKph: 40, Detour: 1}, ps[geo.Driving])
	require.Equal(t, geo.Haversine{SpeedKph: 5, Detour: 1}, ps[geo.Walking])
}
