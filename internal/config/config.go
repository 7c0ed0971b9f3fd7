package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/geo"
	"courierdispatch/internal/logger"
	"courierdispatch/internal/opt"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rate     RateConfig     `mapstructure:"rate"`
	Tuning   TuningConfig   `mapstructure:"tuning"`
	Geo      GeoConfig      `mapstructure:"geo"`
	Couriers CouriersConfig `mapstructure:"couriers"`
	Planner  PlannerConfig  `mapstructure:"planner"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Name string `mapstructure:"name"`
	// empty DSN selects the in-memory store
	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

// DSNFor returns the DSN with its host and database name replaced when
// given. A host without a port keeps the DSN's port.
func (c DatabaseConfig) DSNFor(server, name string) (string, error) {
	if c.DSN == "" {
		return "", nil
	}
	u, err := url.Parse(c.DSN)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	if server != "" {
		if port := u.Port(); port != "" && !strings.Contains(server, ":") {
			server = server + ":" + port
		}
		u.Host = server
	}
	if name == "" {
		name = c.Name
	}
	if name != "" {
		u.Path = "/" + name
	}
	return u.String(), nil
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type RateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type TuningConfig struct {
	DistanceAllowance           float64 `mapstructure:"distance_allowance"`
	MaxDistanceToAvailableShop  float64 `mapstructure:"max_distance_to_available_shop"`
	MinAvailableShopCount       int     `mapstructure:"min_available_shop_count"`
	CourierWorkTimeLimit        float64 `mapstructure:"courier_work_time_limit"`
	CourierMinWorkTime          float64 `mapstructure:"courier_min_work_time"`
	MaxOrdersForOptimalSolution int     `mapstructure:"max_orders_for_optimal_solution"`
	MaxOrdersForCoverSolution   int     `mapstructure:"max_orders_for_cover_solution"`
	MaxPathLength               int     `mapstructure:"max_path_length"`
	Workers                     int     `mapstructure:"workers"`
	MaxCouriersPerClass         int     `mapstructure:"max_couriers_per_class"`
	Variant                     string  `mapstructure:"variant"`
}

func (c TuningConfig) ToTuning() (opt.Tuning, error) {
	v, err := opt.ParseVariant(c.Variant)
	if err != nil {
		return opt.Tuning{}, err
	}
	return opt.Tuning{
		MaxDistanceToAvailableShop:  c.MaxDistanceToAvailableShop,
		MinAvailableShopCount:       c.MinAvailableShopCount,
		CourierWorkTimeLimit:        c.CourierWorkTimeLimit,
		CourierMinWorkTime:          c.CourierMinWorkTime,
		MaxOrdersForOptimalSolution: c.MaxOrdersForOptimalSolution,
		MaxOrdersForCoverSolution:   c.MaxOrdersForCoverSolution,
		MaxPathLength:               c.MaxPathLength,
		Workers:                     c.Workers,
		MaxCouriersPerClass:         c.MaxCouriersPerClass,
		Variant:                     v,
	}, nil
}

type GeoConfig struct {
	DrivingKph float64 `mapstructure:"driving_kph"`
	CyclingKph float64 `mapstructure:"cycling_kph"`
	WalkingKph float64 `mapstructure:"walking_kph"`
	Detour     float64 `mapstructure:"detour"`
}

// Providers returns a haversine estimator per travel kind.
func (c GeoConfig) Providers() map[geo.Kind]geo.Provider {
	return map[geo.Kind]geo.Provider{
		geo.Driving: geo.NewHaversine(geo.Driving, c.DrivingKph, c.Detour),
		geo.Cycling: geo.NewHaversine(geo.Cycling, c.CyclingKph, c.Detour),
		geo.Walking: geo.NewHaversine(geo.Walking, c.WalkingKph, c.Detour),
	}
}

type CouriersConfig struct {
	// File is the courier type catalogue; empty uses the built-in one.
	File string `mapstructure:"file"`
	// Classes are the hourly vehicles opened by the day planner, in order.
	Classes []string `mapstructure:"classes"`
	Taxis   []string `mapstructure:"taxis"`
}

type PlannerConfig struct {
	Binary         string `mapstructure:"binary"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "dispatch.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "dispatch")
	v.SetDefault("rate.rps", 50)
	v.SetDefault("rate.burst", 100)

	def := opt.DefaultTuning()
	v.SetDefault("tuning.distance_allowance", courier.DefaultDistanceAllowance)
	v.SetDefault("tuning.max_distance_to_available_shop", def.MaxDistanceToAvailableShop)
	v.SetDefault("tuning.min_available_shop_count", def.MinAvailableShopCount)
	v.SetDefault("tuning.courier_work_time_limit", def.CourierWorkTimeLimit)
	v.SetDefault("tuning.courier_min_work_time", def.CourierMinWorkTime)
	v.SetDefault("tuning.max_orders_for_optimal_solution", def.MaxOrdersForOptimalSolution)
	v.SetDefault("tuning.max_orders_for_cover_solution", def.MaxOrdersForCoverSolution)
	v.SetDefault("tuning.max_path_length", def.MaxPathLength)
	v.SetDefault("tuning.workers", def.Workers)
	v.SetDefault("tuning.max_couriers_per_class", def.MaxCouriersPerClass)
	v.SetDefault("tuning.variant", def.Variant.String())

	v.SetDefault("geo.driving_kph", geo.DefaultSpeeds[geo.Driving])
	v.SetDefault("geo.cycling_kph", geo.DefaultSpeeds[geo.Cycling])
	v.SetDefault("geo.walking_kph", geo.DefaultSpeeds[geo.Walking])
	v.SetDefault("geo.detour", 1.3)

	v.SetDefault("couriers.file", "")
	v.SetDefault("couriers.classes", []string{"car", "bicycle"})
	v.SetDefault("couriers.taxis", []string{"yandex", "gett"})

	v.SetDefault("planner.binary", "planner")
	v.SetDefault("planner.timeout_seconds", 600)
}

// Load reads config.yaml from paths (default ".", "./etc", "../"), .env,
// and the environment. A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnw("dotenv_load_failed", "error", err)
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./etc", "../"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL")

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warnw("config_file_read_failed", "error", err, "fallback", "env_or_defaults")
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.Tuning.ToTuning(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	return &cfg, nil
}

type catalogueFile struct {
	Types []courier.Profile `yaml:"courier_types"`
}

// LoadCourierTypes reads the courier type catalogue. An empty path returns
// the built-in profiles.
func LoadCourierTypes(path string) ([]courier.Profile, error) {
	if strings.TrimSpace(path) == "" {
		return courier.DefaultProfiles(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read courier types: %w", err)
	}
	var f catalogueFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse courier types %s: %w", path, err)
	}
	if len(f.Types) == 0 {
		return nil, fmt.Errorf("courier types %s: empty catalogue", path)
	}
	return f.Types, nil
}

// Catalogue loads the courier types and binds them with the configured
// distance allowance.
func (c *Config) Catalogue() (*courier.Catalogue, error) {
	profiles, err := LoadCourierTypes(c.Couriers.File)
	if err != nil {
		return nil, err
	}
	return courier.NewCatalogue(profiles, c.Tuning.DistanceAllowance)
}
