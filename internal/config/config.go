package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"supmap-navigation/internal/navigation"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

type CacheBackend string

const (
	CacheSQLite CacheBackend = "sqlite"
	CacheRedis  CacheBackend = "redis"
)

type Config struct {
	APIServerHost string `env:"API_SERVER_HOST"`
	APIServerPort string `env:"API_SERVER_PORT" envDefault:"8080" validate:"required,numeric"`
	Env           Env    `env:"ENV" envDefault:"prod"`

	DirectionsBaseURL     string        `env:"DIRECTIONS_BASE_URL" envDefault:"https://router.project-osrm.org/route/v1" validate:"required,url"`
	DirectionsAccessToken string        `env:"DIRECTIONS_ACCESS_TOKEN"`
	DirectionsTimeout     time.Duration `env:"DIRECTIONS_TIMEOUT" envDefault:"7s" validate:"gt=0"`

	CacheBackend       CacheBackend  `env:"CACHE_BACKEND" envDefault:"sqlite" validate:"oneof=sqlite redis"`
	CacheSQLitePath    string        `env:"CACHE_SQLITE_PATH" envDefault:"routes.db"`
	CacheRetention     time.Duration `env:"CACHE_RETENTION" envDefault:"168h" validate:"gt=0"`
	CachePurgeInterval time.Duration `env:"CACHE_PURGE_INTERVAL" envDefault:"1h"`

	RedisHost          string `env:"REDIS_HOST"`
	RedisPort          string `env:"REDIS_PORT" envDefault:"6379"`
	RedisEventsChannel string `env:"REDIS_EVENTS_CHANNEL" envDefault:"navigation-events"`

	OffRouteThreshold     float64       `env:"OFF_ROUTE_THRESHOLD_METERS" envDefault:"50" validate:"gt=0"`
	OffRouteCheckInterval time.Duration `env:"OFF_ROUTE_CHECK_INTERVAL" envDefault:"10s" validate:"gte=0"`
	StepAdvanceThreshold  float64       `env:"STEP_ADVANCE_THRESHOLD_METERS" envDefault:"30" validate:"gt=0"`
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("invalid env variable (must be 'prod' or 'dev')")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.CacheBackend == CacheSQLite && cfg.CacheSQLitePath == "" {
		return nil, errors.New("invalid config: CACHE_SQLITE_PATH is required with the sqlite cache backend")
	}
	if cfg.CacheBackend == CacheRedis && !cfg.RedisEnabled() {
		return nil, errors.New("invalid config: REDIS_HOST is required with the redis cache backend")
	}
	return &cfg, nil
}

// RedisEnabled reports whether a Redis server is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// Engine returns the navigation thresholds with the default announcement
// distances.
func (c *Config) Engine() navigation.Config {
	engine := navigation.DefaultConfig()
	engine.OffRouteThreshold = c.OffRouteThreshold
	engine.OffRouteCheckInterval = c.OffRouteCheckInterval
	engine.StepAdvanceThreshold = c.StepAdvanceThreshold
	return engine
}
