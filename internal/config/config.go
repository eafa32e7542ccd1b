// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// TrackingConfig governs the facade and notification workers.
type TrackingConfig struct {
	Workers int `mapstructure:"workers"`
}

// ExtractorConfig configures the headless browser engine.
type ExtractorConfig struct {
	TrackingURL        string `mapstructure:"tracking_url"`
	ContractEndpoint   string `mapstructure:"contract_endpoint"`
	UserAgent          string `mapstructure:"user_agent"`
	MaxParallel        int    `mapstructure:"max_parallel"`
	SessionTimeoutSec  int    `mapstructure:"session_timeout_seconds"`
	InterceptWindowSec int    `mapstructure:"intercept_window_seconds"`
	ScreenshotsDir     string `mapstructure:"screenshots_dir"`
}

// GeocodingConfig configures the Nominatim provider and cache.
type GeocodingConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	QPS            float64 `mapstructure:"qps"`
	TTLDays        int     `mapstructure:"ttl_days"`
}

// ScheduleConfig configures the recurring-check timers.
type ScheduleConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// StorageConfig sets where the JSON documents live.
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAPTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("tracking.workers", 4)
	v.SetDefault("extractor.tracking_url", "https://isales.trcont.com/")
	v.SetDefault("extractor.contract_endpoint", "/api/track")
	v.SetDefault("extractor.max_parallel", 2)
	v.SetDefault("extractor.session_timeout_seconds", 90)
	v.SetDefault("extractor.intercept_window_seconds", 20)
	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "maptrack/0.1")
	v.SetDefault("geocoding.timeout_seconds", 10)
	v.SetDefault("geocoding.qps", 1.0)
	v.SetDefault("geocoding.ttl_days", 30)
	v.SetDefault("schedule.timezone", "Europe/Moscow")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Tracking.Workers <= 0 {
		return fmt.Errorf("tracking.workers must be > 0")
	}
	if c.Extractor.TrackingURL == "" {
		return fmt.Errorf("extractor.tracking_url must be set")
	}
	if c.Extractor.MaxParallel <= 0 {
		return fmt.Errorf("extractor.max_parallel must be > 0")
	}
	if c.Geocoding.TimeoutSeconds <= 0 {
		return fmt.Errorf("geocoding.timeout_seconds must be > 0")
	}
	if c.Geocoding.TTLDays <= 0 {
		return fmt.Errorf("geocoding.ttl_days must be > 0")
	}
	if c.Schedule.Timezone == "" {
		return fmt.Errorf("schedule.timezone must be set")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must be set")
	}
	return nil
}

// GeocodeTTL converts the configured TTL into a duration.
func (c Config) GeocodeTTL() time.Duration {
	return time.Duration(c.Geocoding.TTLDays) * 24 * time.Hour
}
