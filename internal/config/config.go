package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Registry RegistryConfig `mapstructure:"registry"`
	Heat2D   Heat2DConfig   `mapstructure:"heat2d"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type PlaybackConfig struct {
	Rate        float64 `mapstructure:"rate"`        // frames per second while playing
	FrameQueue  int     `mapstructure:"frame_queue"` // decoded frames held for the consumer
	StartPaused bool    `mapstructure:"start_paused"`
}

// Interval returns the time between ticks while playing.
func (p PlaybackConfig) Interval() time.Duration {
	if p.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / p.Rate)
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RecordingsDir   string        `mapstructure:"recordings_dir"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	SessionIdle     time.Duration `mapstructure:"session_idle"`  // idle sessions are closed after this, 0 keeps them
	RequestRate     float64       `mapstructure:"request_rate"`  // API requests per second, 0 disables limiting
	RequestBurst    int           `mapstructure:"request_burst"` // requests allowed above the rate at once
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type RegistryConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type Heat2DConfig struct {
	Size     int    `mapstructure:"size"`      // cells per side
	MaxTime  int    `mapstructure:"max_time"`  // simulation steps
	HeatTime int    `mapstructure:"heat_time"` // steps the heat source stays on
	Interval int    `mapstructure:"interval"`  // steps between recorded frames, 0 records only the final state
	Output   string `mapstructure:"output"`
}

// Load reads configuration from configPath, environment variables and
// defaults. An empty configPath loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix("SIMVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Playback defaults, 5 fps matches the producer's review cadence
	v.SetDefault("playback.rate", 5.0)
	v.SetDefault("playback.frame_queue", 4)
	v.SetDefault("playback.start_paused", false)

	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.recordings_dir", "./recordings")
	v.SetDefault("server.max_sessions", 64)
	v.SetDefault("server.session_idle", "10m")
	v.SetDefault("server.request_rate", 0)
	v.SetDefault("server.request_burst", 20)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)

	// Registry defaults
	v.SetDefault("registry.ttl", "24h")

	// Heat2D defaults
	v.SetDefault("heat2d.size", 100)
	v.SetDefault("heat2d.max_time", 3000)
	v.SetDefault("heat2d.heat_time", 2700)
	v.SetDefault("heat2d.interval", 100)
	v.SetDefault("heat2d.output", "heat2d.simviz")
}
