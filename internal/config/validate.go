package config

import (
	"fmt"
)

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if c.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}

	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}

	if err := c.Heat2D.Validate(); err != nil {
		return fmt.Errorf("heat2d config: %w", err)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("log output is required")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", m.Port)
	}

	if m.Path == "" || m.Path[0] != '/' {
		return fmt.Errorf("metrics path must start with /")
	}

	return nil
}

func (p *PlaybackConfig) Validate() error {
	if p.Rate <= 0 {
		return fmt.Errorf("rate must be positive: %v", p.Rate)
	}

	if p.Rate > 240 {
		return fmt.Errorf("rate %v exceeds 240 fps", p.Rate)
	}

	if p.FrameQueue < 1 {
		return fmt.Errorf("frame_queue must be at least 1")
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.HTTPPort < 1 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", s.HTTPPort)
	}

	if s.RecordingsDir == "" {
		return fmt.Errorf("recordings_dir is required")
	}

	if s.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive")
	}

	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative")
	}

	if s.SessionIdle < 0 {
		return fmt.Errorf("session_idle cannot be negative")
	}

	if s.RequestRate < 0 {
		return fmt.Errorf("request_rate cannot be negative")
	}

	if s.RequestRate > 0 && s.RequestBurst < 1 {
		return fmt.Errorf("request_burst must be at least 1 when request_rate is set")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (r *RegistryConfig) Validate() error {
	if r.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}
	return nil
}

func (h *Heat2DConfig) Validate() error {
	if h.Size < 3 {
		return fmt.Errorf("size must be at least 3, got %d", h.Size)
	}

	if h.MaxTime <= 0 {
		return fmt.Errorf("max_time must be positive")
	}

	if h.HeatTime < 0 || h.HeatTime > h.MaxTime {
		return fmt.Errorf("heat_time must be within [0, max_time]")
	}

	if h.Interval < 0 {
		return fmt.Errorf("interval cannot be negative")
	}

	if h.Output == "" {
		return fmt.Errorf("output path is required")
	}

	return nil
}
