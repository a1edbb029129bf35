package config

import "time"

const (
	DefaultConfigFile     = "portal.yml"
	DefaultDatabasePath   = "data/portal.db"
	DefaultPort           = 8080
	DefaultAdminRole      = "1"
	DefaultRequestTimeout = 60 * time.Second
	DefaultTokenTTL       = 24 * time.Hour
	DefaultCachePrefix    = "portal:step:"
	DefaultCacheTTL       = 10 * time.Minute
	DefaultMetricsPath    = "/metrics"

	// MaxTCPPort bounds server.port.
	MaxTCPPort = 65535
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		Server: ServerConfig{
			Port:            DefaultPort,
			AllowAllOrigins: true,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Auth: AuthConfig{
			AdminRole: DefaultAdminRole,
			TokenTTL:  DefaultTokenTTL,
		},
		Cache: CacheConfig{
			Prefix: DefaultCachePrefix,
			TTL:    DefaultCacheTTL,
		},
		Log: LogConfig{
			Mode: LogDevelopment,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}
