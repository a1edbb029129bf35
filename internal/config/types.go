package config

import "time"

// LogMode selects the zap preset used by the logger.
type LogMode string

const (
	LogDevelopment LogMode = "development"
	LogProduction  LogMode = "production"
)

// Config is the top-level portal configuration, corresponding to portal.yml.
type Config struct {
	Database DatabaseConfig `yaml:"database" koanf:"database"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Auth     AuthConfig     `yaml:"auth" koanf:"auth"`
	Cache    CacheConfig    `yaml:"cache" koanf:"cache"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" koanf:"metrics"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host" koanf:"host"`
	Port            int           `yaml:"port" koanf:"port"`
	BasePath        string        `yaml:"base_path" koanf:"base_path"` // mount point for the API routes, e.g. /api/chatbox
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
}

// AuthConfig controls how callers are identified and which role may author flows.
type AuthConfig struct {
	AdminRole    string        `yaml:"admin_role" koanf:"admin_role"`
	JWTSecret    string        `yaml:"jwt_secret" koanf:"jwt_secret"`
	RequireToken bool          `yaml:"require_token" koanf:"require_token"`
	TokenTTL     time.Duration `yaml:"token_ttl" koanf:"token_ttl"`
}

// CacheConfig configures the optional Redis step cache. An empty RedisAddr
// disables caching.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr" koanf:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" koanf:"redis_password"`
	RedisDB       int           `yaml:"redis_db" koanf:"redis_db"`
	Prefix        string        `yaml:"prefix" koanf:"prefix"`
	TTL           time.Duration `yaml:"ttl" koanf:"ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Mode LogMode `yaml:"mode" koanf:"mode"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Path    string `yaml:"path" koanf:"path"`
}
