package config

import "time"

// Database type constants
const (
	DatabaseTypePostgres = "postgres"
	DatabaseTypeMySQL    = "mysql"
)

// Rate limiter backends
const (
	RateLimitTypeLocal = "local"
	RateLimitTypeRedis = "redis"
)

// Config is the root configuration of the tutorhub service.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Search        SearchConfig        `mapstructure:"search"`
	Rating        RatingConfig        `mapstructure:"rating"`
	Auth          AuthConfig          `mapstructure:"auth"`
	CORS          CORSConfig          `mapstructure:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	I18n          I18nConfig          `mapstructure:"i18n"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the public API server.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the relational store backing search and the ledger.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MigrateTimeout  time.Duration `mapstructure:"migrate_timeout"`
}

// SearchConfig bounds pagination of every search endpoint.
type SearchConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// RatingConfig is the closed score range accepted by the ledger.
type RatingConfig struct {
	MinScore int `mapstructure:"min_score"`
	MaxScore int `mapstructure:"max_score"`
}

// AuthConfig configures HS256 token validation.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	RoleClaim string `mapstructure:"role_claim"`
}

// CORSConfig configures the gin CORS middleware.
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	AllowMethods     []string      `mapstructure:"allow_methods"`
	AllowHeaders     []string      `mapstructure:"allow_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// RateLimitConfig configures request throttling.
type RateLimitConfig struct {
	Enabled           bool                 `mapstructure:"enabled"`
	Type              string               `mapstructure:"type"`
	RequestsPerSecond int                  `mapstructure:"requests_per_second"`
	Burst             int                  `mapstructure:"burst"`
	Redis             RateLimitRedisConfig `mapstructure:"redis"`
}

// RateLimitRedisConfig configures the distributed limiter.
type RateLimitRedisConfig struct {
	URL              string        `mapstructure:"url"`
	Prefix           string        `mapstructure:"prefix"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	Window           time.Duration `mapstructure:"window"`
	// BreakerFailures consecutive Redis errors open the breaker for BreakerCooldown.
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// I18nConfig configures message localization.
type I18nConfig struct {
	DefaultLocale    string   `mapstructure:"default_locale"`
	SupportedLocales []string `mapstructure:"supported_locales"`
	FallbackMode     string   `mapstructure:"fallback_mode"`
	CatalogPath      string   `mapstructure:"catalog_path"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	MetricsPath       string  `mapstructure:"metrics_path"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "tutorhub",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Type:            DatabaseTypePostgres,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    10 * time.Second,
			MigrateTimeout:  60 * time.Second,
		},
		Search: SearchConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Rating: RatingConfig{
			MinScore: 1,
			MaxScore: 5,
		},
		Auth: AuthConfig{
			RoleClaim: "role",
		},
		CORS: CORSConfig{
			Enabled:      true,
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "X-Request-ID"},
			MaxAge:       12 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			Type:              RateLimitTypeLocal,
			RequestsPerSecond: 50,
			Burst:             100,
			Redis: RateLimitRedisConfig{
				Prefix:           "tutorhub:ratelimit",
				MaxConns:         10,
				OperationTimeout: 200 * time.Millisecond,
				Window:           time.Second,
				BreakerFailures:  5,
				BreakerCooldown:  10 * time.Second,
			},
		},
		I18n: I18nConfig{
			DefaultLocale:    "es",
			SupportedLocales: []string{"es", "en"},
			FallbackMode:     "base",
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			MetricsEnabled:    true,
			MetricsPath:       "/metrics",
			TracingEnabled:    false,
			TracingSampleRate: 0.1,
		},
	}
}
