package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes every environment override (TUTORHUB_HTTP_PORT, ...).
const DefaultEnvPrefix = "TUTORHUB"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader loads configuration with precedence flags > ENV > file > defaults.
// An optional dotenv file is applied to the process environment first,
// without overriding variables that are already set.
type ViperLoader struct {
	configFile string
	envFile    string
	envPrefix  string
	flags      *pflag.FlagSet
}

// NewViperLoader creates a ViperLoader. configFile may be empty.
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	if strings.TrimSpace(envPrefix) == "" {
		envPrefix = DefaultEnvPrefix
	}
	return &ViperLoader{configFile: configFile, envPrefix: envPrefix}
}

// WithEnvFile sets the dotenv file loaded before environment bindings are read.
func (l *ViperLoader) WithEnvFile(path string) *ViperLoader {
	l.envFile = strings.TrimSpace(path)
	return l
}

// WithFlags binds the command-line flags listed in flagBindings. Only flags the
// user actually set override other sources.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// Load builds the configuration and validates it.
func (l *ViperLoader) Load() (*Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Settings returns the effective settings as a nested map keyed like the config
// file. Values listed in secretKeys are masked.
func (l *ViperLoader) Settings() (map[string]any, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}
	for _, key := range secretKeys {
		if v.GetString(key) != "" {
			v.Set(key, "***")
		}
	}
	return v.AllSettings(), nil
}

var secretKeys = []string{"auth.jwt_secret", "database.url", "ratelimit.redis.url"}

func (l *ViperLoader) newViper() (*viper.Viper, error) {
	if err := l.loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	if err := l.bindEnvVars(v); err != nil {
		return nil, err
	}
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (l *ViperLoader) loadEnvFile() error {
	if l.envFile == "" {
		return nil
	}
	if err := godotenv.Load(l.envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", l.envFile, err)
	}
	return nil
}

var envBindings = map[string]string{
	"service.name":        "SERVICE_NAME",
	"service.environment": "ENVIRONMENT",

	"http.port":             "HTTP_PORT",
	"http.read_timeout":     "HTTP_READ_TIMEOUT",
	"http.write_timeout":    "HTTP_WRITE_TIMEOUT",
	"http.idle_timeout":     "HTTP_IDLE_TIMEOUT",
	"http.shutdown_timeout": "HTTP_SHUTDOWN_TIMEOUT",

	"database.type":               "DB_TYPE",
	"database.url":                "DB_URL",
	"database.max_open_conns":     "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":     "DB_MAX_IDLE_CONNS",
	"database.conn_max_lifetime":  "DB_CONN_MAX_LIFETIME",
	"database.conn_max_idle_time": "DB_CONN_MAX_IDLE_TIME",
	"database.query_timeout":      "DB_QUERY_TIMEOUT",
	"database.migrate_timeout":    "DB_MIGRATE_TIMEOUT",

	"search.default_page_size": "SEARCH_DEFAULT_PAGE_SIZE",
	"search.max_page_size":     "SEARCH_MAX_PAGE_SIZE",

	"rating.min_score": "RATING_MIN_SCORE",
	"rating.max_score": "RATING_MAX_SCORE",

	"auth.jwt_secret": "AUTH_JWT_SECRET",
	"auth.issuer":     "AUTH_ISSUER",
	"auth.role_claim": "AUTH_ROLE_CLAIM",

	"cors.enabled":           "CORS_ENABLED",
	"cors.allow_origins":     "CORS_ALLOW_ORIGINS",
	"cors.allow_methods":     "CORS_ALLOW_METHODS",
	"cors.allow_headers":     "CORS_ALLOW_HEADERS",
	"cors.allow_credentials": "CORS_ALLOW_CREDENTIALS",
	"cors.max_age":           "CORS_MAX_AGE",

	"ratelimit.enabled":                 "RATELIMIT_ENABLED",
	"ratelimit.type":                    "RATELIMIT_TYPE",
	"ratelimit.requests_per_second":     "RATELIMIT_REQUESTS_PER_SECOND",
	"ratelimit.burst":                   "RATELIMIT_BURST",
	"ratelimit.redis.url":               "RATELIMIT_REDIS_URL",
	"ratelimit.redis.prefix":            "RATELIMIT_REDIS_PREFIX",
	"ratelimit.redis.max_conns":         "RATELIMIT_REDIS_MAX_CONNS",
	"ratelimit.redis.operation_timeout": "RATELIMIT_REDIS_OPERATION_TIMEOUT",
	"ratelimit.redis.window":            "RATELIMIT_REDIS_WINDOW",
	"ratelimit.redis.breaker_failures":  "RATELIMIT_REDIS_BREAKER_FAILURES",
	"ratelimit.redis.breaker_cooldown":  "RATELIMIT_REDIS_BREAKER_COOLDOWN",

	"i18n.default_locale":    "I18N_DEFAULT_LOCALE",
	"i18n.supported_locales": "I18N_SUPPORTED_LOCALES",
	"i18n.fallback_mode":     "I18N_FALLBACK_MODE",
	"i18n.catalog_path":      "I18N_CATALOG_PATH",

	"observability.log_level":           "LOG_LEVEL",
	"observability.log_format":          "LOG_FORMAT",
	"observability.metrics_enabled":     "METRICS_ENABLED",
	"observability.metrics_path":        "METRICS_PATH",
	"observability.tracing_enabled":     "TRACING_ENABLED",
	"observability.tracing_endpoint":    "TRACING_ENDPOINT",
	"observability.tracing_sample_rate": "TRACING_SAMPLE_RATE",
}

var flagBindings = map[string]string{
	"http.port":                  "port",
	"database.type":              "database-type",
	"database.url":               "database-url",
	"observability.log_level":    "log-level",
	"observability.log_format":   "log-format",
	"i18n.catalog_path":          "i18n-catalog-path",
	"observability.metrics_path": "metrics-path",
}

// FlagNames returns the flag names bound by WithFlags, sorted.
func FlagNames() []string {
	names := make([]string, 0, len(flagBindings))
	for _, name := range flagBindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for key, name := range flagBindings {
		flag := l.flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) bindEnvVars(v *viper.Viper) error {
	for key, suffix := range envBindings {
		if err := v.BindEnv(key, l.prefixedEnv(suffix)); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	return l.envPrefix + "_" + suffix
}

func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)

	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", cfg.Database.ConnMaxIdleTime)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)
	v.SetDefault("database.migrate_timeout", cfg.Database.MigrateTimeout)

	v.SetDefault("search.default_page_size", cfg.Search.DefaultPageSize)
	v.SetDefault("search.max_page_size", cfg.Search.MaxPageSize)

	v.SetDefault("rating.min_score", cfg.Rating.MinScore)
	v.SetDefault("rating.max_score", cfg.Rating.MaxScore)

	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("auth.role_claim", cfg.Auth.RoleClaim)

	v.SetDefault("cors.enabled", cfg.CORS.Enabled)
	v.SetDefault("cors.allow_origins", cfg.CORS.AllowOrigins)
	v.SetDefault("cors.allow_methods", cfg.CORS.AllowMethods)
	v.SetDefault("cors.allow_headers", cfg.CORS.AllowHeaders)
	v.SetDefault("cors.allow_credentials", cfg.CORS.AllowCredentials)
	v.SetDefault("cors.max_age", cfg.CORS.MaxAge)

	v.SetDefault("ratelimit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("ratelimit.type", cfg.RateLimit.Type)
	v.SetDefault("ratelimit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("ratelimit.burst", cfg.RateLimit.Burst)
	v.SetDefault("ratelimit.redis.url", cfg.RateLimit.Redis.URL)
	v.SetDefault("ratelimit.redis.prefix", cfg.RateLimit.Redis.Prefix)
	v.SetDefault("ratelimit.redis.max_conns", cfg.RateLimit.Redis.MaxConns)
	v.SetDefault("ratelimit.redis.operation_timeout", cfg.RateLimit.Redis.OperationTimeout)
	v.SetDefault("ratelimit.redis.window", cfg.RateLimit.Redis.Window)
	v.SetDefault("ratelimit.redis.breaker_failures", cfg.RateLimit.Redis.BreakerFailures)
	v.SetDefault("ratelimit.redis.breaker_cooldown", cfg.RateLimit.Redis.BreakerCooldown)

	v.SetDefault("i18n.default_locale", cfg.I18n.DefaultLocale)
	v.SetDefault("i18n.supported_locales", cfg.I18n.SupportedLocales)
	v.SetDefault("i18n.fallback_mode", cfg.I18n.FallbackMode)
	v.SetDefault("i18n.catalog_path", cfg.I18n.CatalogPath)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.metrics_path", cfg.Observability.MetricsPath)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}

// Validate checks cross-field constraints and collects every violation.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", cfg.HTTP.Port))
	}

	switch strings.ToLower(cfg.Database.Type) {
	case DatabaseTypePostgres, DatabaseTypeMySQL:
		cfg.Database.Type = strings.ToLower(cfg.Database.Type)
	default:
		errs = append(errs, fmt.Errorf("database.type must be one of [%s %s], got %q", DatabaseTypePostgres, DatabaseTypeMySQL, cfg.Database.Type))
	}
	if cfg.Database.MaxOpenConns < 0 || cfg.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database connection pool sizes cannot be negative"))
	}

	if cfg.Search.MaxPageSize < 1 {
		errs = append(errs, fmt.Errorf("search.max_page_size must be at least 1, got %d", cfg.Search.MaxPageSize))
	}
	if cfg.Search.DefaultPageSize < 1 || cfg.Search.DefaultPageSize > cfg.Search.MaxPageSize {
		errs = append(errs, fmt.Errorf("search.default_page_size must be within [1, %d], got %d", cfg.Search.MaxPageSize, cfg.Search.DefaultPageSize))
	}

	if cfg.Rating.MinScore < 0 || cfg.Rating.MinScore > cfg.Rating.MaxScore {
		errs = append(errs, fmt.Errorf("rating score range [%d, %d] is invalid", cfg.Rating.MinScore, cfg.Rating.MaxScore))
	}

	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Type {
		case RateLimitTypeLocal:
		case RateLimitTypeRedis:
			if cfg.RateLimit.Redis.URL == "" {
				errs = append(errs, errors.New("ratelimit.redis.url is required when ratelimit.type is redis"))
			}
		default:
			errs = append(errs, fmt.Errorf("ratelimit.type must be one of [%s %s], got %q", RateLimitTypeLocal, RateLimitTypeRedis, cfg.RateLimit.Type))
		}
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, errors.New("ratelimit.requests_per_second must be greater than zero"))
		}
	}

	if cfg.Observability.TracingEnabled {
		if cfg.Observability.TracingEndpoint == "" {
			errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
		}
		if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
			errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
		}
	}

	cfg.CORS.AllowOrigins = normalizeStringSlice(cfg.CORS.AllowOrigins)
	cfg.I18n.SupportedLocales = normalizeStringSlice(cfg.I18n.SupportedLocales)

	return errors.Join(errs...)
}

// ValidateServing checks the settings only the HTTP server needs.
func (cfg *Config) ValidateServing() error {
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return errors.New("database.url is required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required")
	}
	return nil
}

// LookupEnvFile returns the dotenv path from TUTORHUB_ENV_FILE, if set.
func LookupEnvFile() string {
	return strings.TrimSpace(os.Getenv(DefaultEnvPrefix + "_ENV_FILE"))
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
