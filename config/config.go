package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonwraymond/fragcache/auth"
	"github.com/jonwraymond/fragcache/cache"
	"github.com/jonwraymond/fragcache/observe"
	"github.com/jonwraymond/fragcache/resilience"
	"github.com/jonwraymond/fragcache/secret"
	"github.com/jonwraymond/fragcache/ttl"
)

// ErrInvalid indicates a setting failed validation.
var ErrInvalid = errors.New("config: invalid")

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Cache backends.
const (
	BackendMemory    = "memory"
	BackendRistretto = "ristretto"
	BackendRedis     = "redis"
)

// Config holds every setting. Field tags name the environment variables.
type Config struct {
	ServiceName string `mapstructure:"SERVICE_NAME"`
	ListenAddr  string `mapstructure:"LISTEN_ADDR"`
	SiteID      string `mapstructure:"SITE_ID"`

	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32  `mapstructure:"DB_MAX_CONNS"`
	DBSkipMigrations bool   `mapstructure:"DB_SKIP_MIGRATIONS"`

	CacheBackend     string `mapstructure:"CACHE_BACKEND"`
	CacheName        string `mapstructure:"CACHE_NAME"`
	RistrettoMaxCost int64  `mapstructure:"RISTRETTO_MAX_COST"` // bytes
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int    `mapstructure:"REDIS_DB"`
	RedisPrefix      string `mapstructure:"REDIS_PREFIX"`

	DefaultTTL string `mapstructure:"FRAGMENT_DEFAULT_TTL"`
	MaxTTL     string `mapstructure:"FRAGMENT_MAX_TTL"`

	AdminJWTSecret    string  `mapstructure:"ADMIN_JWT_SECRET"`
	AdminJWTIssuer    string  `mapstructure:"ADMIN_JWT_ISSUER"`
	AdminAPIKey       string  `mapstructure:"ADMIN_API_KEY"`
	AdminReaderAPIKey string  `mapstructure:"ADMIN_READER_API_KEY"`
	AdminInsecure     bool    `mapstructure:"ADMIN_INSECURE"`
	AdminRate         float64 `mapstructure:"ADMIN_RATE"`
	AdminBurst        int     `mapstructure:"ADMIN_BURST"`

	LogLevel        string  `mapstructure:"LOG_LEVEL"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	TraceSamplePct  float64 `mapstructure:"TRACE_SAMPLE_PCT"`
	MetricsExporter string  `mapstructure:"METRICS_EXPORTER"`
}

var defaults = map[string]any{
	"SERVICE_NAME":         "fragmentd",
	"LISTEN_ADDR":          ":8080",
	"SITE_ID":              "",
	"DATABASE_URL":         "",
	"DB_MAX_CONNS":         0,
	"DB_SKIP_MIGRATIONS":   false,
	"CACHE_BACKEND":        BackendMemory,
	"CACHE_NAME":           cache.FragmentsName,
	"RISTRETTO_MAX_COST":   cache.DefaultRistrettoBytes,
	"REDIS_ADDR":           "localhost:6379",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"REDIS_PREFIX":         "fragcache:",
	"FRAGMENT_DEFAULT_TTL": "5m",
	"FRAGMENT_MAX_TTL":     "",
	"ADMIN_JWT_SECRET":     "",
	"ADMIN_JWT_ISSUER":     "fragcache",
	"ADMIN_API_KEY":        "",
	"ADMIN_READER_API_KEY": "",
	"ADMIN_INSECURE":       false,
	"ADMIN_RATE":           5.0,
	"ADMIN_BURST":          10,
	"LOG_LEVEL":            "info",
	"TRACING_EXPORTER":     "none",
	"TRACE_SAMPLE_PCT":     1.0,
	"METRICS_EXPORTER":     "prometheus",
}

// Load reads .env from the working directory when present, then the
// environment, then resolves secrets with r. A nil r uses
// secret.DefaultResolver.
func Load(ctx context.Context, r *secret.Resolver) (*Config, error) {
	return LoadFile(ctx, ".env", r)
}

// LoadFile is Load with an explicit dotenv path. Variables already set in
// the environment win over the file.
func LoadFile(ctx context.Context, envFile string, r *secret.Resolver) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, def := range defaults {
		v.SetDefault(key, def)
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if r == nil {
		r = secret.DefaultResolver()
	}
	err := r.ResolveAll(ctx,
		&cfg.DatabaseURL,
		&cfg.RedisPassword,
		&cfg.AdminJWTSecret,
		&cfg.AdminAPIKey,
		&cfg.AdminReaderAPIKey,
	)
	if err != nil {
		return nil, fmt.Errorf("config: resolve secrets: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error
	switch c.CacheBackend {
	case BackendMemory, BackendRistretto:
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%w: REDIS_ADDR is required for the redis backend", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: CACHE_BACKEND %q", ErrInvalid, c.CacheBackend))
	}
	if c.CacheBackend == BackendRistretto && c.RistrettoMaxCost <= 0 {
		errs = append(errs, fmt.Errorf("%w: RISTRETTO_MAX_COST must be positive", ErrInvalid))
	}
	if c.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%w: LISTEN_ADDR is required", ErrInvalid))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if c.AdminRate < 0 || c.AdminBurst < 0 {
		errs = append(errs, fmt.Errorf("%w: ADMIN_RATE and ADMIN_BURST must not be negative", ErrInvalid))
	}
	oc := c.Observe()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// ValidateServe checks the settings fragmentd needs beyond Validate: the
// admin API requires credentials unless ADMIN_INSECURE is set.
func (c *Config) ValidateServe() error {
	if !c.hasCredentials() && !c.AdminInsecure {
		return fmt.Errorf("%w: set ADMIN_JWT_SECRET, ADMIN_API_KEY or ADMIN_READER_API_KEY, or ADMIN_INSECURE=true", ErrInvalid)
	}
	return nil
}

func (c *Config) hasCredentials() bool {
	return c.AdminJWTSecret != "" || c.AdminAPIKey != "" || c.AdminReaderAPIKey != ""
}

// Policy converts the TTL settings. An empty MaxTTL means no cap.
func (c *Config) Policy() (cache.Policy, error) {
	def, err := ttl.Duration(c.DefaultTTL)
	if err != nil {
		return cache.Policy{}, fmt.Errorf("%w: FRAGMENT_DEFAULT_TTL: %w", ErrInvalid, err)
	}
	p := cache.Policy{DefaultTTL: def}
	if c.MaxTTL != "" {
		if p.MaxTTL, err = ttl.Duration(c.MaxTTL); err != nil {
			return cache.Policy{}, fmt.Errorf("%w: FRAGMENT_MAX_TTL: %w", ErrInvalid, err)
		}
	}
	return p, nil
}

// Observe builds the observability settings.
func (c *Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingExporter != "" && c.TracingExporter != "none",
			Exporter:  c.TracingExporter,
			SamplePct: c.TraceSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != "none",
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{Enabled: true, Level: c.LogLevel},
	}
}

// Redis builds the Redis cache settings.
func (c *Config) Redis() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		Prefix:   c.RedisPrefix,
	}
}

// APIKeys returns the configured admin keys.
func (c *Config) APIKeys() []auth.APIKey {
	var keys []auth.APIKey
	if c.AdminAPIKey != "" {
		keys = append(keys, auth.APIKey{ID: "admin", Key: c.AdminAPIKey, Roles: []string{auth.RoleAdmin}})
	}
	if c.AdminReaderAPIKey != "" {
		keys = append(keys, auth.APIKey{ID: "reader", Key: c.AdminReaderAPIKey, Roles: []string{auth.RoleReader}})
	}
	return keys
}

// JWT returns the admin token settings, or ok=false when no secret is set.
func (c *Config) JWT() (auth.JWTConfig, bool) {
	if c.AdminJWTSecret == "" {
		return auth.JWTConfig{}, false
	}
	return auth.JWTConfig{Secret: []byte(c.AdminJWTSecret), Issuer: c.AdminJWTIssuer}, true
}

// Authenticator combines the configured admin credentials. With none
// configured it rejects every request, unless AdminInsecure is set, in which
// case it returns nil and the admin API is open.
func (c *Config) Authenticator() auth.Authenticator {
	if !c.hasCredentials() {
		if c.AdminInsecure {
			return nil
		}
		return denyAll
	}
	var chain auth.Chain
	if jc, ok := c.JWT(); ok {
		chain = append(chain, auth.NewJWTAuthenticator(jc))
	}
	if keys := c.APIKeys(); len(keys) > 0 {
		chain = append(chain, auth.NewAPIKeyAuthenticator(keys...))
	}
	return chain
}

var denyAll = auth.AuthenticatorFunc(func(context.Context, *http.Request) (*auth.Identity, error) {
	return nil, auth.ErrMissingCredentials
})

// Limiter builds the admin rate limiter, or nil when ADMIN_RATE is 0.
func (c *Config) Limiter() *resilience.KeyedRateLimiter {
	if c.AdminRate == 0 {
		return nil
	}
	return resilience.NewKeyedRateLimiter(resilience.RateLimiterConfig{Rate: c.AdminRate, Burst: c.AdminBurst})
}

// String renders the settings with credentials masked.
func (c *Config) String() string {
	var sb strings.Builder
	line := func(k string, v any) { fmt.Fprintf(&sb, "  %s: %v\n", k, v) }
	sb.WriteString("\n")
	line("ServiceName", c.ServiceName)
	line("ListenAddr", c.ListenAddr)
	line("SiteID", c.SiteID)
	line("DatabaseURL", maskURL(c.DatabaseURL))
	line("CacheBackend", c.CacheBackend)
	line("CacheName", c.CacheName)
	if c.CacheBackend == BackendRedis {
		line("RedisAddr", c.RedisAddr)
		line("RedisPassword", mask(c.RedisPassword))
	}
	line("DefaultTTL", c.DefaultTTL)
	line("MaxTTL", c.MaxTTL)
	line("AdminJWTSecret", mask(c.AdminJWTSecret))
	line("AdminAPIKey", mask(c.AdminAPIKey))
	line("AdminReaderAPIKey", mask(c.AdminReaderAPIKey))
	line("AdminInsecure", c.AdminInsecure)
	line("LogLevel", c.LogLevel)
	line("TracingExporter", c.TracingExporter)
	line("MetricsExporter", c.MetricsExporter)
	return sb.String()
}

func mask(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "********"
}

// maskURL hides the password in a URL-style DSN.
func maskURL(dsn string) string {
	if dsn == "" {
		return "(memory store)"
	}
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "********"
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return scheme + "://" + user + ":********@" + host
	}
	return dsn
}
