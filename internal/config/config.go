package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeMock = "mock"
	ModeLive = "live"
)

type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	ANPR     ANPRConfig
	Auth     AuthConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN          string
	EmbeddedPort uint32
	EmbeddedPath string
	LogLevel     string
}

// Embedded reports whether the service should start its own PostgreSQL.
func (c DatabaseConfig) Embedded() bool {
	return c.DSN == ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type ANPRConfig struct {
	Mode              string
	FeedURL           string
	PollInterval      time.Duration
	BatchSize         int
	FetchTimeout      time.Duration
	ProcessedCapacity int
	MaxAttempts       int
	TenantID          uuid.UUID
	HomeSiteID        int
	DestinationSiteID int
	StaleAfter        time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads .env (if present), config.yaml (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:           v.GetString("http.port"),
			AllowedOrigins: splitList(v.GetString("http.allowed_origins")),
		},
		Database: DatabaseConfig{
			DSN:          v.GetString("db.dsn"),
			EmbeddedPort: v.GetUint32("db.embedded_port"),
			EmbeddedPath: v.GetString("db.embedded_path"),
			LogLevel:     v.GetString("db.log_level"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		ANPR: ANPRConfig{
			Mode:              strings.ToLower(strings.TrimSpace(v.GetString("anpr.mode"))),
			FeedURL:           v.GetString("anpr.feed_url"),
			PollInterval:      v.GetDuration("anpr.poll_interval"),
			BatchSize:         v.GetInt("anpr.batch_size"),
			FetchTimeout:      v.GetDuration("anpr.fetch_timeout"),
			ProcessedCapacity: v.GetInt("anpr.processed_capacity"),
			MaxAttempts:       v.GetInt("anpr.max_attempts"),
			HomeSiteID:        v.GetInt("anpr.home_site_id"),
			DestinationSiteID: v.GetInt("anpr.destination_site_id"),
			StaleAfter:        v.GetDuration("anpr.stale_after"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
	}

	tenant := strings.TrimSpace(v.GetString("anpr.tenant_id"))
	if tenant == "" {
		return nil, errors.New("ANPR_TENANT_ID is required")
	}
	tenantID, err := uuid.Parse(tenant)
	if err != nil {
		return nil, fmt.Errorf("ANPR_TENANT_ID is not a uuid: %w", err)
	}
	cfg.ANPR.TenantID = tenantID

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.allowed_origins", "*")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.embedded_port", 5433)
	v.SetDefault("db.embedded_path", "./db_data")
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("anpr.mode", ModeMock)
	v.SetDefault("anpr.feed_url", "")
	v.SetDefault("anpr.poll_interval", 30*time.Second)
	v.SetDefault("anpr.batch_size", 50)
	v.SetDefault("anpr.fetch_timeout", 10*time.Second)
	v.SetDefault("anpr.processed_capacity", 1000)
	v.SetDefault("anpr.max_attempts", 3)
	v.SetDefault("anpr.tenant_id", "")
	v.SetDefault("anpr.home_site_id", 1)
	v.SetDefault("anpr.destination_site_id", 2)
	v.SetDefault("anpr.stale_after", 10*time.Minute)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func (c *Config) validate() error {
	switch c.ANPR.Mode {
	case ModeMock:
	case ModeLive:
		if c.ANPR.FeedURL == "" {
			return errors.New("ANPR_FEED_URL is required in live mode")
		}
		if c.Auth.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required in live mode")
		}
	default:
		return fmt.Errorf("ANPR_MODE must be %q or %q, got %q", ModeMock, ModeLive, c.ANPR.Mode)
	}
	if c.ANPR.PollInterval <= 0 {
		return errors.New("ANPR_POLL_INTERVAL must be positive")
	}
	if c.ANPR.BatchSize <= 0 {
		return errors.New("ANPR_BATCH_SIZE must be positive")
	}
	if c.ANPR.ProcessedCapacity <= 0 {
		return errors.New("ANPR_PROCESSED_CAPACITY must be positive")
	}
	if c.ANPR.MaxAttempts <= 0 {
		c.ANPR.MaxAttempts = 1
	}
	if c.ANPR.HomeSiteID == c.ANPR.DestinationSiteID {
		return errors.New("home and destination site must differ")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
