package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Environment keys are MESSAGING_<SECTION>_<FIELD>, e.g. MESSAGING_WS_PING_INTERVAL.
const envPrefix = "MESSAGING"

type GRPC struct {
	Addr string `yaml:"addr" split_words:"true"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"readTimeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" split_words:"true"`
}

type Logging struct {
	Env       string `yaml:"env" split_words:"true"`     // dev|prod
	Service   string `yaml:"service" split_words:"true"` // messaging-service
	Version   string `yaml:"version" split_words:"true"`
	Backend   string `yaml:"backend" split_words:"true"` // std|zap
	Level     string `yaml:"level" split_words:"true"`
	AddSource bool   `yaml:"addSource" split_words:"true"`
	Debug     bool   `yaml:"debug" split_words:"true"`
}

type Postgres struct {
	DSN             string        `yaml:"dsn" split_words:"true"`
	MaxConns        int32         `yaml:"maxConns" split_words:"true"`
	MinConns        int32         `yaml:"minConns" split_words:"true"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" split_words:"true"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime" split_words:"true"`
	Migrate         bool          `yaml:"migrate" split_words:"true"`
}

type Badger struct {
	Path string `yaml:"path" split_words:"true"` // empty: in-memory
}

const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverMemory   = "memory"
)

type Store struct {
	Driver   string   `yaml:"driver" split_words:"true"`
	Postgres Postgres `yaml:"postgres" split_words:"true"`
	Badger   Badger   `yaml:"badger" split_words:"true"`
}

type Auth struct {
	AccessTokenSecret string        `yaml:"accessTokenSecret" split_words:"true"`
	Issuer            string        `yaml:"issuer" split_words:"true"`
	CookieName        string        `yaml:"cookieName" split_words:"true"`
	ClockSkew         time.Duration `yaml:"clockSkew" split_words:"true"`
}

type WS struct {
	PingInterval   time.Duration `yaml:"pingInterval" split_words:"true"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" split_words:"true"`
	ReadLimit      int64         `yaml:"readLimit" split_words:"true"`
	VerifyIdentity bool          `yaml:"verifyIdentity" split_words:"true"`
	AllowedOrigins []string      `yaml:"allowedOrigins" split_words:"true"`
}

type Chat struct {
	MaxMessageLength int `yaml:"maxMessageLength" split_words:"true"`
}

type Tracing struct {
	Endpoint     string  `yaml:"endpoint" split_words:"true"`
	SamplingRate float64 `yaml:"samplingRate" split_words:"true"`
	Insecure     bool    `yaml:"insecure" split_words:"true"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http" split_words:"true"`
	GRPC    GRPC    `yaml:"grpc" split_words:"true"`
	Logging Logging `yaml:"logging" split_words:"true"`
	Store   Store   `yaml:"store" split_words:"true"`
	Auth    Auth    `yaml:"auth" split_words:"true"`
	WS      WS      `yaml:"ws" split_words:"true"`
	Chat    Chat    `yaml:"chat" split_words:"true"`
	Tracing Tracing `yaml:"tracing" split_words:"true"`
}

// LoadConfig reads .env (if any), the YAML file at CONFIG_PATH, then
// MESSAGING_* environment overrides, and validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments
	default:
		return nil, err
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if c.Auth.AccessTokenSecret == "" {
		return errors.New("auth.accessTokenSecret is required")
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverPostgres
	}
	if !slices.Contains([]string{DriverPostgres, DriverBadger, DriverMemory}, c.Store.Driver) {
		return fmt.Errorf("store.driver %q is not one of postgres|badger|memory", c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Store.Postgres.DSN == "" {
		return errors.New("store.postgres.dsn is required")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.New("tracing.samplingRate must be within [0,1]")
	}

	// defaults
	if c.Logging.Service == "" {
		c.Logging.Service = "messaging-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.ShutdownTimeout = durationOr(c.HTTP.ShutdownTimeout, 10*time.Second)
	c.WS.PingInterval = durationOr(c.WS.PingInterval, 25*time.Second)
	c.WS.WriteTimeout = durationOr(c.WS.WriteTimeout, 5*time.Second)
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 1 << 16
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 4000
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "accessToken"
	}
	if len(c.WS.AllowedOrigins) == 0 {
		c.WS.AllowedOrigins = c.HTTP.AllowedOrigins
	}
	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
