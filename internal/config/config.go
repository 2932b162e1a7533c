package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		TrustedProxies []string `yaml:"trusted_proxies"`
		CORSOrigin     string   `yaml:"cors_origin"`
	} `yaml:"server"`
	Database struct {
		Driver          string        `yaml:"driver"` // "postgres" or "sqlite"
		URL             string        `yaml:"url"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		PasswordHash  string `yaml:"password_hash"` // "bcrypt" or "argon2id"
		BcryptCost    int    `yaml:"bcrypt_cost"`
		SeedUsersFile string `yaml:"seed_users_file"`
	} `yaml:"auth"`
	RateLimit struct {
		Requests int           `yaml:"requests"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`
}

var ErrMissingJWTSecret = errors.New("jwt secret is not configured")

// LoadConfig reads configuration from the optional YAML file at
// configPath, then applies the process environment (after loading a
// .env file if one is present) and fills in defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if configPath != "" {
		file, err := os.Open(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		default:
			defer file.Close()
			decoder := yaml.NewDecoder(file)
			if err := decoder.Decode(config); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		}
	}

	_ = godotenv.Load() // .env is optional

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.setDefaults()

	if config.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if config.RateLimit.Requests <= 0 {
		return nil, fmt.Errorf("rate limit requests must be positive, got %d", config.RateLimit.Requests)
	}
	if config.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", config.RateLimit.Window)
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)

	setString(&c.Server.Port, "PORT")
	setString(&c.Server.CORSOrigin, "CORS_ORIGIN")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.PasswordHash, "PASSWORD_HASH")
	setString(&c.Auth.SeedUsersFile, "SEED_USERS_FILE")

	if c.Database.URL == "" && os.Getenv("DB_HOST") != "" {
		c.Database.URL = postgresURLFromEnv()
	}

	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_REQUESTS %q: %w", v, err)
		}
		c.RateLimit.Requests = n
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_WINDOW %q: %w", v, err)
		}
		c.RateLimit.Window = d
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "3000"
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Auth.PasswordHash == "" {
		c.Auth.PasswordHash = "bcrypt"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Server.Port, ":") {
		return c.Server.Port
	}
	return ":" + c.Server.Port
}

// postgresURLFromEnv assembles a connection URL from the discrete
// DB_* variables.
func postgresURLFromEnv() string {
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD")),
		Host:     net.JoinHostPort(os.Getenv("DB_HOST"), port),
		Path:     "/" + os.Getenv("DB_NAME"),
		RawQuery: "sslmode=disable",
	}
	if mode := os.Getenv("DB_SSLMODE"); mode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(mode)
	}
	return u.String()
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
