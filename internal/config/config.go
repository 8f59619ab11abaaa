package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "crm360"
	DefaultPGSSLMode         = "disable"
	DefaultAMQPExchange      = "crm360.events"
	DefaultPresenceStaleness = "2m"
	DefaultPresenceSweep     = "1m"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	AMQP     AMQPConfig     `toml:"amqp"`
	Presence PresenceConfig `toml:"presence"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Tenant   string `toml:"tenant"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// ExpiresInDuration parses the JWT lifetime with a safe fallback.
func (c AuthConfig) ExpiresInDuration() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultJWTExpiresIn)
	}
	return d
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// AMQPConfig configures the domain-event publisher. An empty URL disables it.
type AMQPConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

type PresenceConfig struct {
	StalenessTimeout string `toml:"staleness_timeout"`
	SweepInterval    string `toml:"sweep_interval"`
}

// StalenessDuration parses the staleness timeout with a safe fallback.
func (c PresenceConfig) StalenessDuration() time.Duration {
	d, err := time.ParseDuration(c.StalenessTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultPresenceStaleness)
	}
	return d
}

// SweepDuration parses the sweep interval with a safe fallback.
func (c PresenceConfig) SweepDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultPresenceSweep)
	}
	return d
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Email:    "admin@example.com",
			Password: "change-your-password-here",
			Tenant:   "default",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		AMQP: AMQPConfig{
			Exchange: DefaultAMQPExchange,
		},
		Presence: PresenceConfig{
			StalenessTimeout: DefaultPresenceStaleness,
			SweepInterval:    DefaultPresenceSweep,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
