package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "helpflow"
	DefaultPGSSLMode      = "disable"
	DefaultWorkerCount    = 4
	DefaultMaxAttempts    = 1
	DefaultWaitingAlert   = 100
	DefaultFailedAlert    = 10
	DefaultCleanGraceMins = 1440
)

type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Queue     QueueConfig     `toml:"queue"`
	Providers ProvidersConfig `toml:"providers"`
	Messaging MessagingConfig `toml:"messaging"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// QueueConfig controls the worker pool and the queue health thresholds.
type QueueConfig struct {
	Workers        int `toml:"workers"`
	MaxAttempts    int `toml:"max_attempts"`
	WaitingAlert   int `toml:"waiting_alert"`
	FailedAlert    int `toml:"failed_alert"`
	CleanGraceMins int `toml:"clean_grace_mins"`
}

// ProviderConfig holds credentials for one chat-completion backend.
// SecondaryAPIKey, when set, is tried once on rate-limit responses
// before the failure is surfaced.
type ProviderConfig struct {
	Type            string `toml:"type"`
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	SecondaryAPIKey string `toml:"secondary_api_key"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

type ProvidersConfig struct {
	Primary  ProviderConfig `toml:"primary"`
	Fallback ProviderConfig `toml:"fallback"`
}

// MessagingConfig points at the outbound messaging-provider API used
// to deliver generated replies.
type MessagingConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
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
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Queue: QueueConfig{
			Workers:        DefaultWorkerCount,
			MaxAttempts:    DefaultMaxAttempts,
			WaitingAlert:   DefaultWaitingAlert,
			FailedAlert:    DefaultFailedAlert,
			CleanGraceMins: DefaultCleanGraceMins,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if pw := os.Getenv("HELPFLOW_PG_PASSWORD"); pw != "" {
		cfg.Postgres.Password = pw
	}
	if key := os.Getenv("HELPFLOW_PRIMARY_API_KEY"); key != "" {
		cfg.Providers.Primary.APIKey = key
	}
	if key := os.Getenv("HELPFLOW_FALLBACK_API_KEY"); key != "" {
		cfg.Providers.Fallback.APIKey = key
	}

	return cfg, nil
}
