package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/stake-plus/dao-governance/src/data"
)

// Config is the daemon configuration read from the environment.
type Config struct {
	MySQLDSN         string        `env:"MYSQL_DSN"             envDefault:"governance:governance@tcp(127.0.0.1:3306)/governance"`
	MySQLConnectWait time.Duration `env:"MYSQL_CONNECT_TIMEOUT" envDefault:"1m"`
	RedisURL         string        `env:"REDIS_URL"             envDefault:"redis://127.0.0.1:6379/0"`
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTTTL           time.Duration `env:"JWT_TTL"               envDefault:"1h"`
	Port             string        `env:"PORT"                  envDefault:"8080"`
	TLSCertFile      string        `env:"TLS_CERT_FILE"`
	TLSKeyFile       string        `env:"TLS_KEY_FILE"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	RateLimit   int           `env:"RATE_LIMIT"  envDefault:"60"`
	RateWindow  time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`

	EventStream     string            `env:"EVENT_STREAM"      envDefault:"governance.events"`
	EventStreamLen  int64             `env:"EVENT_STREAM_LEN"  envDefault:"10000"`
	CustomStream    string            `env:"CUSTOM_STREAM"     envDefault:"governance.custom"`
	WebhookTargets  map[string]string `env:"WEBHOOK_TARGETS"   envSeparator:"," envKeyValSeparator:"="`
	WebhookAttempts int               `env:"WEBHOOK_ATTEMPTS"  envDefault:"3"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("missing env JWT_SECRET")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	return nil
}

// ApplySettings fills Discord credentials left empty in the environment
// from the settings table. data.LoadSettings must have run.
func (c *Config) ApplySettings() {
	if c.DiscordToken == "" {
		c.DiscordToken = data.GetSetting("discord_token")
	}
	if c.DiscordChannelID == "" {
		c.DiscordChannelID = data.GetSetting("discord_channel_id")
	}
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }
