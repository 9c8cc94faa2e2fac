// Package config loads the newswire configuration from a YAML file with
// environment overrides. The ingestion core only consumes resolved values;
// persistence of user preferences lives outside this process.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

// ServerConfig describes one feed source: its websocket endpoint, its REST
// backfill endpoint, and the auth token sent once after open.
type ServerConfig struct {
	Name         string `yaml:"name"`
	Source       string `yaml:"source"` // "a" or "b"
	WebsocketURL string `yaml:"websocket_url"`
	APIURL       string `yaml:"api_url"`
	Token        string `yaml:"token"`
}

// SourceSystem resolves the configured source tag to the adapter enum.
func (s ServerConfig) SourceSystem() feedv1.SourceSystem {
	switch strings.ToLower(s.Source) {
	case "a", "source-a":
		return feedv1.SourceSystem_SOURCE_A
	case "b", "source-b":
		return feedv1.SourceSystem_SOURCE_B
	default:
		return feedv1.SourceSystem_SOURCE_UNSPECIFIED
	}
}

// AlertConfig selects and configures the notification sink and the dedup
// backend.
type AlertConfig struct {
	// Sink is one of: log, nats, kafka.
	Sink string `yaml:"sink" env:"SINK"`

	NATSURL     string `yaml:"nats_url" env:"NATS_URL"`
	NATSSubject string `yaml:"nats_subject" env:"NATS_SUBJECT"`

	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `yaml:"kafka_topic" env:"KAFKA_TOPIC"`

	// RedisAddr enables the shared dedup window; empty means in-memory.
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`

	DedupWindow time.Duration `yaml:"dedup_window" env:"DEDUP_WINDOW"`
}

type Config struct {
	Servers []ServerConfig `yaml:"servers"`

	// ShowReposts controls whether reposted/quoted social content is kept.
	ShowReposts bool `yaml:"show_reposts" env:"SHOW_REPOSTS"`

	// APIFetchEnabled toggles backfill fetching entirely.
	APIFetchEnabled bool `yaml:"api_fetch_enabled" env:"API_FETCH_ENABLED"`

	Keywords []string `yaml:"keywords" env:"KEYWORDS" envSeparator:","`

	MaxStoreSize int `yaml:"max_store_size" env:"MAX_STORE_SIZE"`

	Alert AlertConfig `yaml:"alert" envPrefix:"ALERT_"`
}

func Default() Config {
	return Config{
		ShowReposts:     true,
		APIFetchEnabled: true,
		MaxStoreSize:    100,
		Alert: AlertConfig{
			Sink:        "log",
			DedupWindow: 60 * time.Second,
		},
	}
}

// Load reads the YAML file (optional), then applies environment overrides
// (NEWSWIRE_ prefix), then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "NEWSWIRE_"}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate surfaces configuration errors before any connection is attempted.
func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("no servers configured")
	}

	seen := make(map[feedv1.SourceSystem]bool)
	for _, s := range c.Servers {
		source := s.SourceSystem()
		if source == feedv1.SourceSystem_SOURCE_UNSPECIFIED {
			return fmt.Errorf("server %q: unknown source %q (want \"a\" or \"b\")", s.Name, s.Source)
		}
		if seen[source] {
			return fmt.Errorf("server %q: duplicate source %q", s.Name, s.Source)
		}
		seen[source] = true

		if err := validateWebsocketURL(s.WebsocketURL); err != nil {
			return fmt.Errorf("server %q: %w", s.Name, err)
		}
	}

	switch c.Alert.Sink {
	case "", "log", "nats", "kafka":
	default:
		return fmt.Errorf("unknown alert sink %q", c.Alert.Sink)
	}

	return nil
}

func validateWebsocketURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("websocket_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid websocket_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("websocket_url must use ws:// or wss://, got %q", u.Scheme)
	}
	return nil
}
