package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"fedsync"`
	HTTPPort    string `env:"HTTP_PORT"    envDefault:"8080"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	// Each in-flight stream apply holds one pooled connection for its
	// advisory lock.
	PostgresMaxOpenConns int `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"20"`

	Federation FederationConfig
}

// FederationConfig holds the replication protocol knobs.
type FederationConfig struct {
	LocalDomain          string        `env:"FEDERATION_LOCAL_DOMAIN"`
	PeersFile            string        `env:"FEDERATION_PEERS_FILE"`
	SignatureTolerance   time.Duration `env:"FEDERATION_SIGNATURE_TOLERANCE"           envDefault:"5m"`
	MessagesPerChannel   int           `env:"FEDERATION_SNAPSHOT_MESSAGES_PER_CHANNEL" envDefault:"50"`
	AcceptStreamBaseline bool          `env:"FEDERATION_ACCEPT_STREAM_BASELINE"        envDefault:"false"`
	ReconcileInterval    time.Duration `env:"FEDERATION_RECONCILE_INTERVAL"            envDefault:"15m"`
	OutboxBatchSize      int           `env:"FEDERATION_OUTBOX_BATCH_SIZE"             envDefault:"100"`
	OutboxMaxAttempts    int           `env:"FEDERATION_OUTBOX_MAX_ATTEMPTS"           envDefault:"10"`
	PollInterval         time.Duration `env:"FEDERATION_POLL_INTERVAL"                 envDefault:"2s"`
	PeerTimeout          time.Duration `env:"FEDERATION_PEER_TIMEOUT"                  envDefault:"15s"`
	InboundRateLimit     float64       `env:"FEDERATION_INBOUND_RATE_LIMIT"            envDefault:"50"`
	InboundRateBurst     int           `env:"FEDERATION_INBOUND_RATE_BURST"            envDefault:"100"`
	InMemory             bool          `env:"FEDERATION_IN_MEMORY"                     envDefault:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Federation.LocalDomain = strings.ToLower(strings.TrimSpace(cfg.Federation.LocalDomain))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Federation.LocalDomain == "" {
		errs = append(errs, errors.New("FEDERATION_LOCAL_DOMAIN is required"))
	}
	if !c.Federation.InMemory && strings.TrimSpace(c.PostgresDSN) == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required unless FEDERATION_IN_MEMORY is set"))
	}
	if c.Federation.SignatureTolerance <= 0 {
		errs = append(errs, errors.New("FEDERATION_SIGNATURE_TOLERANCE must be positive"))
	}
	if c.Federation.MessagesPerChannel <= 0 {
		errs = append(errs, errors.New("FEDERATION_SNAPSHOT_MESSAGES_PER_CHANNEL must be positive"))
	}
	if c.Federation.PollInterval <= 0 || c.Federation.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("federation worker intervals must be positive"))
	}
	if c.Federation.PeerTimeout <= 0 {
		errs = append(errs, errors.New("FEDERATION_PEER_TIMEOUT must be positive"))
	}
	if c.Federation.InboundRateLimit <= 0 || c.Federation.InboundRateBurst <= 0 {
		errs = append(errs, errors.New("federation inbound rate limit and burst must be positive"))
	}
	return errors.Join(errs...)
}
