// Package config provides configuration parsing and validation for the argus
// binaries. Flags are declared on cobra commands and resolved through viper,
// so every setting can also come from an ARGUS_* environment variable or a
// YAML config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/email/provider"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel/push"
	"github.com/Hibaxbelghith/argus-sub000/internal/retry"
	"github.com/Hibaxbelghith/argus-sub000/pkg/kafka"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Alert producer modes.
const (
	ModeBurst      = "burst"
	ModeContinuous = "continuous"
	ModeTest       = "test"
	ModeSingleTest = "single-test"
)

// Logging selects the slog handler of a binary.
type Logging struct {
	Level  string
	Format string
}

// Validate checks the log level and format.
func (l *Logging) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", l.Format)
	}
	return nil
}

// Storage selects the persistence backend.
type Storage struct {
	Backend     string
	PostgresDSN string
}

// Validate checks that the backend is known and Postgres has a DSN.
func (s *Storage) Validate() error {
	switch s.Backend {
	case StoreMemory:
		return nil
	case StorePostgres:
		if s.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn cannot be empty")
		}
		return nil
	default:
		return fmt.Errorf("store must be %s or %s, got %q", StoreMemory, StorePostgres, s.Backend)
	}
}

// Email configures the email channel and its provider chain.
type Email struct {
	From         string
	Primary      string
	Fallback     []string
	SESRegion    string
	ResendAPIKey string
	SMTP         provider.SMTPConfig
}

var emailProviders = []string{"ses", "resend", "smtp"}

func (e *Email) validate() error {
	for _, name := range append([]string{e.Primary}, e.Fallback...) {
		if name == "" {
			continue
		}
		known := false
		for _, p := range emailProviders {
			known = known || name == p
		}
		if !known {
			return fmt.Errorf("unknown email provider %q", name)
		}
	}
	return nil
}

// Twilio holds the credentials shared by the SMS and voice channels.
type Twilio struct {
	AccountSID string
	AuthToken  string
	SMSFrom    string
	VoiceFrom  string
}

// Channels configures the delivery transports. Unset credentials leave the
// transport registered but failing with a configuration error.
type Channels struct {
	Email          Email
	Twilio         Twilio
	Push           push.Config
	WebhookTimeout time.Duration
}

// Notifier holds all configuration parameters for the notifier service.
type Notifier struct {
	Logging Logging
	Storage Storage

	KafkaBrokers    string
	AlertsTopic     string
	EventsTopic     string
	DeadLetterTopic string
	ConsumerGroupID string
	ContentType     string
	RedisAddr       string
	MetricsPort     string
	Workers         int
	Retry           retry.Config
	Channels        Channels
}

// Validate checks that all required configuration fields are set and have valid values.
func (c *Notifier) Validate() error {
	var errs []error
	errs = append(errs, c.Logging.Validate(), c.Storage.Validate())
	if err := kafka.ValidateConsumerParams(c.KafkaBrokers, c.AlertsTopic, c.ConsumerGroupID); err != nil {
		errs = append(errs, fmt.Errorf("kafka: %w", err))
	}
	errs = append(errs, validateContentType(c.ContentType))
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if c.Channels.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("webhook-timeout must be > 0"))
	}
	errs = append(errs, c.Channels.Email.validate())
	return errors.Join(errs...)
}

// API holds all configuration parameters for the notifier-api service.
type API struct {
	Logging   Logging
	Storage   Storage
	Port      string
	RedisAddr string
}

// Validate checks that all required configuration fields are set and have valid values.
func (c *API) Validate() error {
	var errs []error
	errs = append(errs, c.Logging.Validate(), c.Storage.Validate())
	if c.Port == "" {
		errs = append(errs, errors.New("port cannot be empty"))
	}
	return errors.Join(errs...)
}

// Producer holds all configuration parameters for the alert-producer.
type Producer struct {
	Logging      Logging
	KafkaBrokers string
	Topic        string
	ContentType  string
	RedisAddr    string
	Mode         string
	Mock         bool
	RPS          float64
	Duration     time.Duration
	BurstSize    int
	Seed         int64
	SeverityDist string
	TypeDist     string
	Users        []string
}

// Validate checks that all required configuration fields are set and have valid values.
// Distribution strings are parsed here so that bad weights fail at startup.
func (c *Producer) Validate() error {
	var errs []error
	errs = append(errs, c.Logging.Validate())
	if !c.Mock {
		if err := kafka.ValidateProducerParams(c.KafkaBrokers, c.Topic); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	errs = append(errs, validateContentType(c.ContentType))

	switch c.Mode {
	case ModeBurst:
		if c.BurstSize <= 0 {
			errs = append(errs, errors.New("burst must be > 0 in burst mode"))
		}
	case ModeContinuous:
		if c.RPS <= 0 {
			errs = append(errs, errors.New("rps must be > 0 in continuous mode"))
		}
		if c.Duration <= 0 {
			errs = append(errs, errors.New("duration must be > 0 in continuous mode"))
		}
	case ModeTest:
		if c.BurstSize <= 0 && (c.RPS <= 0 || c.Duration <= 0) {
			errs = append(errs, errors.New("test mode needs burst > 0 or rps and duration > 0"))
		}
	case ModeSingleTest:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}

	if len(c.Users) == 0 {
		errs = append(errs, errors.New("users cannot be empty"))
	}
	if _, err := ParseSeverityDistribution(c.SeverityDist); err != nil {
		errs = append(errs, fmt.Errorf("invalid severity-dist: %w", err))
	}
	if _, err := ParseTypeDistribution(c.TypeDist); err != nil {
		errs = append(errs, fmt.Errorf("invalid type-dist: %w", err))
	}
	return errors.Join(errs...)
}

func validateContentType(ct string) error {
	switch ct {
	case alert.ContentTypeJSON, alert.ContentTypeProtobuf:
		return nil
	default:
		return fmt.Errorf("content-type must be %s or %s, got %q", alert.ContentTypeJSON, alert.ContentTypeProtobuf, ct)
	}
}
