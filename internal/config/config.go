package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"stagebook/internal/pkg/settlement"
)

const defaultJWTSecret = "change-me-jwt-secret"

// lockTTLMargin covers the ledger commit that follows a gateway call while
// the booking lock is still held.
const lockTTLMargin = 5 * time.Second

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`

	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Booking   BookingConfig   `envPrefix:"BOOKING_"`
	Gateway   GatewayConfig   `envPrefix:"GATEWAY_"`
	Guard     GuardConfig     `envPrefix:"GUARD_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	AMQP      AMQPConfig      `envPrefix:"AMQP_"`
	Scheduler SchedulerConfig `envPrefix:"SCHEDULER_"`
	OTel      OTelConfig      `envPrefix:"OTEL_"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	URL             string        `env:"URL" envDefault:"file:stagebook.db?_pragma=busy_timeout(5000)"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

type JWTConfig struct {
	Secret string        `env:"SECRET" envDefault:"change-me-jwt-secret"`
	TTL    time.Duration `env:"TTL" envDefault:"24h"`
	Issuer string        `env:"ISSUER" envDefault:"stagebook"`
}

// BookingConfig holds the business policy inputs. Rates accept decimals,
// fractions or percentages ("0.1", "1/10", "10%").
type BookingConfig struct {
	CommissionRate            settlement.Rate `env:"COMMISSION_RATE" envDefault:"0.10"`
	DepositRate               settlement.Rate `env:"DEPOSIT_RATE" envDefault:"0.30"`
	RateOverrides             string          `env:"RATE_OVERRIDES"`
	FinalPaymentWindow        time.Duration   `env:"FINAL_PAYMENT_WINDOW" envDefault:"168h"`
	FullRefundLeadTime        time.Duration   `env:"FULL_REFUND_LEAD_TIME" envDefault:"120h"`
	PartialRefundRate         settlement.Rate `env:"PARTIAL_REFUND_RATE" envDefault:"0.5"`
	PerformerCancelFullRefund bool            `env:"PERFORMER_CANCEL_FULL_REFUND" envDefault:"true"`
	Timezone                  string          `env:"TIMEZONE" envDefault:"UTC"`
}

type GatewayConfig struct {
	Kind    string        `env:"KIND" envDefault:"sandbox"`
	BaseURL string        `env:"BASE_URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type GuardConfig struct {
	LockBackend string        `env:"LOCK_BACKEND" envDefault:"memory"`
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	LockWait    time.Duration `env:"LOCK_WAIT" envDefault:"15s"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type AMQPConfig struct {
	URL    string `env:"URL"`
	Queue  string `env:"QUEUE" envDefault:"booking.events"`
	Buffer int    `env:"BUFFER" envDefault:"256"`
}

type SchedulerConfig struct {
	Enabled            bool          `env:"ENABLED" envDefault:"true"`
	CompletionInterval time.Duration `env:"COMPLETION_INTERVAL" envDefault:"1m"`
	RefundInterval     time.Duration `env:"REFUND_INTERVAL" envDefault:"30s"`
	BatchSize          int           `env:"BATCH_SIZE" envDefault:"100"`
	RefundLease        time.Duration `env:"REFUND_LEASE" envDefault:"5m"`
	RefundMaxAttempts  int           `env:"REFUND_MAX_ATTEMPTS" envDefault:"5"`
}

type OTelConfig struct {
	Endpoint    string `env:"EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"stagebook"`
}

// Load reads .env when present, then the environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("level=warn msg=dotenv_not_loaded err=%v", err)
	}
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if _, err := c.RateTable(); err != nil {
		return err
	}
	if !c.Booking.PartialRefundRate.Valid() {
		return fmt.Errorf("BOOKING_PARTIAL_REFUND_RATE must be within [0, 1]")
	}
	if c.Booking.FinalPaymentWindow <= 0 {
		return fmt.Errorf("BOOKING_FINAL_PAYMENT_WINDOW must be > 0")
	}
	if c.Booking.FullRefundLeadTime < 0 {
		return fmt.Errorf("BOOKING_FULL_REFUND_LEAD_TIME must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Gateway.Kind {
	case "sandbox":
	case "http":
		if strings.TrimSpace(c.Gateway.BaseURL) == "" {
			return fmt.Errorf("GATEWAY_BASE_URL is required when GATEWAY_KIND=http")
		}
	default:
		return fmt.Errorf("GATEWAY_KIND must be one of: sandbox, http")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}

	switch c.Guard.LockBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when GUARD_LOCK_BACKEND=redis")
		}
		if c.Guard.LockTTL < c.Gateway.Timeout+lockTTLMargin {
			return fmt.Errorf("GUARD_LOCK_TTL must be at least GATEWAY_TIMEOUT + %s", lockTTLMargin)
		}
	default:
		return fmt.Errorf("GUARD_LOCK_BACKEND must be one of: memory, redis")
	}

	if c.Scheduler.Enabled && (c.Scheduler.CompletionInterval <= 0 || c.Scheduler.RefundInterval <= 0) {
		return fmt.Errorf("scheduler intervals must be > 0")
	}

	if c.IsProdLike() {
		if isEmptyOrDefault(c.JWT.Secret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if c.Gateway.Kind == "sandbox" {
			return fmt.Errorf("in prod/release GATEWAY_KIND must not be sandbox")
		}
	}
	return nil
}

func (c *Config) IsProdLike() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production" || c.AppEnv == "release"
}

// RateTable builds the settlement rates including per-event-type overrides.
func (c *Config) RateTable() (settlement.RateTable, error) {
	def := settlement.Rates{Commission: c.Booking.CommissionRate, Deposit: c.Booking.DepositRate}
	if !def.Commission.Valid() || !def.Deposit.Valid() {
		return settlement.RateTable{}, fmt.Errorf("BOOKING_COMMISSION_RATE and BOOKING_DEPOSIT_RATE must be within [0, 1]")
	}
	overrides, err := settlement.ParseOverrides(c.Booking.RateOverrides)
	if err != nil {
		return settlement.RateTable{}, fmt.Errorf("BOOKING_RATE_OVERRIDES: %w", err)
	}
	return settlement.RateTable{Default: def, Overrides: overrides}, nil
}

func (c *Config) RefundPolicy() settlement.RefundPolicy {
	return settlement.RefundPolicy{
		FullRefundLeadTime:        c.Booking.FullRefundLeadTime,
		PartialRefundRate:         c.Booking.PartialRefundRate,
		PerformerCancelFullRefund: c.Booking.PerformerCancelFullRefund,
	}
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("BOOKING_TIMEZONE: %w", err)
	}
	return loc, nil
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
