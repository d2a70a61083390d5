package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagebook/internal/domain"
	"stagebook/internal/pkg/settlement"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sandbox", cfg.Gateway.Kind)
	assert.Equal(t, "memory", cfg.Guard.LockBackend)
	assert.Equal(t, "booking.events", cfg.AMQP.Queue)
	assert.Equal(t, 168*time.Hour, cfg.Booking.FinalPaymentWindow)
	assert.True(t, cfg.Booking.CommissionRate.Equal(settlement.MustParseRate("0.1")))
	assert.True(t, cfg.Booking.DepositRate.Equal(settlement.MustParseRate("0.3")))

	table, err := cfg.RateTable()
	require.NoError(t, err)
	s, err := table.Compute(domain.EventDJSet, 60000)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), s.PlatformCommission)
	assert.Equal(t, int64(18000), s.DepositAmount)

	p := cfg.RefundPolicy()
	assert.Equal(t, 120*time.Hour, p.FullRefundLeadTime)
	assert.True(t, p.PerformerCancelFullRefund)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("BOOKING_COMMISSION_RATE", "12%")
	t.Setenv("BOOKING_RATE_OVERRIDES", "live_band=0.15:1/4")
	t.Setenv("BOOKING_TIMEZONE", "Asia/Almaty")
	t.Setenv("HTTP_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Parse()
	require.NoError(t, err)

	table, err := cfg.RateTable()
	require.NoError(t, err)
	s, err := table.Compute(domain.EventLiveBand, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), s.PlatformCommission)
	assert.Equal(t, int64(2500), s.DepositAmount)

	s, err = table.Compute(domain.EventAcousticSet, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), s.PlatformCommission)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Almaty", loc.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"rate above one":      {"BOOKING_DEPOSIT_RATE": "1.5"},
		"bad override":        {"BOOKING_RATE_OVERRIDES": "karaoke=0.1:0.2"},
		"http without url":    {"GATEWAY_KIND": "http"},
		"unknown gateway":     {"GATEWAY_KIND": "stripe"},
		"redis without addr":  {"GUARD_LOCK_BACKEND": "redis"},
		"bad timezone":        {"BOOKING_TIMEZONE": "Mars/Olympus"},
		"bad duration":        {"JWT_TTL": "soon"},
		"prod default secret": {"APP_ENV": "production", "GATEWAY_KIND": "http", "GATEWAY_BASE_URL": "https://pay.example"},
		"prod sandbox":        {"APP_ENV": "prod", "JWT_SECRET": "s3cr3t-value"},
		"lock ttl below gateway timeout": {
			"GUARD_LOCK_BACKEND": "redis", "REDIS_ADDR": "localhost:6379",
			"GATEWAY_TIMEOUT": "60s",
		},
		"lock ttl within commit margin": {
			"GUARD_LOCK_BACKEND": "redis", "REDIS_ADDR": "localhost:6379",
			"GUARD_LOCK_TTL": "12s", "GATEWAY_TIMEOUT": "10s",
		},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestParse_RedisLockOutlivesGatewayCall(t *testing.T) {
	t.Setenv("GUARD_LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("GATEWAY_TIMEOUT", "60s")
	t.Setenv("GUARD_LOCK_TTL", "90s")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Guard.LockTTL)
}

func TestParse_ProdOK(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("JWT_SECRET", "s3cr3t-value")
	t.Setenv("GATEWAY_KIND", "http")
	t.Setenv("GATEWAY_BASE_URL", "https://pay.example")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.IsProdLike())
}
