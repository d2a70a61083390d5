package settlement

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagebook/internal/domain"
)

func TestCompute_DefaultRates(t *testing.T) {
	s, err := Compute(60000, DefaultRates.Commission, DefaultRates.Deposit)
	require.NoError(t, err)

	assert.Equal(t, Settlement{
		PlatformCommission: 6000,
		PerformerFee:       54000,
		DepositAmount:      18000,
		FinalAmount:        42000,
	}, s)
}

func TestCompute_SumsAreExact(t *testing.T) {
	rates := []string{"0", "0.1", "0.3", "1/3", "2/3", "0.125", "12.5%", "0.999", "1"}
	for _, cs := range rates {
		for _, ds := range rates {
			c := MustParseRate(cs)
			d := MustParseRate(ds)
			for price := int64(1); price <= 2000; price += 7 {
				s, err := Compute(price, c, d)
				require.NoError(t, err)
				require.Equal(t, price, s.PlatformCommission+s.PerformerFee, "commission %s price %d", cs, price)
				require.Equal(t, price, s.DepositAmount+s.FinalAmount, "deposit %s price %d", ds, price)
				require.GreaterOrEqual(t, s.PerformerFee, int64(0))
				require.GreaterOrEqual(t, s.FinalAmount, int64(0))
			}
		}
	}
}

func TestCompute_RoundHalfUp(t *testing.T) {
	// 5 * 0.1 = 0.5 -> 1; 15 * 0.1 = 1.5 -> 2; 14 * 0.1 = 1.4 -> 1
	for price, want := range map[int64]int64{5: 1, 15: 2, 14: 1, 4: 0} {
		s, err := Compute(price, MustParseRate("0.1"), MustParseRate("0"))
		require.NoError(t, err)
		assert.Equal(t, want, s.PlatformCommission, "price %d", price)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a, err := Compute(123457, MustParseRate("1/3"), MustParseRate("0.3"))
	require.NoError(t, err)
	b, err := Compute(123457, MustParseRate("1/3"), MustParseRate("0.3"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(0, DefaultRates.Commission, DefaultRates.Deposit)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Compute(-10, DefaultRates.Commission, DefaultRates.Deposit)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	bad := Rate{r: big.NewRat(3, 2)}
	_, err = Compute(100, bad, DefaultRates.Deposit)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = Compute(100, DefaultRates.Commission, bad)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestParseRate(t *testing.T) {
	cases := map[string]string{
		"0.1":   "0.1",
		"10%":   "0.1",
		" 30% ": "0.3",
		"1/4":   "0.25",
		"0":     "0",
		"1":     "1",
	}
	for in, want := range cases {
		r, err := ParseRate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, r.String(), in)
	}

	for _, in := range []string{"", "abc", "-0.1", "1.01", "150%"} {
		_, err := ParseRate(in)
		assert.ErrorIs(t, err, ErrInvalidRate, in)
	}

	_, err := NewRate(1, 0)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestRate_UnmarshalText(t *testing.T) {
	var r Rate
	require.NoError(t, r.UnmarshalText([]byte("12%")))
	assert.True(t, r.Equal(MustParseRate("0.12")))

	assert.Error(t, r.UnmarshalText([]byte("2")))
}

func TestRateTable(t *testing.T) {
	overrides, err := ParseOverrides("live_band=0.12:0.25, dj_set=15%:1/2")
	require.NoError(t, err)

	table := RateTable{Default: DefaultRates, Overrides: overrides}

	s, err := table.Compute(domain.EventLiveBand, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), s.PlatformCommission)
	assert.Equal(t, int64(2500), s.DepositAmount)

	s, err = table.Compute(domain.EventDJSet, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), s.PlatformCommission)
	assert.Equal(t, int64(5000), s.DepositAmount)

	s, err = table.Compute(domain.EventAcousticSet, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), s.PlatformCommission)
	assert.Equal(t, int64(3000), s.DepositAmount)
}

func TestParseOverrides_Errors(t *testing.T) {
	for _, in := range []string{"live_band", "karaoke=0.1:0.2", "live_band=0.1", "live_band=x:0.2", "live_band=0.1:2"} {
		_, err := ParseOverrides(in)
		assert.Error(t, err, in)
	}

	m, err := ParseOverrides("  ")
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestRefundPolicy(t *testing.T) {
	p := DefaultRefundPolicy
	event := time.Date(2026, 6, 20, 20, 0, 0, 0, time.UTC)

	tenDays := event.Add(-10 * 24 * time.Hour)
	full := p.IsFull(event, tenDays, false)
	assert.True(t, full)
	assert.Equal(t, int64(18000), p.Amount(18000, full))

	twoDays := event.Add(-2 * 24 * time.Hour)
	full = p.IsFull(event, twoDays, false)
	assert.False(t, full)
	assert.Equal(t, int64(9000), p.Amount(18000, full))

	exactly := event.Add(-5 * 24 * time.Hour)
	assert.True(t, p.IsFull(event, exactly, false))

	assert.True(t, p.IsFull(event, twoDays, true))

	p.PerformerCancelFullRefund = false
	assert.False(t, p.IsFull(event, twoDays, true))

	assert.Equal(t, int64(0), p.Amount(0, true))
	assert.Equal(t, int64(3), p.Amount(5, false))
}
