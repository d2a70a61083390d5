package settlement

import (
	"fmt"
	"strings"

	"stagebook/internal/domain"
)

// Settlement is the split of an offered price fixed at acceptance.
type Settlement struct {
	PlatformCommission int64 `json:"platformCommission"`
	PerformerFee       int64 `json:"performerFee"`
	DepositAmount      int64 `json:"depositAmount"`
	FinalAmount        int64 `json:"finalAmount"`
}

// Compute splits offeredPrice into commission/fee and deposit/final.
// The second half of each pair is always the remainder, so both pairs sum to
// offeredPrice exactly.
func Compute(offeredPrice int64, commission, deposit Rate) (Settlement, error) {
	if offeredPrice <= 0 {
		return Settlement{}, fmt.Errorf("%w: offered price must be positive, got %d", ErrInvalidAmount, offeredPrice)
	}
	if !commission.Valid() {
		return Settlement{}, fmt.Errorf("%w: commission", ErrInvalidRate)
	}
	if !deposit.Valid() {
		return Settlement{}, fmt.Errorf("%w: deposit", ErrInvalidRate)
	}

	c := commission.Apply(offeredPrice)
	d := deposit.Apply(offeredPrice)
	return Settlement{
		PlatformCommission: c,
		PerformerFee:       offeredPrice - c,
		DepositAmount:      d,
		FinalAmount:        offeredPrice - d,
	}, nil
}

type Rates struct {
	Commission Rate
	Deposit    Rate
}

var DefaultRates = Rates{
	Commission: MustParseRate("0.10"),
	Deposit:    MustParseRate("0.30"),
}

// RateTable resolves the rates for an event type, falling back to Default.
type RateTable struct {
	Default   Rates
	Overrides map[domain.EventType]Rates
}

func (t RateTable) For(et domain.EventType) Rates {
	if r, ok := t.Overrides[et]; ok {
		return r
	}
	return t.Default
}

// Compute applies the rates for et to offeredPrice.
func (t RateTable) Compute(et domain.EventType, offeredPrice int64) (Settlement, error) {
	r := t.For(et)
	return Compute(offeredPrice, r.Commission, r.Deposit)
}

// ParseOverrides reads "live_band=0.12:0.25,dj_set=15%:30%" into per-event-type rates.
func ParseOverrides(s string) (map[domain.EventType]Rates, error) {
	out := map[domain.EventType]Rates{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, pair, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("rate override %q: expected type=commission:deposit", item)
		}
		et, err := domain.ParseEventType(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("rate override %q: %w", item, err)
		}
		cs, ds, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("rate override %q: expected commission:deposit", item)
		}
		c, err := ParseRate(cs)
		if err != nil {
			return nil, fmt.Errorf("rate override %q: commission: %w", item, err)
		}
		d, err := ParseRate(ds)
		if err != nil {
			return nil, fmt.Errorf("rate override %q: deposit: %w", item, err)
		}
		out[et] = Rates{Commission: c, Deposit: d}
	}
	return out, nil
}
