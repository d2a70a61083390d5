package settlement

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidRate   = errors.New("invalid rate")
)

// Rate is an exact fraction in [0, 1]. The zero value is 0.
type Rate struct {
	r *big.Rat
}

func NewRate(num, den int64) (Rate, error) {
	if den == 0 {
		return Rate{}, fmt.Errorf("%w: zero denominator", ErrInvalidRate)
	}
	return newRate(big.NewRat(num, den))
}

// ParseRate accepts decimals ("0.1"), fractions ("1/10") and percentages ("10%").
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	if pct {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	if pct {
		r.Quo(r, big.NewRat(100, 1))
	}
	return newRate(r)
}

func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func newRate(r *big.Rat) (Rate, error) {
	rate := Rate{r: r}
	if !rate.Valid() {
		return Rate{}, fmt.Errorf("%w: %s outside [0, 1]", ErrInvalidRate, r.RatString())
	}
	return rate, nil
}

func (r Rate) rat() *big.Rat {
	if r.r == nil {
		return new(big.Rat)
	}
	return r.r
}

func (r Rate) Valid() bool {
	v := r.rat()
	return v.Sign() >= 0 && v.Cmp(big.NewRat(1, 1)) <= 0
}

func (r Rate) IsZero() bool { return r.rat().Sign() == 0 }

func (r Rate) Equal(o Rate) bool { return r.rat().Cmp(o.rat()) == 0 }

func (r Rate) String() string {
	s := r.rat().FloatString(6)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rate) UnmarshalText(b []byte) error {
	v, err := ParseRate(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Apply returns amount*r rounded half up to a whole unit. amount must be non-negative.
func (r Rate) Apply(amount int64) int64 {
	v := r.rat()
	n := new(big.Int).Mul(big.NewInt(amount), v.Num())
	d := v.Denom()

	// floor((2n + d) / 2d)
	n.Lsh(n, 1).Add(n, d)
	d2 := new(big.Int).Lsh(d, 1)
	return n.Quo(n, d2).Int64()
}
