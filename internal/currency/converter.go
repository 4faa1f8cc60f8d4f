package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/storage"
	"github.com/developkariyer/IWApim/pkg/clock"
)

// Base is the currency every stored rate is quoted against.
const Base = "TL"

const DefaultPrecision = 2

var ErrRateNotFound = fmt.Errorf("%w: currency rate not found", core.ErrData)

type RateSource interface {
	RateOn(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error)
}

type Converter struct {
	rates     RateSource
	clock     clock.Clock
	precision int32
}

func NewConverter(rates RateSource, clk clock.Clock, precision int32) *Converter {
	if clk == nil {
		clk = clock.Real()
	}
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &Converter{rates: rates, clock: clk, precision: precision}
}

// Normalize upper-cases a code and maps TRY to TL.
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "TRY" {
		return Base
	}
	return code
}

// Rate returns the value of one unit in TL on the nearest date on or before today.
func (c *Converter) Rate(ctx context.Context, code string) (decimal.Decimal, error) {
	code = Normalize(code)
	if code == Base {
		return decimal.NewFromInt(1), nil
	}
	rate, err := c.rates.RateOn(ctx, code, c.clock.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateNotFound, code)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s has rate %s", ErrRateNotFound, code, rate)
	}
	return rate, nil
}

// Convert returns amount*rate(from)/rate(to) rounded to the configured precision.
// The same currency on both sides returns amount untouched.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return amount, nil
	}
	fromRate, err := c.Rate(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := c.Rate(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(fromRate).Div(toRate).Round(c.precision), nil
}
