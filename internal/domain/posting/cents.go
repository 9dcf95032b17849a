// Package posting turns inbound business events into balanced journal lines.
package posting

import (
	"sort"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/shopspring/decimal"
)

// Cents is an amount in integer minor units. Composition is done in cents and
// converted to decimal only when lines are built.
type Cents int64

// Decimal converts to a two-place decimal
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Abs returns the absolute value
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// CentsFromDecimal rounds d to the nearest cent
func CentsFromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

// Sum adds amounts
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}

func roundCents(d decimal.Decimal, mode mapping.RoundingMode) decimal.Decimal {
	if mode == mapping.RoundingHalfEven {
		return d.RoundBank(0)
	}
	return d.Round(0)
}

// SplitProportional divides total across weights using mode for each share and
// a largest-remainder correction so the shares always sum to total.
func SplitProportional(total Cents, weights []Cents, mode mapping.RoundingMode) []Cents {
	shares := make([]Cents, len(weights))
	var weightSum Cents
	for _, w := range weights {
		weightSum += w
	}
	if weightSum == 0 || len(weights) == 0 {
		return shares
	}

	totalDec := decimal.NewFromInt(int64(total))
	sumDec := decimal.NewFromInt(int64(weightSum))
	remainders := make([]decimal.Decimal, len(weights))
	var allocated Cents
	for i, w := range weights {
		raw := totalDec.Mul(decimal.NewFromInt(int64(w))).Div(sumDec)
		rounded := roundCents(raw, mode)
		shares[i] = Cents(rounded.IntPart())
		remainders[i] = raw.Sub(rounded)
		allocated += shares[i]
	}

	diff := total - allocated
	if diff == 0 {
		return shares
	}
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	// Positive diff goes to the largest remainders, negative diff comes off the smallest.
	sort.SliceStable(idx, func(a, b int) bool {
		if diff > 0 {
			return remainders[idx[a]].GreaterThan(remainders[idx[b]])
		}
		return remainders[idx[a]].LessThan(remainders[idx[b]])
	})
	step := Cents(1)
	if diff < 0 {
		step = -1
	}
	for i := 0; diff != 0; i = (i + 1) % len(idx) {
		shares[idx[i]] += step
		diff -= step
	}
	return shares
}
