package kapsteuer

import "github.com/shopspring/decimal"

// RoundingPolicy is the single quantization rule for reporting amounts.
// All intermediate arithmetic keeps full precision; a value passes through
// Quantize exactly once, when a final record or category total is built.
type RoundingPolicy struct {
	Places int32
}

// DefaultRounding rounds to cents, half away from zero.
var DefaultRounding = RoundingPolicy{Places: 2}

// Quantize rounds the amount to the policy's number of places.
func (p RoundingPolicy) Quantize(m Money) Money {
	return Money{value: m.value.Round(p.Places), cur: m.cur}
}

// QuantizeDecimal rounds a bare decimal to the policy's number of places.
func (p RoundingPolicy) QuantizeDecimal(d decimal.Decimal) decimal.Decimal {
	return d.Round(p.Places)
}
