package kapsteuer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FundYearValue carries the per-fund inputs for one tax year's advance tax:
// fund value at the start and end of the year, distributions received during
// the year, and how many months the position was held (0 or out-of-range
// means the full year).
type FundYearValue struct {
	Asset         string `json:"asset"`
	StartValue    Money  `json:"startValue"`
	EndValue      Money  `json:"endValue"`
	Distributions Money  `json:"distributions"`
	MonthsHeld    int    `json:"monthsHeld,omitempty"`
}

// ComputeVorabpauschale calculates the advance lump-sum tax for each fund
// position. Funds with zero or negative growth still produce a record so the
// computation stays auditable. A fund whose asset the directory cannot
// resolve fails only its own record; the remaining funds are still computed
// and the failures returned alongside.
func ComputeVorabpauschale(year int, values []FundYearValue, dir Directory, policy VorabPolicy, rounding RoundingPolicy) ([]VorabpauschaleData, []AssetFailure) {
	baseRate := decimal.NewFromFloat(policy.BasisZins)
	damper := decimal.NewFromFloat(policy.Damper)

	var failures []AssetFailure
	out := make([]VorabpauschaleData, 0, len(values))
	for _, v := range values {
		info, err := dir.Resolve(v.Asset)
		if err != nil {
			failures = append(failures, AssetFailure{
				Asset:  v.Asset,
				Err:    err,
				Reason: fmt.Sprintf("vorabpauschale %d: %v", year, err),
			})
			continue
		}

		months := v.MonthsHeld
		if months <= 0 || months > 12 {
			months = 12
		}
		fraction := decimal.NewFromInt(int64(months)).Div(decimal.NewFromInt(12))

		// Multiply by months before dividing by 12: 7/12 alone is not a
		// finite decimal and would drag the whole product off the exact cent.
		baseReturn := v.StartValue.MulRate(baseRate).MulRate(damper).
			MulRate(decimal.NewFromInt(int64(months))).Div(Q(12))
		growth := v.EndValue.Sub(v.StartValue).Max(EUR(0))
		gross := growth.Min(baseReturn).Sub(v.Distributions).Max(EUR(0))

		rate := info.FundType.ExemptionRate()
		exempt := gross.MulRate(rate)

		out = append(out, VorabpauschaleData{
			Asset:         v.Asset,
			Year:          year,
			FundType:      info.FundType,
			StartValue:    v.StartValue,
			EndValue:      v.EndValue,
			Distributions: v.Distributions,
			BaseRate:      baseRate,
			YearFraction:  fraction,
			BaseReturn:    rounding.Quantize(baseReturn),
			Gross:         rounding.Quantize(gross),
			Exemption:     rate,
			ExemptEUR:     rounding.Quantize(exempt),
			Net:           rounding.Quantize(gross.Sub(exempt)),
		})
	}
	return out, failures
}
