package kapsteuer

import "github.com/shopspring/decimal"

// Offset routes every realization and qualifying income record into exactly
// one law-defined pot and applies the fixed-order netting rules. It is a pure
// function of its inputs: no state survives between calls, and identical
// inputs yield identical results.
//
// Pot restrictions: stock losses offset stock gains only, in both directions
// the remainder carries on the stock lines and never bleeds into the general
// pot. Derivative losses offset derivative gains up to the policy cap; the
// unusable excess is reported separately rather than discarded. The general
// pot nets freely and includes dividend, interest and other capital income.
func Offset(gains []RealizedGainLoss, income []IncomeRecord, links []WithholdingLink, vorab []VorabpauschaleData, policy NettingPolicy, rounding RoundingPolicy) LossOffsettingResult {
	var pots PotBalances
	var dividends, interest, other, section23 decimal.Decimal

	for _, g := range gains {
		amount := g.Net.Decimal()
		switch {
		case g.Category == CategoryStock:
			if amount.IsNegative() {
				pots.StockLosses = pots.StockLosses.Add(amount.Neg())
			} else {
				pots.StockGains = pots.StockGains.Add(amount)
			}
		case g.Category == CategoryDerivative:
			if amount.IsNegative() {
				pots.DerivativeLosses = pots.DerivativeLosses.Add(amount.Neg())
			} else {
				pots.DerivativeGains = pots.DerivativeGains.Add(amount)
			}
		case g.Category == CategoryOther:
			// Outside §23's speculative period the sale is not taxable at all.
			if g.Section23 {
				section23 = section23.Add(amount)
			}
		default:
			if amount.IsNegative() {
				pots.GeneralLosses = pots.GeneralLosses.Add(amount.Neg())
			} else {
				pots.GeneralGains = pots.GeneralGains.Add(amount)
			}
		}
	}

	for _, rec := range income {
		amount := rec.Taxable.Decimal()
		switch rec.Type {
		case IncomeDistribution:
			pots.FundNetIncome = pots.FundNetIncome.Add(amount)
		case IncomeDividend:
			dividends = dividends.Add(amount)
			pots.GeneralGains = pots.GeneralGains.Add(amount)
		case IncomeInterest:
			interest = interest.Add(amount)
			pots.GeneralGains = pots.GeneralGains.Add(amount)
		case IncomeNegInterest:
			interest = interest.Add(amount)
			pots.GeneralLosses = pots.GeneralLosses.Add(amount.Neg())
		case IncomeOtherCapital:
			other = other.Add(amount)
			pots.GeneralGains = pots.GeneralGains.Add(amount)
		}
	}

	categories := make(map[ReportingCategory]decimal.Decimal)

	// 1. Stock pots net against each other only.
	stockNet := pots.StockGains.Sub(pots.StockLosses)
	if stockNet.IsNegative() {
		categories[CatStockGains] = decimal.Zero
		categories[CatStockLossCarry] = stockNet.Neg()
	} else {
		categories[CatStockGains] = stockNet
		categories[CatStockLossCarry] = decimal.Zero
	}

	// 2. Derivative pot, with the statutory offset cap.
	usable := decimal.Min(pots.DerivativeLosses, pots.DerivativeGains)
	if limit := decimal.NewFromFloat(policy.DerivativeLossCap); limit.IsPositive() {
		usable = decimal.Min(usable, limit)
	}
	categories[CatDerivative] = pots.DerivativeGains.Sub(usable)
	categories[CatDerivativeLossExcess] = pots.DerivativeLosses.Sub(usable)

	// 3. General pot nets freely.
	generalNet := pots.GeneralGains.Sub(pots.GeneralLosses)
	if generalNet.IsNegative() {
		categories[CatGeneral] = decimal.Zero
		categories[CatGeneralLossCarry] = generalNet.Neg()
	} else {
		categories[CatGeneral] = generalNet
		categories[CatGeneralLossCarry] = decimal.Zero
	}

	categories[CatFundIncome] = pots.FundNetIncome
	categories[CatDividends] = dividends
	categories[CatInterest] = interest
	categories[CatOtherIncome] = other
	categories[CatSection23] = section23

	var vorabTotal decimal.Decimal
	for _, v := range vorab {
		vorabTotal = vorabTotal.Add(v.Net.Decimal())
	}
	categories[CatVorabpauschale] = vorabTotal

	byCountry := make(map[string]decimal.Decimal)
	var taxTotal decimal.Decimal
	for _, l := range links {
		tax := l.Tax.Decimal()
		taxTotal = taxTotal.Add(tax)
		country := l.Country
		if country == "" {
			country = "unknown"
		}
		byCountry[country] = byCountry[country].Add(tax)
	}
	categories[CatWithholdingTax] = taxTotal

	for k, v := range categories {
		categories[k] = rounding.QuantizeDecimal(v)
	}
	for k, v := range byCountry {
		byCountry[k] = rounding.QuantizeDecimal(v)
	}

	return LossOffsettingResult{
		Categories:           categories,
		WithholdingByCountry: byCountry,
		Pots:                 pots,
	}
}
