package kapsteuer

import (
	"github.com/shopspring/decimal"

	"kapsteuer/date"
)

// LinkWithholdings associates every withholding-tax event with the income
// record that most plausibly generated it. An explicit link reference wins;
// otherwise the nearest same-asset income within the policy's date window is
// chosen and scored. Linking is best-effort: an unlinked event keeps its tax
// amount (it still counts toward country totals) but carries no taxed-income
// figure and confidence 0.
func LinkWithholdings(events []Event, income []IncomeRecord, policy LinkerPolicy) []WithholdingLink {
	byAsset := make(map[string][]IncomeRecord)
	byID := make(map[string]IncomeRecord)
	for _, rec := range income {
		byAsset[rec.Asset] = append(byAsset[rec.Asset], rec)
		byID[rec.EventID] = rec
	}

	var links []WithholdingLink
	for _, ev := range events {
		wh, ok := ev.(WithholdingTax)
		if !ok {
			continue
		}
		links = append(links, linkOne(wh, byAsset[wh.AssetID()], byID, policy))
	}
	return links
}

func linkOne(wh WithholdingTax, candidates []IncomeRecord, byID map[string]IncomeRecord, policy LinkerPolicy) WithholdingLink {
	link := WithholdingLink{
		WithholdingEvent: wh.EventID(),
		Tax:              wh.AmountEUR,
		Country:          wh.Country,
	}

	if wh.LinkedEvent != "" {
		if rec, ok := byID[wh.LinkedEvent]; ok {
			link.IncomeEvent = rec.EventID
			link.TaxedIncome = rec.Gross
			link.Confidence = policy.ExplicitScore
			return link
		}
		// A dangling reference degrades to the heuristic search.
	}

	best, bestDist := IncomeRecord{}, policy.DateWindowDays+1
	for _, rec := range candidates {
		dist := date.DaysBetween(rec.Date, wh.When())
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist || (dist == bestDist && best.EventID != "" && rec.Date.Before(best.Date)) {
			best, bestDist = rec, dist
		}
	}
	if best.EventID == "" {
		return link // no candidate: confidence 0, unlinked
	}

	link.IncomeEvent = best.EventID
	link.TaxedIncome = best.Gross
	switch {
	case bestDist == 0 && ratePlausible(wh.AmountEUR, best.Gross, policy):
		link.Confidence = policy.ExactScore
	case ratePlausible(wh.AmountEUR, best.Gross, policy):
		link.Confidence = policy.WindowScore
	default:
		link.Confidence = policy.WeakScore
	}
	return link
}

// ratePlausible reports whether tax/income falls inside the policy's band of
// believable withholding rates.
func ratePlausible(tax, gross Money, policy LinkerPolicy) bool {
	if !gross.IsPositive() {
		return false
	}
	rate := tax.Decimal().Div(gross.Decimal())
	return rate.GreaterThanOrEqual(decimal.NewFromFloat(policy.MinRate)) &&
		rate.LessThanOrEqual(decimal.NewFromFloat(policy.MaxRate))
}
