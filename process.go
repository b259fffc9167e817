package kapsteuer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kapsteuer/date"
)

// section23Days is the speculative holding period for private sales of
// assets outside standard capital-gains treatment.
const section23Days = 365

// processEvent dispatches one event to its handler. The switch is exhaustive
// over the closed event set; an unhandled kind is a programming error
// surfaced as an error, not a silent skip.
func processEvent(ev Event, ledger *LotLedger, ctx *runContext) ([]RealizedGainLoss, []IncomeRecord, error) {
	info, err := ctx.dir.Resolve(ev.AssetID())
	if err != nil {
		return nil, nil, fmt.Errorf("event %s: %w", ev.EventID(), err)
	}

	switch v := ev.(type) {
	case Acquisition:
		return nil, nil, processAcquisition(v, ledger, info)
	case Disposal:
		gains, err := processDisposal(v, ledger, ctx, info)
		return gains, nil, err
	case ForwardSplit:
		ledger.ApplySplit(v.Numerator, v.Denominator)
		return nil, nil, nil
	case CashMerger:
		return processCashMerger(v, ledger, ctx, info), nil, nil
	case StockMerger:
		return nil, nil, processStockMerger(v, ledger, ctx)
	case StockDividend:
		income := processStockDividend(v, ledger, ctx, info)
		return nil, income, nil
	case Distribution:
		return nil, []IncomeRecord{distributionIncome(v, ctx, info)}, nil
	case InterestReceived:
		return nil, []IncomeRecord{interestIncome(v, ctx)}, nil
	case AccruedInterestPaid:
		return nil, []IncomeRecord{accruedInterestIncome(v, ctx)}, nil
	case CapitalRepayment:
		income := processCapitalRepayment(v, ledger, ctx, info)
		return nil, income, nil
	case WithholdingTax:
		// Withholding is linked to income events after the primary pass;
		// it never touches the lot structure.
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unhandled event kind %q (%T)", ev.Kind(), ev)
	}
}

func processAcquisition(ev Acquisition, ledger *LotLedger, info AssetInfo) error {
	cost := ev.AmountEUR.Add(ev.FeesEUR)
	ledger.Push(Lot{
		AcquiredOn:  ev.When(),
		Remaining:   ev.Quantity,
		UnitCost:    cost.Div(ev.Quantity),
		FundType:    info.FundType,
		SourceEvent: ev.EventID(),
	})
	return nil
}

func processDisposal(ev Disposal, ledger *LotLedger, ctx *runContext, info AssetInfo) ([]RealizedGainLoss, error) {
	fragments, err := ledger.Consume(ev.Quantity, ev.When())
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.EventID(), err)
	}

	rtype := RealizationSale
	if ev.OptionExercise {
		rtype = RealizationOptionExercise
	}

	proceeds := ev.AmountEUR.Sub(ev.FeesEUR)
	gains := make([]RealizedGainLoss, 0, len(fragments))
	for _, frag := range fragments {
		// Proceeds are allocated pro-rata by quantity.
		part := proceeds.Mul(frag.Quantity).Div(ev.Quantity)
		gains = append(gains, newRealized(ctx, ev.When(), ev.EventID(), ev.AssetID(), info, rtype, frag, part))
	}
	return gains, nil
}

func processCashMerger(ev CashMerger, ledger *LotLedger, ctx *runContext, info AssetInfo) []RealizedGainLoss {
	fragments := ledger.DrainAll()
	gains := make([]RealizedGainLoss, 0, len(fragments))
	for _, frag := range fragments {
		part := ev.CashPerShareEUR.Mul(frag.Quantity)
		gains = append(gains, newRealized(ctx, ev.When(), ev.EventID(), ev.AssetID(), info, RealizationMergerCash, frag, part))
	}
	return gains
}

// processStockMerger closes the old position without recognizing a gain and
// pushes a replacement lot onto the new asset's ledger. Cost basis and the
// earliest acquisition date carry over (continuation of basis). The push is
// safe without further locking: Run keeps merger-linked assets in the same
// batch group, so one goroutine owns both ledgers.
func processStockMerger(ev StockMerger, ledger *LotLedger, ctx *runContext) error {
	info, err := ctx.dir.Resolve(ev.NewAsset)
	if err != nil {
		return &UnresolvedMergerError{Asset: ev.AssetID(), NewAsset: ev.NewAsset, EventID: ev.EventID()}
	}

	fragments := ledger.DrainAll()
	if len(fragments) == 0 {
		return nil
	}
	var oldQty Quantity
	var cost Money
	acquired := fragments[0].AcquiredOn
	for _, frag := range fragments {
		oldQty = oldQty.Add(frag.Quantity)
		cost = cost.Add(frag.Cost())
		if frag.AcquiredOn.Before(acquired) {
			acquired = frag.AcquiredOn
		}
	}

	newQty := oldQty.Mul(Q(ev.Numerator)).Div(Q(ev.Denominator))
	ctx.ledgerFor(ev.NewAsset).Push(Lot{
		AcquiredOn:  acquired,
		Remaining:   newQty,
		UnitCost:    cost.Div(newQty),
		FundType:    info.FundType,
		SourceEvent: ev.EventID(),
	})
	return nil
}

func processStockDividend(ev StockDividend, ledger *LotLedger, ctx *runContext, info AssetInfo) []IncomeRecord {
	unitCost := EUR(0)
	var income []IncomeRecord
	if ev.Taxable {
		unitCost = ev.FMVPerShareEUR
		fmv := ev.FMVPerShareEUR.Mul(ev.Quantity)
		income = append(income, IncomeRecord{
			EventID:   ev.EventID(),
			Asset:     ev.AssetID(),
			Date:      ev.When(),
			Type:      IncomeOtherCapital,
			Gross:     ctx.rounding.Quantize(fmv),
			Exemption: decimal.Zero,
			ExemptEUR: EUR(0),
			Taxable:   ctx.rounding.Quantize(fmv),
		})
	}
	ledger.Push(Lot{
		AcquiredOn:  ev.When(),
		Remaining:   ev.Quantity,
		UnitCost:    unitCost,
		FundType:    info.FundType,
		SourceEvent: ev.EventID(),
	})
	return income
}

func distributionIncome(ev Distribution, ctx *runContext, info AssetInfo) IncomeRecord {
	itype := IncomeDividend
	rate := decimal.Zero
	if info.Category == CategoryFund {
		itype = IncomeDistribution
		rate = info.FundType.ExemptionRate()
	}
	gross := ev.AmountEUR
	exempt := gross.MulRate(rate)
	return IncomeRecord{
		EventID:   ev.EventID(),
		Asset:     ev.AssetID(),
		Date:      ev.When(),
		Type:      itype,
		Gross:     ctx.rounding.Quantize(gross),
		Exemption: rate,
		ExemptEUR: ctx.rounding.Quantize(exempt),
		Taxable:   ctx.rounding.Quantize(gross.Sub(exempt)),
		Country:   ev.Country,
	}
}

func interestIncome(ev InterestReceived, ctx *runContext) IncomeRecord {
	return IncomeRecord{
		EventID:   ev.EventID(),
		Asset:     ev.AssetID(),
		Date:      ev.When(),
		Type:      IncomeInterest,
		Gross:     ctx.rounding.Quantize(ev.AmountEUR),
		Exemption: decimal.Zero,
		ExemptEUR: EUR(0),
		Taxable:   ctx.rounding.Quantize(ev.AmountEUR),
	}
}

// accruedInterestIncome books Stückzinsen paid as negative interest income.
func accruedInterestIncome(ev AccruedInterestPaid, ctx *runContext) IncomeRecord {
	neg := ev.AmountEUR.Neg()
	return IncomeRecord{
		EventID:   ev.EventID(),
		Asset:     ev.AssetID(),
		Date:      ev.When(),
		Type:      IncomeNegInterest,
		Gross:     ctx.rounding.Quantize(neg),
		Exemption: decimal.Zero,
		ExemptEUR: EUR(0),
		Taxable:   ctx.rounding.Quantize(neg),
	}
}

func processCapitalRepayment(ev CapitalRepayment, ledger *LotLedger, ctx *runContext, info AssetInfo) []IncomeRecord {
	_, excess := ledger.ReduceCost(ev.AmountEUR)
	if !excess.IsPositive() {
		return nil
	}
	// Repayment beyond the remaining cost basis is taxable dividend income.
	rate := decimal.Zero
	if info.Category == CategoryFund {
		rate = info.FundType.ExemptionRate()
	}
	exempt := excess.MulRate(rate)
	return []IncomeRecord{{
		EventID:      ev.EventID(),
		Asset:        ev.AssetID(),
		Date:         ev.When(),
		Type:         IncomeDividend,
		Gross:        ctx.rounding.Quantize(excess),
		Exemption:    rate,
		ExemptEUR:    ctx.rounding.Quantize(exempt),
		Taxable:      ctx.rounding.Quantize(excess.Sub(exempt)),
		Reclassified: true,
	}}
}

// newRealized builds one RealizedGainLoss from a consumption fragment. All
// reported amounts are quantized here, once.
func newRealized(ctx *runContext, on date.Date, eventID, asset string, info AssetInfo, rtype RealizationType, frag Consumption, proceeds Money) RealizedGainLoss {
	cost := frag.Cost()
	gross := proceeds.Sub(cost)

	rate := decimal.Zero
	if info.Category == CategoryFund {
		// Partial exemption uses the fund type the lot was acquired under.
		rate = frag.FundType.ExemptionRate()
	}
	exempt := gross.MulRate(rate)
	net := gross.Sub(exempt)

	days := date.DaysBetween(frag.AcquiredOn, on)
	return RealizedGainLoss{
		ID:          uuid.NewString(),
		Asset:       asset,
		Category:    info.Category,
		Type:        rtype,
		RealizedOn:  on,
		AcquiredOn:  frag.AcquiredOn,
		Quantity:    frag.Quantity,
		Proceeds:    ctx.rounding.Quantize(proceeds),
		CostBasis:   ctx.rounding.Quantize(cost),
		Gross:       ctx.rounding.Quantize(gross),
		FundType:    frag.FundType,
		Exemption:   rate,
		ExemptEUR:   ctx.rounding.Quantize(exempt),
		Net:         ctx.rounding.Quantize(net),
		HoldingDays: days,
		Section23:   info.Category == CategoryOther && days <= section23Days,
		SourceEvent: eventID,
	}
}
