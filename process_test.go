package kapsteuer

import (
	"testing"

	"kapsteuer/date"
)

func testDirectory() StaticDirectory {
	return StaticDirectory{
		"ACME":  {Category: CategoryStock},
		"NEWCO": {Category: CategoryStock},
		"EQF":   {Category: CategoryFund, FundType: FundEquity},
		"BOND":  {Category: CategoryBond},
		"GOLD":  {Category: CategoryOther},
		"OPT":   {Category: CategoryDerivative, Underlying: "ACME"},
	}
}

func newTestContext(t *testing.T) *runContext {
	t.Helper()
	return newRunContext(testDirectory(), DefaultPolicy())
}

// mustProcess validates and processes one event against its asset's ledger.
func mustProcess(t *testing.T, ctx *runContext, ev Event) ([]RealizedGainLoss, []IncomeRecord) {
	t.Helper()
	v, err := ev.Validate()
	if err != nil {
		t.Fatalf("Validate(%s) error = %v", ev.Kind(), err)
	}
	gains, income, err := processEvent(v, ctx.ledgerFor(v.AssetID()), ctx)
	if err != nil {
		t.Fatalf("processEvent(%s) error = %v", v.Kind(), err)
	}
	return gains, income
}

func TestDisposal_TwoLotFIFO(t *testing.T) {
	ctx := newTestContext(t)
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)))
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-03-01"), "ACME", Q(50), EUR(600)))

	gains, _ := mustProcess(t, ctx, NewDisposal(date.MustParse("2023-06-01"), "ACME", Q(120), EUR(1500)))
	if len(gains) != 2 {
		t.Fatalf("disposal produced %d records, want 2 (one per matched lot)", len(gains))
	}

	first := gains[0]
	if !first.Quantity.Equal(Q(100)) || !first.CostBasis.Equal(EUR(1000)) ||
		!first.Proceeds.Equal(EUR(1250)) || !first.Gross.Equal(EUR(250)) {
		t.Errorf("first record = qty %v cost %v proceeds %v gross %v, want 100/1000.00/1250.00/250.00",
			first.Quantity, first.CostBasis, first.Proceeds, first.Gross)
	}
	if first.AcquiredOn != date.MustParse("2023-01-10") {
		t.Errorf("first record acquisition date = %s, want 2023-01-10", first.AcquiredOn)
	}
	if first.HoldingDays != 142 {
		t.Errorf("first record holding days = %d, want 142", first.HoldingDays)
	}
	if first.Type != RealizationSale {
		t.Errorf("first record type = %s, want sale", first.Type)
	}

	second := gains[1]
	if !second.Quantity.Equal(Q(20)) || !second.CostBasis.Equal(EUR(240)) ||
		!second.Proceeds.Equal(EUR(250)) || !second.Gross.Equal(EUR(10)) {
		t.Errorf("second record = qty %v cost %v proceeds %v gross %v, want 20/240.00/250.00/10.00",
			second.Quantity, second.CostBasis, second.Proceeds, second.Gross)
	}

	rest := ctx.ledgerFor("ACME")
	if !rest.TotalQuantity().Equal(Q(30)) || !rest.TotalCost().Equal(EUR(360)) {
		t.Errorf("remaining position = %v units costing %v, want 30 units costing 360.00 EUR",
			rest.TotalQuantity(), rest.TotalCost())
	}
}

func TestDisposal_FundAppliesPartialExemption(t *testing.T) {
	ctx := newTestContext(t)
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2022-04-01"), "EQF", Q(10), EUR(1000)))

	gains, _ := mustProcess(t, ctx, NewDisposal(date.MustParse("2023-04-01"), "EQF", Q(10), EUR(1500)))
	if len(gains) != 1 {
		t.Fatalf("disposal produced %d records, want 1", len(gains))
	}
	g := gains[0]
	if !g.Gross.Equal(EUR(500)) {
		t.Errorf("gross = %v, want 500.00 EUR", g.Gross)
	}
	// Equity fund: 30% Teilfreistellung.
	if !g.ExemptEUR.Equal(EUR(150)) {
		t.Errorf("exempt = %v, want 150.00 EUR", g.ExemptEUR)
	}
	if !g.Net.Equal(EUR(350)) {
		t.Errorf("net = %v, want 350.00 EUR", g.Net)
	}
	if g.FundType != FundEquity {
		t.Errorf("fund type = %q, want equity", g.FundType)
	}
}

func TestForwardSplit_Example(t *testing.T) {
	ctx := newTestContext(t)
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(10), EUR(200)))
	mustProcess(t, ctx, NewForwardSplit(date.MustParse("2023-02-01"), "ACME", 2, 1))

	l := ctx.ledgerFor("ACME")
	lot := l.Lots()[0]
	if !lot.Remaining.Equal(Q(20)) || !lot.UnitCost.Equal(EUR(10)) {
		t.Errorf("after 2-for-1 split: %v units @ %v, want 20 @ 10.00 EUR", lot.Remaining, lot.UnitCost)
	}
	if !l.TotalCost().Equal(EUR(200)) {
		t.Errorf("total cost basis = %v, want unchanged 200.00 EUR", l.TotalCost())
	}
}

func TestCashMerger_RealizesWholePosition(t *testing.T) {
	ctx := newTestContext(t)
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(40), EUR(400)))
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-02-10"), "ACME", Q(60), EUR(900)))

	gains, _ := mustProcess(t, ctx, NewCashMerger(date.MustParse("2023-08-01"), "ACME", EUR(20)))
	if len(gains) != 2 {
		t.Fatalf("cash merger produced %d records, want 2", len(gains))
	}
	for _, g := range gains {
		if g.Type != RealizationMergerCash {
			t.Errorf("realization type = %s, want merger-cash", g.Type)
		}
	}
	if !gains[0].Proceeds.Equal(EUR(800)) || !gains[0].Gross.Equal(EUR(400)) {
		t.Errorf("first record proceeds/gross = %v/%v, want 800.00/400.00", gains[0].Proceeds, gains[0].Gross)
	}
	if ctx.ledgerFor("ACME").Len() != 0 {
		t.Errorf("position not fully closed after cash merger")
	}
}

func TestStockMerger_CarriesBasisToReplacement(t *testing.T) {
	ctx := newTestContext(t)
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)))

	gains, _ := mustProcess(t, ctx, NewStockMerger(date.MustParse("2023-09-01"), "ACME", "NEWCO", 1, 2))
	if len(gains) != 0 {
		t.Fatalf("stock merger must not recognize a gain, got %d records", len(gains))
	}
	if ctx.ledgerFor("ACME").Len() != 0 {
		t.Errorf("old position not closed")
	}

	repl := ctx.ledgerFor("NEWCO")
	if !repl.TotalQuantity().Equal(Q(50)) {
		t.Errorf("replacement quantity = %v, want 50 (1 new per 2 old)", repl.TotalQuantity())
	}
	if !repl.TotalCost().Equal(EUR(1000)) {
		t.Errorf("replacement cost basis = %v, want carried-over 1000.00 EUR", repl.TotalCost())
	}
	if repl.Lots()[0].AcquiredOn != date.MustParse("2023-01-10") {
		t.Errorf("replacement lot acquisition date = %s, want original 2023-01-10", repl.Lots()[0].AcquiredOn)
	}
}

func TestStockDividend_TaxableCreatesIncomeAndLot(t *testing.T) {
	ctx := newTestContext(t)
	_, income := mustProcess(t, ctx, NewStockDividend(date.MustParse("2023-05-01"), "ACME", Q(5), EUR(30), true))
	if len(income) != 1 {
		t.Fatalf("taxable stock dividend produced %d income records, want 1", len(income))
	}
	if income[0].Type != IncomeOtherCapital || !income[0].Taxable.Equal(EUR(150)) {
		t.Errorf("income = %s %v, want other-capital 150.00 EUR", income[0].Type, income[0].Taxable)
	}
	lot := ctx.ledgerFor("ACME").Lots()[0]
	if !lot.UnitCost.Equal(EUR(30)) {
		t.Errorf("lot unit cost = %v, want FMV 30.00 EUR", lot.UnitCost)
	}
}

func TestStockDividend_NonTaxableZeroCost(t *testing.T) {
	ctx := newTestContext(t)
	_, income := mustProcess(t, ctx, NewStockDividend(date.MustParse("2023-05-01"), "ACME", Q(5), EUR(0), false))
	if len(income) != 0 {
		t.Fatalf("non-taxable stock dividend produced %d income records, want 0", len(income))
	}
	lot := ctx.ledgerFor("ACME").Lots()[0]
	if !lot.UnitCost.IsZero() {
		t.Errorf("lot unit cost = %v, want 0", lot.UnitCost)
	}
}

func TestDistribution_FundExemption(t *testing.T) {
	ctx := newTestContext(t)
	_, income := mustProcess(t, ctx, NewDistribution(date.MustParse("2023-07-01"), "EQF", EUR(100)))
	rec := income[0]
	if rec.Type != IncomeDistribution {
		t.Errorf("income type = %s, want distribution", rec.Type)
	}
	if !rec.ExemptEUR.Equal(EUR(30)) || !rec.Taxable.Equal(EUR(70)) {
		t.Errorf("exempt/taxable = %v/%v, want 30.00/70.00 EUR", rec.ExemptEUR, rec.Taxable)
	}
}

func TestCapitalRepayment_ExcessReclassified(t *testing.T) {
	ctx := newTestContext(t)
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-01-10"), "BOND", Q(10), EUR(100)))

	_, income := mustProcess(t, ctx, NewCapitalRepayment(date.MustParse("2023-10-01"), "BOND", EUR(150)))
	if len(income) != 1 {
		t.Fatalf("capital repayment produced %d income records, want 1", len(income))
	}
	rec := income[0]
	if rec.Type != IncomeDividend || !rec.Reclassified {
		t.Errorf("excess record = %s reclassified=%v, want a reclassified dividend", rec.Type, rec.Reclassified)
	}
	if !rec.Taxable.Equal(EUR(50)) {
		t.Errorf("reclassified amount = %v, want 50.00 EUR", rec.Taxable)
	}
	if !ctx.ledgerFor("BOND").TotalCost().IsZero() {
		t.Errorf("cost basis = %v, want 0 after full absorption", ctx.ledgerFor("BOND").TotalCost())
	}
}

func TestAccruedInterestPaid_NegativeIncome(t *testing.T) {
	ctx := newTestContext(t)
	_, income := mustProcess(t, ctx, NewAccruedInterestPaid(date.MustParse("2023-03-15"), "BOND", EUR(12.5)))
	rec := income[0]
	if rec.Type != IncomeNegInterest {
		t.Errorf("income type = %s, want negative-interest", rec.Type)
	}
	if !rec.Taxable.Equal(EUR(-12.5)) {
		t.Errorf("taxable = %v, want -12.50 EUR", rec.Taxable)
	}
}

func TestSection23_HoldingPeriod(t *testing.T) {
	ctx := newTestContext(t)
	mustProcess(t, ctx, NewAcquisition(date.MustParse("2023-01-10"), "GOLD", Q(10), EUR(1000)))
	gains, _ := mustProcess(t, ctx, NewDisposal(date.MustParse("2023-06-01"), "GOLD", Q(5), EUR(700)))
	if !gains[0].Section23 {
		t.Errorf("sale of %q after %d days should be §23-taxable", "GOLD", gains[0].HoldingDays)
	}

	gains, _ = mustProcess(t, ctx, NewDisposal(date.MustParse("2024-06-01"), "GOLD", Q(5), EUR(700)))
	if gains[0].Section23 {
		t.Errorf("sale after %d days must be outside the speculative period", gains[0].HoldingDays)
	}
}

func TestProcessEvent_UnknownAsset(t *testing.T) {
	ctx := newTestContext(t)
	ev, err := NewAcquisition(date.MustParse("2023-01-10"), "NOPE", Q(1), EUR(1)).Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, _, err := processEvent(ev, ctx.ledgerFor("NOPE"), ctx); err == nil {
		t.Fatal("processEvent() with unknown asset should fail")
	}
}
