package kapsteuer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapsteuer/date"
)

func TestRun_EndToEnd(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)),
		NewAcquisition(date.MustParse("2023-02-15"), "ACME", Q(50), EUR(600)),
		NewDisposal(date.MustParse("2023-06-01"), "ACME", Q(120), EUR(1500)),
		NewAcquisition(date.MustParse("2023-01-20"), "EQF", Q(10), EUR(1000)),
		NewDistribution(date.MustParse("2023-05-15"), "EQF", EUR(100)),
		NewWithholdingTax(date.MustParse("2023-05-15"), "EQF", EUR(15), "LU"),
		NewInterestReceived(date.MustParse("2023-07-01"), "BOND", EUR(30)),
	}

	res, err := Run(events, testDirectory())
	require.NoError(t, err)
	require.Len(t, res.Gains, 2, "two FIFO fragments from the 120-unit disposal")
	require.Len(t, res.Income, 2)

	assert.True(t, res.Gains[0].Gross.Equal(EUR(250)))
	assert.True(t, res.Gains[1].Gross.Equal(EUR(10)))

	cats := res.Offsetting.Categories
	assert.True(t, decimal.NewFromInt(260).Equal(cats[CatStockGains]), "stock gains = %v", cats[CatStockGains])
	assert.True(t, decimal.NewFromInt(70).Equal(cats[CatFundIncome]), "fund income after 30%% exemption = %v", cats[CatFundIncome])
	assert.True(t, decimal.NewFromInt(30).Equal(cats[CatInterest]))
	assert.True(t, decimal.NewFromInt(15).Equal(cats[CatWithholdingTax]))
	assert.True(t, decimal.NewFromInt(15).Equal(res.Offsetting.WithholdingByCountry["LU"]))

	require.Len(t, res.Links, 1)
	assert.Equal(t, DefaultPolicy().Linker.ExactScore, res.Links[0].Confidence)

	assert.True(t, res.Positions["ACME"].Equal(Q(30)))
	assert.True(t, res.Positions["EQF"].Equal(Q(10)))
}

// gainKey projects a realization onto its comparable fields; event ids are
// freshly generated each run and must not take part in the comparison.
func gainKey(g RealizedGainLoss) string {
	return fmt.Sprintf("%s|%s|%s|%s|%v|%v|%v|%v|%d|%t",
		g.Asset, g.Type, g.RealizedOn, g.AcquiredOn, g.Quantity, g.Proceeds, g.Gross, g.Net, g.HoldingDays, g.Section23)
}

func incomeKey(r IncomeRecord) string {
	return fmt.Sprintf("%s|%s|%s|%v|%v|%t", r.Asset, r.Type, r.Date, r.Gross, r.Taxable, r.Reclassified)
}

func TestRun_WorkerCountDoesNotChangeResults(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)),
		NewDisposal(date.MustParse("2023-03-01"), "ACME", Q(40), EUR(700)),
		NewAcquisition(date.MustParse("2023-01-15"), "EQF", Q(20), EUR(2000)),
		NewDisposal(date.MustParse("2023-08-01"), "EQF", Q(5), EUR(650)),
		NewDistribution(date.MustParse("2023-04-01"), "EQF", EUR(60)),
		NewAcquisition(date.MustParse("2023-02-01"), "GOLD", Q(10), EUR(500)),
		NewDisposal(date.MustParse("2023-09-01"), "GOLD", Q(10), EUR(900)),
		NewAcquisition(date.MustParse("2023-02-01"), "OPT", Q(3), EUR(300)),
		NewDisposal(date.MustParse("2023-02-20"), "OPT", Q(3), EUR(150)),
		NewInterestReceived(date.MustParse("2023-07-01"), "BOND", EUR(30)),
	}

	single, err := Run(events, testDirectory(), WithWorkers(1))
	require.NoError(t, err)
	parallel, err := Run(events, testDirectory(), WithWorkers(4))
	require.NoError(t, err)

	require.Equal(t, len(single.Gains), len(parallel.Gains))
	for i := range single.Gains {
		assert.Equal(t, gainKey(single.Gains[i]), gainKey(parallel.Gains[i]), "gain %d", i)
	}
	require.Equal(t, len(single.Income), len(parallel.Income))
	for i := range single.Income {
		assert.Equal(t, incomeKey(single.Income[i]), incomeKey(parallel.Income[i]), "income %d", i)
	}
	for cat, v := range single.Offsetting.Categories {
		assert.True(t, v.Equal(parallel.Offsetting.Categories[cat]), "category %s", cat)
	}
	for asset, q := range single.Positions {
		assert.True(t, q.Equal(parallel.Positions[asset]), "position %s", asset)
	}
}

func TestRun_FailedAssetDoesNotBlockOthers(t *testing.T) {
	events := []Event{
		NewDisposal(date.MustParse("2023-06-01"), "ACME", Q(10), EUR(100)), // nothing acquired
		NewInterestReceived(date.MustParse("2023-07-01"), "BOND", EUR(30)),
	}

	res, err := Run(events, testDirectory())
	require.Error(t, err)
	require.NotNil(t, res, "partial results must survive a failed stream")

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "ACME", res.Failures[0].Asset)
	assert.Contains(t, err.Error(), "1 of 2 asset streams failed")

	require.Len(t, res.Income, 1)
	assert.Equal(t, "BOND", res.Income[0].Asset)
	assert.Empty(t, res.Gains)
}

func TestRun_UnresolvableMergerFailsOnlySourceAsset(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)),
		NewStockMerger(date.MustParse("2023-06-01"), "ACME", "GHOST", 1, 2),
		NewInterestReceived(date.MustParse("2023-07-01"), "BOND", EUR(30)),
	}

	res, err := Run(events, testDirectory())
	require.Error(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "ACME", res.Failures[0].Asset)
	assert.True(t, strings.Contains(res.Failures[0].Reason, "GHOST"))

	require.Len(t, res.Income, 1)
	assert.Equal(t, "BOND", res.Income[0].Asset)
}

func TestRun_DisposalOfMergerReplacement(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)),
		NewStockMerger(date.MustParse("2023-06-01"), "ACME", "NEWCO", 1, 2),
		NewDisposal(date.MustParse("2023-12-01"), "NEWCO", Q(50), EUR(1400)),
	}

	// Merger-linked assets share one batch group, so the replacement lot is
	// already in place when the NEWCO disposal runs, at any worker count.
	for _, workers := range []int{1, 4} {
		res, err := Run(events, testDirectory(), WithWorkers(workers))
		require.NoError(t, err, "workers=%d", workers)
		require.Len(t, res.Gains, 1)

		g := res.Gains[0]
		assert.Equal(t, "NEWCO", g.Asset)
		assert.True(t, g.CostBasis.Equal(EUR(1000)), "cost basis = %v, want carried-over 1000.00", g.CostBasis)
		assert.True(t, g.Gross.Equal(EUR(400)))
		assert.Equal(t, date.MustParse("2023-01-10"), g.AcquiredOn)
		assert.True(t, res.Positions["ACME"].IsZero())
		assert.True(t, res.Positions["NEWCO"].IsZero())
	}
}

func TestRun_SameDayOrdering(t *testing.T) {
	// Arrival order lists the disposal before the split; the split still runs
	// first on that day, so the disposal consumes post-split units.
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(10), EUR(1000)),
		NewDisposal(date.MustParse("2023-03-01"), "ACME", Q(10), EUR(600)),
		NewForwardSplit(date.MustParse("2023-03-01"), "ACME", 2, 1),
	}

	res, err := Run(events, testDirectory())
	require.NoError(t, err)
	require.Len(t, res.Gains, 1)
	// 10 of 20 post-split units at unit cost 50: cost basis 500.
	assert.True(t, res.Gains[0].CostBasis.Equal(EUR(500)), "cost basis = %v", res.Gains[0].CostBasis)
	assert.True(t, res.Positions["ACME"].Equal(Q(10)))
}

func TestRun_Reconciliation(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)),
		NewDisposal(date.MustParse("2023-06-01"), "ACME", Q(40), EUR(500)),
	}
	reported := map[string]Quantity{
		"ACME": Q(55), // broker says 55, we calculate 60
		"BOND": Q(3),  // never seen in the event stream
	}

	res, err := Run(events, testDirectory(), WithReportedQuantities(reported))
	require.NoError(t, err)
	require.Len(t, res.Reconciliation, 2)

	acme := res.Reconciliation[0]
	assert.Equal(t, "ACME", acme.Asset)
	assert.True(t, acme.Calculated.Equal(Q(60)))
	assert.True(t, acme.Diff.Equal(Q(5)))

	bond := res.Reconciliation[1]
	assert.Equal(t, "BOND", bond.Asset)
	assert.True(t, bond.Diff.Equal(Q(-3)))
}

func TestRun_VorabpauschaleFlowsIntoOffsetting(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-20"), "EQF", Q(10), EUR(10000)),
	}
	values := []FundYearValue{{
		Asset:         "EQF",
		StartValue:    EUR(10000),
		EndValue:      EUR(10500),
		Distributions: EUR(50),
	}}

	res, err := Run(events, testDirectory(), WithVorabpauschale(2023, values))
	require.NoError(t, err)
	require.Len(t, res.Vorab, 1)
	assert.True(t, res.Vorab[0].Net.Equal(EUR(89.95)))
	assert.True(t, decimal.NewFromFloat(89.95).Equal(res.Offsetting.Categories[CatVorabpauschale]))
}

func TestRun_UnknownFundFailsOnlyItsVorabRecord(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)),
		NewDisposal(date.MustParse("2023-06-01"), "ACME", Q(40), EUR(700)),
		NewAcquisition(date.MustParse("2023-01-20"), "EQF", Q(10), EUR(10000)),
		NewInterestReceived(date.MustParse("2023-07-01"), "BOND", EUR(30)),
	}
	values := []FundYearValue{
		{Asset: "EQF", StartValue: EUR(10000), EndValue: EUR(10500), Distributions: EUR(50)},
		{Asset: "NOPE", StartValue: EUR(100), EndValue: EUR(110)},
	}

	res, err := Run(events, testDirectory(), WithVorabpauschale(2023, values))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Contains(t, err.Error(), "1 of 4 asset streams failed")

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "NOPE", res.Failures[0].Asset)

	// The healthy fund, the trades and the downstream stages all survive.
	require.Len(t, res.Vorab, 1)
	assert.Equal(t, "EQF", res.Vorab[0].Asset)
	require.Len(t, res.Gains, 1)
	require.Len(t, res.Income, 1)
	assert.True(t, decimal.NewFromFloat(89.95).Equal(res.Offsetting.Categories[CatVorabpauschale]))
	assert.True(t, res.Positions["ACME"].Equal(Q(60)))
}

func TestRun_MonthsHeldDerivedFromAcquisition(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-06-10"), "EQF", Q(10), EUR(10000)),
	}
	values := []FundYearValue{{
		Asset:      "EQF",
		StartValue: EUR(10000),
		EndValue:   EUR(10500),
	}}

	res, err := Run(events, testDirectory(), WithVorabpauschale(2023, values))
	require.NoError(t, err)
	require.Len(t, res.Vorab, 1)
	// Bought in June: 7 months held, 178.50 * 7/12 = 104.125 rounds to 104.13.
	assert.True(t, res.Vorab[0].BaseReturn.Equal(EUR(104.13)), "base return = %v", res.Vorab[0].BaseReturn)
}

func TestRun_MergerPartnerFailureIsVisible(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(100), EUR(1000)),
		NewStockMerger(date.MustParse("2023-06-01"), "ACME", "NEWCO", 1, 2),
		NewDisposal(date.MustParse("2023-07-01"), "NEWCO", Q(50), EUR(700)),
		NewDisposal(date.MustParse("2023-08-01"), "NEWCO", Q(250), EUR(100)), // exceeds the 150 left
	}

	res, err := Run(events, testDirectory())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 asset streams failed")

	// The NEWCO overdraw discards the whole group's output, so ACME gets its
	// own failure entry naming the culprit instead of vanishing silently.
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "NEWCO", res.Failures[0].Asset)
	assert.Equal(t, "ACME", res.Failures[1].Asset)
	assert.Contains(t, res.Failures[1].Reason, "merger partner NEWCO")
	assert.Equal(t, res.Failures[0].EventID, res.Failures[1].EventID)
	assert.Empty(t, res.Gains)
}

func TestRun_InvalidEventAbortsEarly(t *testing.T) {
	events := []Event{
		NewAcquisition(date.MustParse("2023-01-10"), "ACME", Q(-5), EUR(1000)),
	}
	res, err := Run(events, testDirectory())
	assert.Error(t, err)
	assert.Nil(t, res, "validation failures reject the whole input")
}
