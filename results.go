package kapsteuer

import (
	"github.com/shopspring/decimal"

	"kapsteuer/date"
)

// RealizationType identifies what kind of disposal produced a realization.
type RealizationType string

const (
	RealizationSale           RealizationType = "sale"
	RealizationOptionExercise RealizationType = "option-exercise"
	RealizationMergerCash     RealizationType = "merger-cash"
)

// RealizedGainLoss is the outcome of matching one disposal fragment against
// one acquisition lot. Immutable once created; amounts are quantized by the
// run's rounding policy when the record is built.
type RealizedGainLoss struct {
	ID          string          `json:"id"`
	Asset       string          `json:"asset"`
	Category    AssetCategory   `json:"category"`
	Type        RealizationType `json:"type"`
	RealizedOn  date.Date       `json:"realizedOn"`
	AcquiredOn  date.Date       `json:"acquiredOn"`
	Quantity    Quantity        `json:"quantity"`
	Proceeds    Money           `json:"proceeds"`
	CostBasis   Money           `json:"costBasis"`
	Gross       Money           `json:"gross"` // proceeds - cost basis
	FundType    FundType        `json:"fundType,omitempty"`
	Exemption   decimal.Decimal `json:"exemptionRate"` // Teilfreistellung rate applied
	ExemptEUR   Money           `json:"exemptionEUR"`
	Net         Money           `json:"net"` // gross after partial exemption
	HoldingDays int             `json:"holdingDays"`
	Section23   bool            `json:"section23"` // taxable under §23 speculative-period rules
	SourceEvent string          `json:"sourceEvent"`
}

// IncomeType classifies a capital income record for pot routing.
type IncomeType string

const (
	IncomeDividend     IncomeType = "dividend"
	IncomeDistribution IncomeType = "distribution"
	IncomeInterest     IncomeType = "interest"
	IncomeNegInterest  IncomeType = "negative-interest"
	IncomeOtherCapital IncomeType = "other-capital"
)

// IncomeRecord is the income analog of RealizedGainLoss: one cash-flow-class
// event's taxable outcome, after any partial exemption.
type IncomeRecord struct {
	EventID      string          `json:"eventID"`
	Asset        string          `json:"asset"`
	Date         date.Date       `json:"date"`
	Type         IncomeType      `json:"type"`
	Gross        Money           `json:"gross"`
	Exemption    decimal.Decimal `json:"exemptionRate"`
	ExemptEUR    Money           `json:"exemptionEUR"`
	Taxable      Money           `json:"taxable"`
	Country      string          `json:"country,omitempty"`
	Reclassified bool            `json:"reclassified,omitempty"` // capital repayment excess turned dividend
}

// WithholdingLink associates a withholding-tax event with the income event
// that plausibly generated it. Confidence 0 means unlinked; the tax amount
// still counts toward per-country totals.
type WithholdingLink struct {
	WithholdingEvent string `json:"withholdingEvent"`
	IncomeEvent      string `json:"incomeEvent,omitempty"`
	Confidence       int    `json:"confidence"`
	Tax              Money  `json:"tax"`
	TaxedIncome      Money  `json:"taxedIncome"`
	Country          string `json:"country,omitempty"`
}

// VorabpauschaleData is the advance lump-sum tax computation for one fund and
// one tax year. Funds with zero or negative growth still produce a record.
type VorabpauschaleData struct {
	Asset         string          `json:"asset"`
	Year          int             `json:"year"`
	FundType      FundType        `json:"fundType"`
	StartValue    Money           `json:"startValue"`
	EndValue      Money           `json:"endValue"`
	Distributions Money           `json:"distributions"`
	BaseRate      decimal.Decimal `json:"baseRate"`     // statutory Basiszins
	YearFraction  decimal.Decimal `json:"yearFraction"` // months held / 12
	BaseReturn    Money           `json:"baseReturn"`
	Gross         Money           `json:"gross"`
	Exemption     decimal.Decimal `json:"exemptionRate"`
	ExemptEUR     Money           `json:"exemptionEUR"`
	Net           Money           `json:"net"`
}

// ReportingCategory identifies one statutory reporting line.
type ReportingCategory string

const (
	CatStockGains           ReportingCategory = "stock-gains"
	CatStockLossCarry       ReportingCategory = "stock-loss-carry"
	CatDerivative           ReportingCategory = "derivative"
	CatDerivativeLossExcess ReportingCategory = "derivative-loss-excess"
	CatGeneral              ReportingCategory = "general"
	CatGeneralLossCarry     ReportingCategory = "general-loss-carry"
	CatFundIncome           ReportingCategory = "fund-income"
	CatDividends            ReportingCategory = "dividends"
	CatInterest             ReportingCategory = "interest"
	CatOtherIncome          ReportingCategory = "other-income"
	CatSection23            ReportingCategory = "section-23"
	CatWithholdingTax       ReportingCategory = "withholding-tax"
	CatVorabpauschale       ReportingCategory = "vorabpauschale"
)

// PotBalances are the internal accumulation buckets before netting.
type PotBalances struct {
	StockGains       decimal.Decimal `json:"stockGains"`
	StockLosses      decimal.Decimal `json:"stockLosses"`
	DerivativeGains  decimal.Decimal `json:"derivativeGains"`
	DerivativeLosses decimal.Decimal `json:"derivativeLosses"`
	GeneralGains     decimal.Decimal `json:"generalGains"`
	GeneralLosses    decimal.Decimal `json:"generalLosses"`
	FundNetIncome    decimal.Decimal `json:"fundNetIncome"`
}

// LossOffsettingResult maps reporting categories to their netted totals.
// Built once per run by Offset; never mutated afterwards.
type LossOffsettingResult struct {
	Categories           map[ReportingCategory]decimal.Decimal `json:"categories"`
	WithholdingByCountry map[string]decimal.Decimal            `json:"withholdingByCountry"`
	Pots                 PotBalances                           `json:"pots"`
}

// ReconciliationEntry compares the calculated end-of-year quantity of one
// asset against an externally reported snapshot. A non-zero Diff is a
// structured warning, never an error.
type ReconciliationEntry struct {
	Asset      string   `json:"asset"`
	Calculated Quantity `json:"calculated"`
	Reported   Quantity `json:"reported"`
	Diff       Quantity `json:"diff"`
}

// AssetFailure records one asset stream that could not be processed to the
// end. Other assets' outputs are unaffected.
type AssetFailure struct {
	Asset   string `json:"asset"`
	EventID string `json:"eventID,omitempty"`
	Err     error  `json:"-"`
	Reason  string `json:"reason"`
}

func (f AssetFailure) Error() string { return f.Reason }
func (f AssetFailure) Unwrap() error { return f.Err }
