package kapsteuer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kapsteuer/date"
)

// EventKind is a typed string identifying a financial event variant.
type EventKind string

// Event kinds. The set is closed: processEvent matches exhaustively over it.
const (
	KindAcquisition         EventKind = "acquisition"
	KindDisposal            EventKind = "disposal"
	KindForwardSplit        EventKind = "forward-split"
	KindCashMerger          EventKind = "cash-merger"
	KindStockMerger         EventKind = "stock-merger"
	KindStockDividend       EventKind = "stock-dividend"
	KindDistribution        EventKind = "distribution"
	KindWithholdingTax      EventKind = "withholding-tax"
	KindInterestReceived    EventKind = "interest"
	KindAccruedInterestPaid EventKind = "accrued-interest-paid"
	KindCapitalRepayment    EventKind = "capital-repayment"
)

// Event is the closed interface over all financial event variants.
// Events are immutable records of one external occurrence; amounts carry the
// reporting-currency value converted at the event-date rate by the ingestion
// collaborator.
type Event interface {
	Kind() EventKind // Kind returns the event variant.
	When() date.Date // When returns the date the event occurred.
	AssetID() string // AssetID returns the asset the event belongs to.
	EventID() string // EventID returns the unique event identifier.
	// Validate checks the event and returns it with defaults applied
	// (a generated id when none was set).
	Validate() (Event, error)
}

type baseEvent struct {
	Event EventKind `json:"event"`        // Event identifies the variant.
	ID    string    `json:"id,omitempty"` // ID is the unique event identifier.
	Date  date.Date `json:"date"`         // Date is when the event occurred.
}

func (e baseEvent) Kind() EventKind { return e.Event }
func (e baseEvent) When() date.Date { return e.Date }
func (e baseEvent) EventID() string { return e.ID }

// validate checks the base fields and assigns a fresh id when missing.
func (e *baseEvent) validate() error {
	if e.Date.IsZero() {
		return errors.New("event date is missing")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// assetEvent is the component shared by all asset-bound events.
type assetEvent struct {
	baseEvent
	Asset string `json:"asset"` // Asset is the identifier of the asset involved.
}

func (e assetEvent) AssetID() string { return e.Asset }

func (e *assetEvent) validate() error {
	if err := e.baseEvent.validate(); err != nil {
		return err
	}
	if e.Asset == "" {
		return errors.New("asset identifier is missing")
	}
	return nil
}

// --- Acquisition ---

// Acquisition records a purchase of an asset. Cost basis of the resulting lot
// is AmountEUR plus FeesEUR.
type Acquisition struct {
	assetEvent
	Quantity  Quantity `json:"quantity"`
	Amount    Money    `json:"amount"`            // gross amount in local currency
	AmountEUR Money    `json:"amountEUR"`         // gross amount in reporting currency
	FeesEUR   Money    `json:"feesEUR,omitempty"` // transaction fees in reporting currency
}

func NewAcquisition(on date.Date, asset string, qty Quantity, amountEUR Money) Acquisition {
	return Acquisition{
		assetEvent: assetEvent{baseEvent: baseEvent{Event: KindAcquisition, Date: on}, Asset: asset},
		Quantity:   qty,
		Amount:     amountEUR,
		AmountEUR:  amountEUR,
	}
}

func (e Acquisition) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if !e.Quantity.IsPositive() {
		return e, fmt.Errorf("acquisition quantity must be positive, got %v", e.Quantity)
	}
	return e, nil
}

// --- Disposal ---

// Disposal records a sale of an asset. OptionExercise marks disposals caused
// by an option exercise or assignment, which report a different realization
// type.
type Disposal struct {
	assetEvent
	Quantity       Quantity `json:"quantity"`
	Amount         Money    `json:"amount"`
	AmountEUR      Money    `json:"amountEUR"` // total proceeds in reporting currency
	FeesEUR        Money    `json:"feesEUR,omitempty"`
	OptionExercise bool     `json:"optionExercise,omitempty"`
}

func NewDisposal(on date.Date, asset string, qty Quantity, proceedsEUR Money) Disposal {
	return Disposal{
		assetEvent: assetEvent{baseEvent: baseEvent{Event: KindDisposal, Date: on}, Asset: asset},
		Quantity:   qty,
		Amount:     proceedsEUR,
		AmountEUR:  proceedsEUR,
	}
}

func (e Disposal) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if !e.Quantity.IsPositive() {
		return e, fmt.Errorf("disposal quantity must be positive, got %v", e.Quantity)
	}
	return e, nil
}

// --- ForwardSplit ---

// ForwardSplit multiplies every open lot's quantity by Numerator/Denominator
// and divides unit cost by the same ratio. Total cost basis is unchanged.
type ForwardSplit struct {
	assetEvent
	Numerator   int64 `json:"num"`
	Denominator int64 `json:"den"`
}

func NewForwardSplit(on date.Date, asset string, num, den int64) ForwardSplit {
	return ForwardSplit{
		assetEvent:  assetEvent{baseEvent: baseEvent{Event: KindForwardSplit, Date: on}, Asset: asset},
		Numerator:   num,
		Denominator: den,
	}
}

func (e ForwardSplit) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if e.Numerator <= 0 {
		return e, fmt.Errorf("split numerator must be positive, got %d", e.Numerator)
	}
	if e.Denominator <= 0 {
		return e, fmt.Errorf("split denominator must be positive, got %d", e.Denominator)
	}
	return e, nil
}

// --- CashMerger ---

// CashMerger records the position being bought out for cash. Processed as a
// full disposal of all open lots at the per-share consideration.
type CashMerger struct {
	assetEvent
	CashPerShareEUR Money  `json:"cashPerShareEUR"`
	Acquirer        string `json:"acquirer,omitempty"`
}

func NewCashMerger(on date.Date, asset string, cashPerShareEUR Money) CashMerger {
	return CashMerger{
		assetEvent:      assetEvent{baseEvent: baseEvent{Event: KindCashMerger, Date: on}, Asset: asset},
		CashPerShareEUR: cashPerShareEUR,
	}
}

func (e CashMerger) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if e.CashPerShareEUR.IsNegative() {
		return e, errors.New("cash merger consideration must not be negative")
	}
	return e, nil
}

// --- StockMerger ---

// StockMerger exchanges the whole position into NewAsset at Numerator new
// shares per Denominator old shares, carrying the aggregate cost basis over
// without recognizing a gain.
type StockMerger struct {
	assetEvent
	NewAsset    string `json:"newAsset"`
	Numerator   int64  `json:"num"`
	Denominator int64  `json:"den"`
}

func NewStockMerger(on date.Date, asset, newAsset string, num, den int64) StockMerger {
	return StockMerger{
		assetEvent:  assetEvent{baseEvent: baseEvent{Event: KindStockMerger, Date: on}, Asset: asset},
		NewAsset:    newAsset,
		Numerator:   num,
		Denominator: den,
	}
}

func (e StockMerger) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if e.NewAsset == "" {
		return e, errors.New("stock merger replacement asset is missing")
	}
	if e.Numerator <= 0 || e.Denominator <= 0 {
		return e, fmt.Errorf("stock merger ratio must be positive, got %d/%d", e.Numerator, e.Denominator)
	}
	return e, nil
}

// --- StockDividend ---

// StockDividend records shares received in lieu of a cash dividend. When
// Taxable, the fair market value is other capital income and becomes the new
// lot's cost basis; otherwise the shares come in at zero cost.
type StockDividend struct {
	assetEvent
	Quantity       Quantity `json:"quantity"`
	FMVPerShareEUR Money    `json:"fmvPerShareEUR,omitempty"`
	Taxable        bool     `json:"taxable,omitempty"`
}

func NewStockDividend(on date.Date, asset string, qty Quantity, fmvPerShareEUR Money, taxable bool) StockDividend {
	return StockDividend{
		assetEvent:     assetEvent{baseEvent: baseEvent{Event: KindStockDividend, Date: on}, Asset: asset},
		Quantity:       qty,
		FMVPerShareEUR: fmvPerShareEUR,
		Taxable:        taxable,
	}
}

func (e StockDividend) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if !e.Quantity.IsPositive() {
		return e, fmt.Errorf("stock dividend quantity must be positive, got %v", e.Quantity)
	}
	if e.Taxable && !e.FMVPerShareEUR.IsPositive() {
		return e, errors.New("taxable stock dividend requires a positive fair market value")
	}
	return e, nil
}

// --- Distribution ---

// Distribution records a cash dividend or fund distribution.
type Distribution struct {
	assetEvent
	Amount    Money  `json:"amount"`
	AmountEUR Money  `json:"amountEUR"`
	Country   string `json:"country,omitempty"` // source country, for withholding totals
}

func NewDistribution(on date.Date, asset string, amountEUR Money) Distribution {
	return Distribution{
		assetEvent: assetEvent{baseEvent: baseEvent{Event: KindDistribution, Date: on}, Asset: asset},
		Amount:     amountEUR,
		AmountEUR:  amountEUR,
	}
}

func (e Distribution) Validate() (Event, error) {
	return e, e.assetEvent.validate()
}

// --- WithholdingTax ---

// WithholdingTax records foreign tax withheld at source. LinkedEvent, when
// set, names the income event that generated the charge; otherwise the linker
// searches for a plausible candidate.
type WithholdingTax struct {
	assetEvent
	Amount      Money  `json:"amount"`
	AmountEUR   Money  `json:"amountEUR"`
	Country     string `json:"country,omitempty"`
	LinkedEvent string `json:"linkedEvent,omitempty"`
}

func NewWithholdingTax(on date.Date, asset string, amountEUR Money, country string) WithholdingTax {
	return WithholdingTax{
		assetEvent: assetEvent{baseEvent: baseEvent{Event: KindWithholdingTax, Date: on}, Asset: asset},
		Amount:     amountEUR,
		AmountEUR:  amountEUR,
		Country:    country,
	}
}

func (e WithholdingTax) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if e.AmountEUR.IsNegative() {
		return e, errors.New("withholding tax amount must not be negative")
	}
	return e, nil
}

// --- InterestReceived ---

// InterestReceived records coupon or account interest.
type InterestReceived struct {
	assetEvent
	Amount    Money `json:"amount"`
	AmountEUR Money `json:"amountEUR"`
}

func NewInterestReceived(on date.Date, asset string, amountEUR Money) InterestReceived {
	return InterestReceived{
		assetEvent: assetEvent{baseEvent: baseEvent{Event: KindInterestReceived, Date: on}, Asset: asset},
		Amount:     amountEUR,
		AmountEUR:  amountEUR,
	}
}

func (e InterestReceived) Validate() (Event, error) {
	return e, e.assetEvent.validate()
}

// --- AccruedInterestPaid ---

// AccruedInterestPaid records Stückzinsen paid on a bond purchase. It counts
// as negative interest income in the year it is paid.
type AccruedInterestPaid struct {
	assetEvent
	Amount    Money `json:"amount"`
	AmountEUR Money `json:"amountEUR"`
}

func NewAccruedInterestPaid(on date.Date, asset string, amountEUR Money) AccruedInterestPaid {
	return AccruedInterestPaid{
		assetEvent: assetEvent{baseEvent: baseEvent{Event: KindAccruedInterestPaid, Date: on}, Asset: asset},
		Amount:     amountEUR,
		AmountEUR:  amountEUR,
	}
}

func (e AccruedInterestPaid) Validate() (Event, error) {
	return e, e.assetEvent.validate()
}

// --- CapitalRepayment ---

// CapitalRepayment reduces the open lots' cost basis oldest-first. Any excess
// over the remaining cost basis is reclassified as taxable dividend income.
type CapitalRepayment struct {
	assetEvent
	Amount    Money `json:"amount"`
	AmountEUR Money `json:"amountEUR"`
}

func NewCapitalRepayment(on date.Date, asset string, amountEUR Money) CapitalRepayment {
	return CapitalRepayment{
		assetEvent: assetEvent{baseEvent: baseEvent{Event: KindCapitalRepayment, Date: on}, Asset: asset},
		Amount:     amountEUR,
		AmountEUR:  amountEUR,
	}
}

func (e CapitalRepayment) Validate() (Event, error) {
	if err := e.assetEvent.validate(); err != nil {
		return e, err
	}
	if e.AmountEUR.IsNegative() {
		return e, errors.New("capital repayment amount must not be negative")
	}
	return e, nil
}

// eventRank orders same-day events deterministically: corporate actions
// first, then trades, then income and tax events. Within a rank, input
// arrival order decides.
func eventRank(k EventKind) int {
	switch k {
	case KindForwardSplit, KindCashMerger, KindStockMerger, KindStockDividend:
		return 0
	case KindAcquisition, KindDisposal:
		return 1
	default:
		return 2
	}
}
