package kapsteuer

import (
	"fmt"

	"kapsteuer/date"
)

// Lot represents a single acquisition batch of an asset, consumed oldest-first
// on disposal. A lot is owned exclusively by one asset's ledger.
type Lot struct {
	AcquiredOn  date.Date
	Remaining   Quantity // never negative
	UnitCost    Money    // cost basis per unit, reporting currency
	FundType    FundType // fund type at acquisition, FundNone otherwise
	SourceEvent string   // id of the event that created the lot
}

// Cost returns the lot's remaining total cost basis.
func (l Lot) Cost() Money { return l.UnitCost.Mul(l.Remaining) }

// Consumption is one fragment of a FIFO match: the part of a disposal covered
// by a single lot. Disposals emit one realization record per fragment so the
// holding period of each matched lot stays intact.
type Consumption struct {
	AcquiredOn date.Date
	UnitCost   Money
	Quantity   Quantity
	FundType   FundType
}

// Cost returns the cost basis of the consumed fragment.
func (c Consumption) Cost() Money { return c.UnitCost.Mul(c.Quantity) }

// InsufficientLotsError reports a disposal exceeding the open position. It
// signals a data-integrity problem upstream, typically a missed acquisition.
type InsufficientLotsError struct {
	Asset     string
	Requested Quantity
	Available Quantity
	AsOf      date.Date
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("insufficient lots for %s on %s: requested %v, available %v",
		e.Asset, e.AsOf, e.Requested, e.Available)
}

// LotLedger is the ordered collection of open acquisition lots of one asset,
// oldest first. Insertion order is acquisition order; the caller guarantees
// chronological pushes.
type LotLedger struct {
	asset string
	lots  []Lot
}

// NewLotLedger creates an empty ledger for the given asset.
func NewLotLedger(asset string) *LotLedger {
	return &LotLedger{asset: asset}
}

// Asset returns the asset this ledger belongs to.
func (l *LotLedger) Asset() string { return l.asset }

// Len returns the number of open lots.
func (l *LotLedger) Len() int { return len(l.lots) }

// Lots returns a copy of the open lots, oldest first.
func (l *LotLedger) Lots() []Lot {
	out := make([]Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Push appends a lot to the tail. No ordering re-check.
func (l *LotLedger) Push(lot Lot) {
	l.lots = append(l.lots, lot)
}

// EarliestAcquisition returns the oldest open lot's acquisition date.
// The second return is false for an empty ledger.
func (l *LotLedger) EarliestAcquisition() (date.Date, bool) {
	if len(l.lots) == 0 {
		return date.Date{}, false
	}
	earliest := l.lots[0].AcquiredOn
	for _, lot := range l.lots[1:] {
		if lot.AcquiredOn.Before(earliest) {
			earliest = lot.AcquiredOn
		}
	}
	return earliest, true
}

// TotalQuantity returns the sum of remaining quantities across lots.
func (l *LotLedger) TotalQuantity() Quantity {
	var total Quantity
	for _, lot := range l.lots {
		total = total.Add(lot.Remaining)
	}
	return total
}

// TotalCost returns the sum of remaining cost bases across lots.
func (l *LotLedger) TotalCost() Money {
	var total Money
	for _, lot := range l.lots {
		total = total.Add(lot.Cost())
	}
	return total
}

// Consume matches the requested quantity against the oldest lots first and
// removes it from the ledger. A partially consumed lot stays at the head with
// its acquisition date and unit cost unchanged. Returns one fragment per
// matched lot, in match order.
func (l *LotLedger) Consume(quantity Quantity, asOf date.Date) ([]Consumption, error) {
	if available := l.TotalQuantity(); quantity.GreaterThan(available) {
		return nil, &InsufficientLotsError{Asset: l.asset, Requested: quantity, Available: available, AsOf: asOf}
	}

	var fragments []Consumption
	remaining := quantity
	for !remaining.IsZero() {
		head := &l.lots[0]
		matched := head.Remaining.Min(remaining)
		fragments = append(fragments, Consumption{
			AcquiredOn: head.AcquiredOn,
			UnitCost:   head.UnitCost,
			Quantity:   matched,
			FundType:   head.FundType,
		})
		remaining = remaining.Sub(matched)
		head.Remaining = head.Remaining.Sub(matched)
		if head.Remaining.IsZero() {
			l.lots = l.lots[1:]
		}
	}
	return fragments, nil
}

// Transform applies a corporate-action rewrite to every open lot in place.
// The function must preserve each lot's total cost basis (split semantics);
// Transform itself does not check this.
func (l *LotLedger) Transform(fn func(Lot) Lot) {
	for i, lot := range l.lots {
		l.lots[i] = fn(lot)
	}
}

// ApplySplit rewrites all lots for a num-for-den forward split: quantity
// scales by num/den, unit cost by den/num, leaving each lot's total cost
// basis exact.
func (l *LotLedger) ApplySplit(num, den int64) {
	ratio := Q(num).Div(Q(den))
	l.Transform(func(lot Lot) Lot {
		lot.Remaining = lot.Remaining.Mul(ratio)
		lot.UnitCost = lot.UnitCost.Div(ratio)
		return lot
	})
}

// ReduceCost lowers the open lots' cost basis by the repayment amount,
// oldest-first. It returns the amount actually absorbed and the excess that
// could not be, which the caller reclassifies as dividend income.
func (l *LotLedger) ReduceCost(amount Money) (reduced, excess Money) {
	remaining := amount
	for i := range l.lots {
		if !remaining.IsPositive() {
			break
		}
		lot := &l.lots[i]
		cost := lot.Cost()
		take := cost.Min(remaining)
		if take.IsZero() {
			continue
		}
		// Spread the reduction over the lot's per-unit cost.
		lot.UnitCost = cost.Sub(take).Div(lot.Remaining)
		remaining = remaining.Sub(take)
	}
	return amount.Sub(remaining), remaining
}

// DrainAll consumes the whole position, returning the fragments. Used by
// mergers, which close every open lot at once.
func (l *LotLedger) DrainAll() []Consumption {
	fragments := make([]Consumption, 0, len(l.lots))
	for _, lot := range l.lots {
		fragments = append(fragments, Consumption{
			AcquiredOn: lot.AcquiredOn,
			UnitCost:   lot.UnitCost,
			Quantity:   lot.Remaining,
			FundType:   lot.FundType,
		})
	}
	l.lots = nil
	return fragments
}
