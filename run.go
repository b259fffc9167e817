package kapsteuer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"kapsteuer/date"
)

// RunResult carries everything one pipeline run produced. Partial results
// are populated even when some asset streams failed; Failures lists those.
type RunResult struct {
	Gains          []RealizedGainLoss    `json:"gains"`
	Income         []IncomeRecord        `json:"income"`
	Links          []WithholdingLink     `json:"withholdingLinks"`
	Vorab          []VorabpauschaleData  `json:"vorabpauschale,omitempty"`
	Offsetting     LossOffsettingResult  `json:"offsetting"`
	Positions      map[string]Quantity   `json:"positions"`
	Reconciliation []ReconciliationEntry `json:"reconciliation,omitempty"`
	Failures       []AssetFailure        `json:"failures,omitempty"`
}

type runOptions struct {
	policy     Policy
	workers    int
	logger     *Logger
	vorabYear  int
	fundValues []FundYearValue
	reported   map[string]Quantity
}

// RunOption customizes a pipeline run.
type RunOption func(*runOptions)

// WithPolicy overrides the default policy.
func WithPolicy(p Policy) RunOption { return func(o *runOptions) { o.policy = p } }

// WithWorkers processes asset batches on n goroutines. The result is
// identical regardless of n.
func WithWorkers(n int) RunOption { return func(o *runOptions) { o.workers = n } }

// WithLogger attaches a logger for per-asset failures and reconciliation
// warnings.
func WithLogger(l *Logger) RunOption { return func(o *runOptions) { o.logger = l } }

// WithVorabpauschale enables the advance-tax computation for the given year
// from the supplied fund year values.
func WithVorabpauschale(year int, values []FundYearValue) RunOption {
	return func(o *runOptions) { o.vorabYear = year; o.fundValues = values }
}

// WithReportedQuantities supplies the external end-of-year position snapshot
// for reconciliation.
func WithReportedQuantities(reported map[string]Quantity) RunOption {
	return func(o *runOptions) { o.reported = reported }
}

// sortedEvent pairs an event with its input arrival index for deterministic
// same-day tie-breaking.
type sortedEvent struct {
	Event
	arrival int
}

// sortEvents orders events chronologically; same-day ties go corporate
// actions first, then trades, then income and tax events, then arrival
// order. The order is identical regardless of worker count.
func sortEvents(events []Event) []sortedEvent {
	out := make([]sortedEvent, len(events))
	for i, ev := range events {
		out[i] = sortedEvent{Event: ev, arrival: i}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.When() == b.When() {
			return eventRank(a.Kind()) < eventRank(b.Kind())
		}
		return a.When().Before(b.When())
	})
	return out
}

// assetBatch is one merger group's chronologically ordered event slice. Most
// groups hold a single asset; a stock merger pulls its source and replacement
// assets into one group so the replacement lot is visible to later events
// without cross-goroutine coordination.
type assetBatch struct {
	key    string
	events []sortedEvent
}

type batchResult struct {
	gains   []RealizedGainLoss
	income  []IncomeRecord
	failure *AssetFailure
}

// mergerGroups partitions asset ids so that every stock merger's source and
// replacement asset land in the same partition. Plain union-find; the group
// key is the lexicographically smallest member.
type mergerGroups struct {
	parent map[string]string
}

func newMergerGroups() *mergerGroups {
	return &mergerGroups{parent: make(map[string]string)}
}

func (g *mergerGroups) find(asset string) string {
	p, ok := g.parent[asset]
	if !ok || p == asset {
		g.parent[asset] = asset
		return asset
	}
	root := g.find(p)
	g.parent[asset] = root
	return root
}

func (g *mergerGroups) union(a, b string) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	g.parent[rb] = ra
}

// Run executes the whole pipeline: validate, sort, process per-group event
// batches, link withholding tax, compute the Vorabpauschale, offset losses
// and reconcile positions.
//
// Processing is CPU-bound and runs to completion; there is no cancellation.
// Data-integrity errors fail the affected asset's stream only, the run
// carries on with the remaining assets and reports the failures. An
// unresolvable fund in the year values likewise fails only that fund's
// advance-tax record. The returned error is non-nil iff at least one asset
// stream failed; the result is populated either way.
func Run(events []Event, dir Directory, opts ...RunOption) (*RunResult, error) {
	o := runOptions{policy: DefaultPolicy(), workers: 1, logger: NewSilentLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}

	validated := make([]Event, 0, len(events))
	for i, ev := range events {
		v, err := ev.Validate()
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Kind(), err)
		}
		validated = append(validated, v)
	}

	ordered := sortEvents(validated)

	// Partition assets into merger groups so a replacement asset's events can
	// see the lot its merger pushed, then slice the sorted stream per group.
	groups := newMergerGroups()
	for _, ev := range ordered {
		groups.find(ev.AssetID())
		if m, ok := ev.Event.(StockMerger); ok {
			groups.union(m.AssetID(), m.NewAsset)
		}
	}
	byGroup := make(map[string][]sortedEvent)
	for _, ev := range ordered {
		key := groups.find(ev.AssetID())
		byGroup[key] = append(byGroup[key], ev)
	}
	keys := make([]string, 0, len(byGroup))
	for key := range byGroup {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ctx := newRunContext(dir, o.policy)
	results := make(map[string]*batchResult, len(keys))
	for _, key := range keys {
		results[key] = &batchResult{}
	}

	// Groups are independent; fan them out on the configured number of
	// workers. Each group's events run strictly in sorted order on one
	// goroutine, so the result does not depend on the worker count.
	batches := make(chan assetBatch)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				processBatch(b, ctx, results[b.key])
			}
		}()
	}
	for _, key := range keys {
		batches <- assetBatch{key: key, events: byGroup[key]}
	}
	close(batches)
	wg.Wait()

	res := &RunResult{Positions: make(map[string]Quantity)}
	for _, key := range keys {
		r := results[key]
		if r.failure != nil {
			o.logger.Error().Str("asset", r.failure.Asset).Str("event", r.failure.EventID).Msg(r.failure.Reason)
			res.Failures = append(res.Failures, *r.failure)
			// The whole group's output is discarded, so every merger
			// partner gets its own failure entry naming the culprit.
			for _, asset := range groupAssets(byGroup[key]) {
				if asset == r.failure.Asset {
					continue
				}
				res.Failures = append(res.Failures, AssetFailure{
					Asset:   asset,
					EventID: r.failure.EventID,
					Err:     r.failure.Err,
					Reason:  fmt.Sprintf("stream discarded with merger partner %s: %s", r.failure.Asset, r.failure.Reason),
				})
			}
			continue
		}
		res.Gains = append(res.Gains, r.gains...)
		res.Income = append(res.Income, r.income...)
	}

	rawEvents := make([]Event, len(ordered))
	for i, ev := range ordered {
		rawEvents[i] = ev.Event
	}
	res.Links = LinkWithholdings(rawEvents, res.Income, o.policy.Linker)

	if len(o.fundValues) > 0 {
		values := fillMonthsHeld(o.fundValues, o.vorabYear, ctx)
		vorab, failures := ComputeVorabpauschale(o.vorabYear, values, dir, o.policy.Vorab, ctx.rounding)
		for _, f := range failures {
			o.logger.Error().Str("asset", f.Asset).Msg(f.Reason)
		}
		res.Vorab = vorab
		res.Failures = append(res.Failures, failures...)
	}

	res.Offsetting = Offset(res.Gains, res.Income, res.Links, res.Vorab, o.policy.Netting, ctx.rounding)

	ctx.mu.Lock()
	for asset, ledger := range ctx.ledgers {
		res.Positions[asset] = ledger.TotalQuantity()
	}
	ctx.mu.Unlock()
	res.Reconciliation = reconcile(res.Positions, o.reported, o.logger)

	if len(res.Failures) > 0 {
		streams := make(map[string]bool, len(byGroup))
		for _, ev := range ordered {
			streams[ev.AssetID()] = true
		}
		for _, v := range o.fundValues {
			streams[v.Asset] = true
		}
		errs := make([]error, 0, len(res.Failures))
		for _, f := range res.Failures {
			errs = append(errs, f)
		}
		return res, fmt.Errorf("%d of %d asset streams failed: %w", len(res.Failures), len(streams), errors.Join(errs...))
	}
	return res, nil
}

// groupAssets lists a batch's distinct asset ids in event order.
func groupAssets(events []sortedEvent) []string {
	seen := make(map[string]bool, 2)
	var assets []string
	for _, ev := range events {
		if seen[ev.AssetID()] {
			continue
		}
		seen[ev.AssetID()] = true
		assets = append(assets, ev.AssetID())
	}
	return assets
}

// fillMonthsHeld derives the holding months for fund values that do not carry
// them from the oldest open lot of the fund's ledger. Entries with an explicit
// MonthsHeld, or whose asset left no ledger behind, are passed through
// unchanged.
func fillMonthsHeld(values []FundYearValue, year int, ctx *runContext) []FundYearValue {
	out := make([]FundYearValue, len(values))
	copy(out, values)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for i, v := range out {
		if v.MonthsHeld != 0 {
			continue
		}
		ledger, ok := ctx.ledgers[v.Asset]
		if !ok {
			continue
		}
		if acquired, ok := ledger.EarliestAcquisition(); ok {
			out[i].MonthsHeld = date.MonthsHeld(acquired, year)
		}
	}
	return out
}

// processBatch runs one group's events strictly in order. The first
// data-integrity error stops the whole group's chain; other groups are not
// affected.
func processBatch(b assetBatch, ctx *runContext, out *batchResult) {
	for _, ev := range b.events {
		gains, income, err := processEvent(ev.Event, ctx.ledgerFor(ev.AssetID()), ctx)
		if err != nil {
			out.failure = &AssetFailure{
				Asset:   ev.AssetID(),
				EventID: ev.EventID(),
				Err:     err,
				Reason:  err.Error(),
			}
			return
		}
		out.gains = append(out.gains, gains...)
		out.income = append(out.income, income...)
	}
}

// reconcile compares calculated end-of-year quantities against the reported
// snapshot. Mismatches are warnings, never errors, and never block output.
func reconcile(positions map[string]Quantity, reported map[string]Quantity, logger *Logger) []ReconciliationEntry {
	if reported == nil {
		return nil
	}
	seen := make(map[string]bool, len(positions)+len(reported))
	assets := make([]string, 0, len(positions)+len(reported))
	for asset := range positions {
		if !seen[asset] {
			seen[asset] = true
			assets = append(assets, asset)
		}
	}
	for asset := range reported {
		if !seen[asset] {
			seen[asset] = true
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)

	entries := make([]ReconciliationEntry, 0, len(assets))
	for _, asset := range assets {
		calc := positions[asset]
		rep := reported[asset]
		diff := calc.Sub(rep)
		entries = append(entries, ReconciliationEntry{
			Asset:      asset,
			Calculated: calc,
			Reported:   rep,
			Diff:       diff,
		})
		if !diff.IsZero() {
			logger.Warn().
				Str("asset", asset).
				Str("calculated", calc.String()).
				Str("reported", rep.String()).
				Msg("position mismatch")
		}
	}
	return entries
}
