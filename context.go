package kapsteuer

import (
	"fmt"
	"sync"
)

// UnresolvedMergerError reports a stock merger whose replacement asset the
// directory cannot resolve. It fails the source asset's stream.
type UnresolvedMergerError struct {
	Asset    string
	NewAsset string
	EventID  string
}

func (e *UnresolvedMergerError) Error() string {
	return fmt.Sprintf("stock merger %s: replacement asset %q for %q is not resolvable", e.EventID, e.NewAsset, e.Asset)
}

// runContext is the per-run shared state threaded through the processors.
// The ledger map is guarded by a mutex for creation; each ledger itself is
// only ever touched by the one goroutine that owns its merger group.
type runContext struct {
	dir      Directory
	policy   Policy
	rounding RoundingPolicy

	mu      sync.Mutex
	ledgers map[string]*LotLedger
}

func newRunContext(dir Directory, policy Policy) *runContext {
	return &runContext{
		dir:      dir,
		policy:   policy,
		rounding: DefaultRounding,
		ledgers:  make(map[string]*LotLedger),
	}
}

// ledgerFor returns the asset's lot ledger, creating it on first use.
func (c *runContext) ledgerFor(asset string) *LotLedger {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.ledgers[asset]
	if !ok {
		l = NewLotLedger(asset)
		c.ledgers[asset] = l
	}
	return l
}
