package kapsteuer

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Policy bundles the tunable parts of a run: linking heuristics, netting
// caps and the Vorabpauschale parameters. The statutory pieces (exemption
// rates, pot restrictions) are not policy and live in code.
type Policy struct {
	Linker  LinkerPolicy  `toml:"linker"`
	Netting NettingPolicy `toml:"netting"`
	Vorab   VorabPolicy   `toml:"vorabpauschale"`
}

// LinkerPolicy holds the withholding-tax linking heuristics. The scoring
// thresholds are configurable policy, not fixed law.
type LinkerPolicy struct {
	// DateWindowDays is the maximum distance between a withholding event and
	// an income candidate.
	DateWindowDays int `toml:"date_window_days"`
	// MinRate and MaxRate bound the plausible tax/income ratio.
	MinRate float64 `toml:"min_rate"`
	MaxRate float64 `toml:"max_rate"`
	// Scores per linking quality.
	ExplicitScore int `toml:"explicit_score"`
	ExactScore    int `toml:"exact_score"`
	WindowScore   int `toml:"window_score"`
	WeakScore     int `toml:"weak_score"`
}

// NettingPolicy holds the statutory caps applied during loss offsetting.
type NettingPolicy struct {
	// DerivativeLossCap limits how much derivative loss offsets derivative
	// gains in one year; the excess is reported separately. Zero disables
	// the cap.
	DerivativeLossCap float64 `toml:"derivative_loss_cap"`
}

// VorabPolicy holds the year-dependent Vorabpauschale parameters.
type VorabPolicy struct {
	// BasisZins is the statutory base rate published for the tax year.
	BasisZins float64 `toml:"basiszins"`
	// Damper is the statutory fraction of the base rate that applies (0.7).
	Damper float64 `toml:"damper"`
}

// DefaultPolicy returns the policy used when no file is given.
func DefaultPolicy() Policy {
	return Policy{
		Linker: LinkerPolicy{
			DateWindowDays: 2,
			MinRate:        0.05,
			MaxRate:        0.40,
			ExplicitScore:  100,
			ExactScore:     100,
			WindowScore:    80,
			WeakScore:      50,
		},
		Netting: NettingPolicy{
			DerivativeLossCap: 20000,
		},
		Vorab: VorabPolicy{
			BasisZins: 0.0255, // 2024 published rate
			Damper:    0.7,
		},
	}
}

// LoadPolicy reads a TOML policy file over the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading policy file: %w", err)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return p, nil
}
