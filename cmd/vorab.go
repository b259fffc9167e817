package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"kapsteuer"
)

// vorabCmd holds the flags for the 'vorab' subcommand.
type vorabCmd struct {
	assetsFile string
	fundsFile  string
	policyFile string
	year       int
}

func (*vorabCmd) Name() string     { return "vorab" }
func (*vorabCmd) Synopsis() string { return "compute the Vorabpauschale table only" }
func (*vorabCmd) Usage() string {
	return `ksteuer vorab -assets <file.json> -funds <file.json> -year <yyyy> [-policy <file.toml>]

  Computes the advance lump-sum tax per fund for one tax year.
`
}

func (c *vorabCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.assetsFile, "assets", "", "Asset directory file (JSON object keyed by asset id)")
	f.StringVar(&c.fundsFile, "funds", "", "Fund year values file (JSON array)")
	f.StringVar(&c.policyFile, "policy", "", "Policy file (TOML); defaults apply when omitted")
	f.IntVar(&c.year, "year", 0, "Tax year")
}

func (c *vorabCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.assetsFile == "" || c.fundsFile == "" || c.year == 0 {
		fmt.Fprintln(os.Stderr, "-assets, -funds and -year are required")
		return subcommands.ExitUsageError
	}

	dir, err := loadAssets(c.assetsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading assets: %v\n", err)
		return subcommands.ExitFailure
	}
	values, err := loadFundValues(c.fundsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fund values: %v\n", err)
		return subcommands.ExitFailure
	}
	policy, err := loadPolicy(c.policyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading policy: %v\n", err)
		return subcommands.ExitFailure
	}

	table, failures := kapsteuer.ComputeVorabpauschale(c.year, values, dir, policy.Vorab, kapsteuer.DefaultRounding)
	if err := printJSON(table); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing result: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(failures) > 0 {
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "Error computing Vorabpauschale for %s: %v\n", f.Asset, f.Err)
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
