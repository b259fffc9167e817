package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"kapsteuer"
)

// runCmd holds the flags for the 'run' subcommand.
type runCmd struct {
	eventsFile   string
	assetsFile   string
	policyFile   string
	fundsFile    string
	reportedFile string
	year         int
	workers      int
	logLevel     string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "process an event stream into tax outcomes" }
func (*runCmd) Usage() string {
	return `ksteuer run -events <file.jsonl> -assets <file.json> [-policy <file.toml>] [-year <yyyy>] [-funds <file.json>] [-reported <file.json>] [-workers <n>]

  Processes the event stream and prints realized gains, income, withholding
  links, advance tax, offsetting totals and reconciliation as JSON.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.eventsFile, "events", "", "Events file (JSONL, one event per line)")
	f.StringVar(&c.assetsFile, "assets", "", "Asset directory file (JSON object keyed by asset id)")
	f.StringVar(&c.policyFile, "policy", "", "Policy file (TOML); defaults apply when omitted")
	f.StringVar(&c.fundsFile, "funds", "", "Fund year values file (JSON array), enables Vorabpauschale")
	f.StringVar(&c.reportedFile, "reported", "", "Reported quantities snapshot (JSON object) for reconciliation")
	f.IntVar(&c.year, "year", 0, "Tax year for the Vorabpauschale computation")
	f.IntVar(&c.workers, "workers", 1, "Number of asset batches processed in parallel")
	f.StringVar(&c.logLevel, "log", "warn", "Log level (debug, info, warn, error)")
}

func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.eventsFile == "" || c.assetsFile == "" {
		fmt.Fprintln(os.Stderr, "-events and -assets are required")
		return subcommands.ExitUsageError
	}

	events, err := loadEvents(c.eventsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading events: %v\n", err)
		return subcommands.ExitFailure
	}
	dir, err := loadAssets(c.assetsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading assets: %v\n", err)
		return subcommands.ExitFailure
	}
	policy, err := loadPolicy(c.policyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading policy: %v\n", err)
		return subcommands.ExitFailure
	}

	opts := []kapsteuer.RunOption{
		kapsteuer.WithPolicy(policy),
		kapsteuer.WithWorkers(c.workers),
		kapsteuer.WithLogger(kapsteuer.NewLogger(c.logLevel)),
	}
	if c.fundsFile != "" {
		values, err := loadFundValues(c.fundsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading fund values: %v\n", err)
			return subcommands.ExitFailure
		}
		opts = append(opts, kapsteuer.WithVorabpauschale(c.year, values))
	}
	if c.reportedFile != "" {
		data, err := os.ReadFile(c.reportedFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading reported quantities: %v\n", err)
			return subcommands.ExitFailure
		}
		var reported map[string]kapsteuer.Quantity
		if err := json.Unmarshal(data, &reported); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing reported quantities: %v\n", err)
			return subcommands.ExitFailure
		}
		opts = append(opts, kapsteuer.WithReportedQuantities(reported))
	}

	result, err := kapsteuer.Run(events, dir, opts...)
	if result != nil {
		if perr := printJSON(result); perr != nil {
			fmt.Fprintf(os.Stderr, "Error writing result: %v\n", perr)
			return subcommands.ExitFailure
		}
	}
	if err != nil {
		// Partial results were printed; the failures are already part of them.
		fmt.Fprintf(os.Stderr, "Run finished with failures: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
