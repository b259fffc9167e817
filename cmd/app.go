// Package cmd implements the CLI application driving the tax engine.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"kapsteuer"
)

// Register the subcommands.
// A main package calls Register() to allow subcommands, and Execute() on the
// user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&runCmd{}, "engine")
	c.Register(&vorabCmd{}, "engine")
}

// loadEvents reads a JSONL events file.
func loadEvents(path string) ([]kapsteuer.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening events file: %w", err)
	}
	defer f.Close()
	return kapsteuer.DecodeEvents(f)
}

// loadAssets reads the asset directory file: a JSON object mapping asset ids
// to their reference data.
func loadAssets(path string) (kapsteuer.StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening assets file: %w", err)
	}
	var dir kapsteuer.StaticDirectory
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("parsing assets file %s: %w", path, err)
	}
	return dir, nil
}

// loadFundValues reads the fund year values file: a JSON array.
func loadFundValues(path string) ([]kapsteuer.FundYearValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening fund values file: %w", err)
	}
	var values []kapsteuer.FundYearValue
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing fund values file %s: %w", path, err)
	}
	return values, nil
}

// loadPolicy reads the policy file, or returns the defaults when path is empty.
func loadPolicy(path string) (kapsteuer.Policy, error) {
	if path == "" {
		return kapsteuer.DefaultPolicy(), nil
	}
	return kapsteuer.LoadPolicy(path)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
