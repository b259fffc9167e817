// Package kapsteuer turns a chronological stream of brokerage-account events
// into tax-relevant outcomes under German capital-income rules: per-lot
// realized gains and losses, fund advance-tax (Vorabpauschale) figures, and
// category-bucketed totals feeding the statutory reporting lines.
//
// The core functionalities include:
//   - Lot Ledger: a per-asset FIFO ledger of acquisition lots, with exact
//     decimal cost-basis tracking across corporate actions (splits, cash and
//     stock mergers, stock dividends) and capital repayments.
//   - Event Processing: one handler per financial event variant, dispatched
//     exhaustively over a closed tagged union, emitting realization and
//     income records.
//   - Withholding-Tax Linking: best-effort association of withholding
//     charges with the income events that generated them, with a
//     configurable confidence score.
//   - Vorabpauschale: the imputed minimum annual fund return, computed per
//     fund and year with partial exemption (Teilfreistellung) applied.
//   - Loss Offsetting: routing of every realization and income record into
//     law-defined pots and fixed-order netting with cross-pot restrictions.
//
// All monetary arithmetic is exact decimal; amounts are quantized to cents
// exactly once, at the reporting boundary. Statement parsing, asset
// reference-data resolution and report rendering are external collaborators
// specified only at their interfaces.
//
// This package serves as the foundational logic for the `ksteuer`
// command-line tool.
package kapsteuer
