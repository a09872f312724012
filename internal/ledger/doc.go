// Package ledger is the cost-basis state machine at the core of the
// PnL pipeline.
//
// It consumes a wallet's deduplicated, timestamp-ordered event stream and
// maintains one weighted-average position per (wallet, market, outcome):
// buys move the average price, sells realize PnL against it, splits and
// merges decompose into even-priced legs, and redemptions close the
// position at the settlement price. Sells are always clamped to tracked
// inventory so externally-acquired tokens can never realize phantom profit.
//
// The engine is tagged with a Variant. The canonical variant is
// weighted_average; role_fifo and cash_flow reproduce historical engines
// so the reconciliation harness can run them side by side for regression
// comparison.
//
// Processing one wallet is strictly sequential; wallets share nothing,
// so callers parallelize across wallets freely.
package ledger
