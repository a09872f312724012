package model

// -----------------------------------------------------------------------------
// Event Types
// -----------------------------------------------------------------------------

// EventKind identifies the balance-changing operation a RawEvent records.
type EventKind string

const (
	KindTradeBuy   EventKind = "trade_buy"  // Trade fill, wallet acquired tokens
	KindTradeSell  EventKind = "trade_sell" // Trade fill, wallet disposed of tokens
	KindSplit      EventKind = "split"      // Collateral split into a full outcome set
	KindMerge      EventKind = "merge"      // Full outcome set merged back to collateral
	KindRedemption EventKind = "redemption" // Winning tokens redeemed after resolution
)

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindTradeBuy, KindTradeSell, KindSplit, KindMerge, KindRedemption:
		return true
	}
	return false
}

// Lifecycle reports whether k is a token-lifecycle operation rather than a trade.
func (k EventKind) Lifecycle() bool {
	return k == KindSplit || k == KindMerge || k == KindRedemption
}

// RawEvent is one balance-changing occurrence from the upstream event log.
// Immutable once produced; duplicate rows share a SourceID and are expected
// to carry identical payloads.
type RawEvent struct {
	SourceID    string    // Dedupe key (upstream event id)
	Wallet      string    // Wallet address (lowercase hex)
	RawMarketID string    // Market/condition id as received, NOT canonical
	Outcome     int       // Outcome index within the market
	TokenAmount float64   // Signed token delta
	CashAmount  float64   // Signed collateral delta
	Timestamp   int64     // Event time (µs since epoch)
	Kind        EventKind // Operation recorded
}

// -----------------------------------------------------------------------------
// Resolution Types
// -----------------------------------------------------------------------------

// ResolutionRecord is the settlement price for one market outcome.
// Transitions absent -> present exactly once; the price never changes after.
type ResolutionRecord struct {
	MarketID   string  // Canonical market id (64 lowercase hex chars)
	Outcome    int     // Outcome index
	Settlement float64 // Payout per token in [0, 1]
	ResolvedAt int64   // Resolution time (µs since epoch)
}

// -----------------------------------------------------------------------------
// Validation Types
// -----------------------------------------------------------------------------

// Cohort classifies a wallet for tolerance-rule selection.
type Cohort string

const (
	// CohortTradeOnly marks wallets whose history is pure trade fills.
	CohortTradeOnly Cohort = "trade_only"
	// CohortLifecycle marks wallets carrying split/merge/redemption events.
	CohortLifecycle Cohort = "lifecycle"
)

// Valid reports whether c is a known cohort label.
func (c Cohort) Valid() bool {
	return c == CohortTradeOnly || c == CohortLifecycle
}

// OracleConvention describes which PnL semantics a ground-truth number uses.
// The oracle is not consistent across wallets about whether resolved but
// unredeemed value counts as realized, so "unknown" is a legitimate label.
type OracleConvention string

const (
	ConventionRealized OracleConvention = "realized"
	ConventionTotal    OracleConvention = "realized_plus_unrealized"
	ConventionUnknown  OracleConvention = ""
)

// ValidationCase is one ground-truth sample for the reconciliation harness.
type ValidationCase struct {
	Wallet     string           // Wallet address
	TruthPnl   float64          // Externally observed total PnL
	Cohort     Cohort           // Tolerance-rule bucket
	Convention OracleConvention // Oracle PnL semantics, if known
}
