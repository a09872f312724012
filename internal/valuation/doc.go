// Package valuation supplies the prices the ledger needs: settlement
// prices for resolved markets and mark prices for unresolved ones.
//
// Resolver and MarkSource are the two lookup contracts. Both support batch
// lookup so a wallet's positions are valued in one round trip. Implementations
// here: in-memory fixtures, postgres-backed stores, a REST price client with
// retries, an in-memory resolution registry refreshed periodically, a
// websocket last-trade feed, and a redis read-through cache.
//
// All implementations are safe for concurrent readers; the ledger and the
// reconciliation workers share them read-only.
package valuation
