// Package database provides the PostgreSQL connection pool holding the
// raw event log, resolution records, mark trades, and reconciliation runs.
package database
