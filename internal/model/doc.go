// Package model defines the shared value types of the PnL pipeline:
// raw events as they arrive from the upstream log, resolution records,
// and the validation cases consumed by the reconciliation harness.
//
// Everything here is a plain record with no behavior beyond label
// validation. Timestamps are int64 microseconds since epoch throughout.
package model
