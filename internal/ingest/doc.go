// Package ingest owns the raw event log: append-only persistence of
// upstream events and the deduplication stage that collapses duplicate
// rows into one canonical event per logical occurrence.
//
// Duplication is expected upstream (the same trade recorded once per
// counterparty role, repeated backfill passes). Duplicates under one
// source id must carry identical payloads; a payload conflict is a
// *DataIntegrityError, surfaced rather than silently resolved.
//
// Deduplicate is a pure function; EventStore and Writer wrap the
// postgres-backed event log around it.
package ingest
