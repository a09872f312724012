package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkorzen/poly-pnl/internal/model"
)

// DataIntegrityError reports duplicate rows under one dedupe key whose
// payloads disagree. This signals an upstream ingestion defect; the two
// conflicting rows are carried so the report can name exact values.
type DataIntegrityError struct {
	SourceID string         // The shared dedupe key
	Fields   []string       // Names of the conflicting fields
	First    model.RawEvent // Row retained so far
	Conflict model.RawEvent // Row that disagreed
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("conflicting duplicates for event %s: fields %s differ (first %+v, conflict %+v)",
		e.SourceID, strings.Join(e.Fields, ","), e.First, e.Conflict)
}

// Deduplicate collapses duplicate rows sharing a source id into exactly one
// event each, regardless of upstream duplication factor. The result is
// ordered by (timestamp, source id) for deterministic downstream replay.
//
// Pure function of its input; the input slice is not modified.
func Deduplicate(events []model.RawEvent) ([]model.RawEvent, error) {
	seen := make(map[string]model.RawEvent, len(events))
	for _, ev := range events {
		prev, dup := seen[ev.SourceID]
		if !dup {
			seen[ev.SourceID] = ev
			continue
		}
		if fields := payloadDiff(prev, ev); len(fields) > 0 {
			return nil, &DataIntegrityError{
				SourceID: ev.SourceID,
				Fields:   fields,
				First:    prev,
				Conflict: ev,
			}
		}
	}

	out := make([]model.RawEvent, 0, len(seen))
	for _, ev := range seen {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

// payloadDiff returns the names of fields that differ between two rows
// sharing a dedupe key. Duplicates are expected byte-identical, so the
// comparison is exact.
func payloadDiff(a, b model.RawEvent) []string {
	var fields []string
	if a.Wallet != b.Wallet {
		fields = append(fields, "wallet")
	}
	if a.RawMarketID != b.RawMarketID {
		fields = append(fields, "market_id")
	}
	if a.Outcome != b.Outcome {
		fields = append(fields, "outcome")
	}
	if a.TokenAmount != b.TokenAmount {
		fields = append(fields, "token_amount")
	}
	if a.CashAmount != b.CashAmount {
		fields = append(fields, "cash_amount")
	}
	if a.Timestamp != b.Timestamp {
		fields = append(fields, "timestamp")
	}
	if a.Kind != b.Kind {
		fields = append(fields, "kind")
	}
	return fields
}
