package valuation

import (
	"context"
	"errors"
)

// Tiered layers two mark sources: the primary answers when it can, the
// secondary fills in the rest. Used to put the live trade feed's MarkTable
// in front of the slower trade-history store.
type Tiered struct {
	primary   MarkSource
	secondary MarkSource
}

// NewTiered creates a layered mark source.
func NewTiered(primary, secondary MarkSource) *Tiered {
	return &Tiered{primary: primary, secondary: secondary}
}

// MarkPrice implements MarkSource.
func (t *Tiered) MarkPrice(ctx context.Context, key Key) (float64, error) {
	p, err := t.primary.MarkPrice(ctx, key)
	if err == nil {
		return p, nil
	}
	var missing *MissingValuationError
	if !errors.As(err, &missing) {
		return 0, err
	}
	return t.secondary.MarkPrice(ctx, key)
}

// MarkPrices implements MarkSource. Keys the primary cannot answer go to
// the secondary in one batch.
func (t *Tiered) MarkPrices(ctx context.Context, keys []Key) (map[Key]float64, error) {
	out, err := t.primary.MarkPrices(ctx, keys)
	if err != nil {
		return nil, err
	}

	var missing []Key
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	rest, err := t.secondary.MarkPrices(ctx, missing)
	if err != nil {
		return nil, err
	}
	for k, p := range rest {
		out[k] = p
	}
	return out, nil
}
