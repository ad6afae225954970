package audit

import (
	"context"
	"errors"
)

// Fanout appends every event to each underlying store. All stores are
// attempted even when one fails; errors are joined so the publisher can
// log a single warning.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, store := range f {
		if err := store.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
