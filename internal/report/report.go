package report

import (
	"context"
	"errors"
	"fmt"

	"particles/internal/sim"
)

// Reporter consumes finished generation records.
type Reporter interface {
	Report(ctx context.Context, record sim.Record) error
}

type Func func(ctx context.Context, record sim.Record) error

func (f Func) Report(ctx context.Context, record sim.Record) error {
	return f(ctx, record)
}

// Multi fans a record out to every reporter. All reporters run; their
// errors are joined.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, record sim.Record) error {
	var errs []error
	for i, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("reporter %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
