package offsets

import (
	"context"
	"errors"
	"fmt"
)

// Strategy is one way of producing a value. Strategies for the same value
// are tried in order by FirstOf.
type Strategy struct {
	Name string
	Try  func(ctx context.Context) (uint64, error)
}

// FirstOf returns the value of the first strategy that succeeds and its
// name. When all fail the individual errors are joined.
func FirstOf(ctx context.Context, strategies ...Strategy) (uint64, string, error) {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return 0, "", err
		}
		v, err := s.Try(ctx)
		if err == nil {
			return v, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	if len(errs) == 0 {
		return 0, "", errors.New("no strategies")
	}
	return 0, "", errors.Join(errs...)
}

// Constant always yields v.
func Constant(name string, v uint64) Strategy {
	return Strategy{Name: name, Try: func(context.Context) (uint64, error) {
		return v, nil
	}}
}
