// Package validators runs ordered precondition checks before a state change.
package validators

import "context"

// Step inspects (and may enrich) the value being validated.
type Step[T any] func(ctx context.Context, in T) (T, error)

type Pipeline[T any] struct {
	steps []Step[T]
}

func New[T any](steps ...Step[T]) *Pipeline[T] {
	return &Pipeline[T]{steps: steps}
}

// Then returns a new pipeline with step appended.
func (p *Pipeline[T]) Then(step Step[T]) *Pipeline[T] {
	steps := make([]Step[T], 0, len(p.steps)+1)
	steps = append(steps, p.steps...)
	return &Pipeline[T]{steps: append(steps, step)}
}

// Run executes the steps in order and stops at the first error.
func (p *Pipeline[T]) Run(ctx context.Context, in T) (T, error) {
	var err error
	for _, step := range p.steps {
		if err = ctx.Err(); err != nil {
			return in, err
		}
		if in, err = step(ctx, in); err != nil {
			return in, err
		}
	}
	return in, nil
}
