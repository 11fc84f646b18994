package validators

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	trail []string
}

func record(name string) Step[order] {
	return func(ctx context.Context, in order) (order, error) {
		in.trail = append(in.trail, name)
		return in, nil
	}
}

func TestPipelineRunsStepsInOrder(t *testing.T) {
	p := New(record("a"), record("b")).Then(record("c"))

	out, err := p.Run(context.Background(), order{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out.trail)
}

func TestPipelineStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	failing := func(ctx context.Context, in order) (order, error) { return in, boom }

	out, err := New(record("a"), failing, record("never")).Run(context.Background(), order{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, out.trail)
}

func TestPipelineThenDoesNotMutateReceiver(t *testing.T) {
	base := New(record("a"))
	_ = base.Then(record("b"))

	out, err := base.Run(context.Background(), order{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.trail)
}

func TestPipelineHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(record("a")).Run(ctx, order{})
	assert.ErrorIs(t, err, context.Canceled)
}
