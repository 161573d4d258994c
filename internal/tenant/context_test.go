package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClinicID(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrClinicIDNotFound)

	_, err = FromContext(WithClinicID(context.Background(), ""))
	assert.ErrorIs(t, err, ErrClinicIDNotFound)

	ctx := WithClinicID(context.Background(), "north")
	id, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "north", id)
	assert.Equal(t, "north", MustFromContext(ctx))
}

func TestMustFromContext_Panics(t *testing.T) {
	assert.Panics(t, func() { MustFromContext(context.Background()) })
}

func TestRunID(t *testing.T) {
	_, err := RunIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrRunIDNotFound)

	ctx := WithRunID(WithClinicID(context.Background(), "north"), "run-1")
	id, err := RunIDFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)
}
