package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInt(t *testing.T) {
	t.Parallel()

	v, err := ToInt(42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = ToInt(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCheckAlloc(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckAlloc(10, 0))
	require.NoError(t, CheckAlloc(10, 10))
	assert.ErrorIs(t, CheckAlloc(11, 10), ErrOverflow)
	assert.ErrorIs(t, CheckAlloc(math.MaxUint64, 0), ErrOverflow)
}
