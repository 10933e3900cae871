package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaU64(t *testing.T) {
	t.Run("normal_increase", func(t *testing.T) {
		assert.Equal(t, uint64(10), DeltaU64(110, 100))
	})
	t.Run("no_change", func(t *testing.T) {
		assert.Equal(t, uint64(0), DeltaU64(100, 100))
	})
	t.Run("reset_or_prev_unset", func(t *testing.T) {
		assert.Equal(t, uint64(0), DeltaU64(99, 100))
	})
	t.Run("large_values", func(t *testing.T) {
		const hi = ^uint64(0) - 5
		assert.Equal(t, uint64(5), DeltaU64(hi, hi-5))
	})
}

func TestSafeDiv(t *testing.T) {
	t.Run("regular", func(t *testing.T) {
		require.InDelta(t, 2.5, SafeDiv(5, 2), 1e-12)
		require.InDelta(t, -2.5, SafeDiv(5, -2), 1e-12)
	})
	t.Run("zero_denominator", func(t *testing.T) {
		assert.Equal(t, 0.0, SafeDiv(123, 0))
	})
	t.Run("tiny_denominator", func(t *testing.T) {
		assert.Equal(t, 0.0, SafeDiv(1, 1e-13))
	})
}

func TestClamp(t *testing.T) {
	t.Run("inside", func(t *testing.T) {
		assert.Equal(t, 150.0, Clamp(150, 0, 400))
	})
	t.Run("below", func(t *testing.T) {
		assert.Equal(t, 0.0, Clamp(-3, 0, 400))
	})
	t.Run("above", func(t *testing.T) {
		assert.Equal(t, 400.0, Clamp(9000, 0, 400))
		assert.Equal(t, 400.0, Clamp(math.Inf(1), 0, 400))
	})
	t.Run("NaN_becomes_lo", func(t *testing.T) {
		assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 400))
	})
}
