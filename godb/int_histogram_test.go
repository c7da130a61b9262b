package godb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntHistogramScenario is spec.md §8 scenario 7: IntHistogram(buckets=10,
// min=1, max=100), insert each integer 1..100 once.
func TestIntHistogramScenario(t *testing.T) {
	h, err := NewIntHistogram(10, 1, 100)
	require.NoError(t, err)
	for v := int64(1); v <= 100; v++ {
		h.AddValue(v)
	}

	assert.InDelta(t, 0.50, h.EstimateSelectivity(GreaterThan, 50), 0.01)
	assert.InDelta(t, 0.01, h.EstimateSelectivity(Equals, 50), 0.001)
	assert.Equal(t, float64(0), h.EstimateSelectivity(GreaterThan, 200))
	assert.Equal(t, float64(0), h.EstimateSelectivity(LessThan, 0))
}

func TestIntHistogramOutOfRangeBoundaries(t *testing.T) {
	h, err := NewIntHistogram(10, 1, 100)
	require.NoError(t, err)
	for v := int64(1); v <= 100; v++ {
		h.AddValue(v)
	}

	// v below min: everything is greater, nothing is less.
	assert.Equal(t, float64(1), h.EstimateSelectivity(GreaterThan, -5))
	assert.Equal(t, float64(1), h.EstimateSelectivity(GreaterThanOrEqual, -5))
	assert.Equal(t, float64(1), h.EstimateSelectivity(NotEquals, -5))
	assert.Equal(t, float64(0), h.EstimateSelectivity(LessThan, -5))
	assert.Equal(t, float64(0), h.EstimateSelectivity(Equals, -5))

	// v above max: symmetric.
	assert.Equal(t, float64(0), h.EstimateSelectivity(GreaterThan, 500))
	assert.Equal(t, float64(1), h.EstimateSelectivity(LessThan, 500))
	assert.Equal(t, float64(1), h.EstimateSelectivity(LessThanOrEqual, 500))
	assert.Equal(t, float64(1), h.EstimateSelectivity(NotEquals, 500))
}

func TestIntHistogramEmptyIsZero(t *testing.T) {
	h, err := NewIntHistogram(10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, float64(0), h.EstimateSelectivity(Equals, 50))
	assert.Equal(t, float64(0), h.EstimateSelectivity(GreaterThan, 50))
}

func TestIntHistogramRejectsBadRange(t *testing.T) {
	_, err := NewIntHistogram(0, 1, 100)
	assert.Error(t, err)

	_, err = NewIntHistogram(10, 100, 1)
	assert.Error(t, err)
}
