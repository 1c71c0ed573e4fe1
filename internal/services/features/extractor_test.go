package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLogReturns(t *testing.T) {
	r := ComputeLogReturns([]float64{100, 110, 0, 50})
	assert.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
	assert.Nil(t, ComputeLogReturns([]float64{1}))
}

func TestRealizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, RealizedVolatility([]float64{0.1}, 5, 252))

	// constant returns have zero variance
	assert.InDelta(t, 0.0, RealizedVolatility([]float64{0.01, 0.01, 0.01}, 3, 252), 1e-12)
	// large shared offset must not cancel into a spurious variance
	assert.InDelta(t, 0.0, RealizedVolatility([]float64{0.1 + 1e-9, 0.1 + 1e-9, 0.1 + 1e-9, 0.1 + 1e-9}, 4, 252), 1e-12)

	// sample variance of {0.01, -0.01} is 0.0002
	got := RealizedVolatility([]float64{0.5, 0.01, -0.01}, 2, 1)
	assert.InDelta(t, math.Sqrt(0.0002), got, 1e-12)
}

func TestMovingAverage(t *testing.T) {
	assert.InDeltaSlice(t, []float64{2, 3, 4}, MovingAverage([]float64{1, 2, 3, 4, 5}, 3), 1e-12)
	assert.Nil(t, MovingAverage([]float64{1, 2}, 3))
}
