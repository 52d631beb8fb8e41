package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: StatusPending, Complexity: 1, Dependencies: []string{"b"}},
		{ID: "b", Status: StatusInProgress, Complexity: 4},
		{ID: "c", Status: StatusCompleted, Complexity: 6},
		{ID: "d", Status: StatusPending, Complexity: 8, Dependencies: []string{"c"}},
	}
	s := ComputeStats(tasks)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Blocked)
	assert.Equal(t, 19, s.TotalComplexity)
	assert.InDelta(t, 4.8, s.AverageComplexity, 0.001)
	assert.Equal(t, ComplexityDistribution{Simple: 1, Moderate: 1, Complex: 1, VeryComplex: 1}, s.Distribution)
	assert.Equal(t, 9, s.ComplexityByStatus[StatusPending])
	assert.Equal(t, 2, s.CountByStatus[StatusPending])
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.AverageComplexity)
}
