package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDensitySpeedFactor_FreeFlowPlateau(t *testing.T) {
	m := NewCongestionModel()
	// threshold = 2.7/(2*1.35) = 1 person/m²; area = 20 m² → up to 20 agents.
	for count := 0; count <= 20; count++ {
		f, err := m.DensitySpeedFactor(count, 10, 2, 2.7)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f, "count=%d should stay in free flow", count)
	}
}

func TestDensitySpeedFactor_DecaysBeyondThreshold(t *testing.T) {
	m := NewCongestionModel()
	prev := 1.0
	for count := 21; count <= 200; count += 10 {
		f, err := m.DensitySpeedFactor(count, 10, 2, 2.7)
		require.NoError(t, err)
		assert.Less(t, f, 1.0, "count=%d must be slowed", count)
		assert.GreaterOrEqual(t, f, 0.1, "factor is floored at 0.1")
		assert.LessOrEqual(t, f, prev, "factor must be non-increasing in occupancy")
		prev = f
	}
}

func TestDensitySpeedFactor_HitsFloor(t *testing.T) {
	m := NewCongestionModel()
	f, err := m.DensitySpeedFactor(10000, 10, 2, 2.7)
	require.NoError(t, err)
	assert.Equal(t, 0.1, f)
}

func TestDensitySpeedFactor_BadGeometry(t *testing.T) {
	m := NewCongestionModel()
	_, err := m.DensitySpeedFactor(1, 0, 2, 2.7)
	assert.Error(t, err)
	_, err = m.DensitySpeedFactor(1, 10, -1, 2.7)
	assert.Error(t, err)
	_, err = m.DensitySpeedFactor(1, 10, 2, 0)
	assert.Error(t, err)
}

func TestCanEnterEdge_GatesAtThreshold(t *testing.T) {
	m := NewCongestionModel()
	// Same threshold as the speed factor: 20 agents fit, the 21st does not.
	ok, err := m.CanEnterEdge(20, 10, 2, 2.7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.CanEnterEdge(21, 10, 2, 2.7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanEnterEdge_BadGeometry(t *testing.T) {
	m := NewCongestionModel()
	_, err := m.CanEnterEdge(1, 0, 0, 2.7)
	assert.Error(t, err)
}
