package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRNG_Reproducible(t *testing.T) {
	a := NewRunRNG(NewSimulationKey(42))
	b := NewRunRNG(NewSimulationKey(42))
	for i := 0; i < 16; i++ {
		assert.Equal(t, b.Stream().Float64(), a.Stream().Float64())
	}
}

func TestRunRNG_KeysDiverge(t *testing.T) {
	a := NewRunRNG(NewSimulationKey(1))
	b := NewRunRNG(NewSimulationKey(2))
	same := true
	for i := 0; i < 8; i++ {
		if a.Stream().Float64() != b.Stream().Float64() {
			same = false
		}
	}
	assert.False(t, same)
	assert.Equal(t, SimulationKey(1), a.Key())
}
