// Pure congestion dynamics: maps edge occupancy and geometry to a speed
// multiplier and an admission decision. No state; the tick loop supplies the
// occupancy counts it derived from its start-of-tick snapshot.

package sim

import (
	"fmt"
	"math"
)

// CongestionModel holds the constants of the density→speed law.
//
// The free-flow density threshold of an edge is derived from its design
// capacity: solving flow = density · speed · width at capacity gives
//
//	threshold = capacity_pps / (width · FreeFlowSpeed)   [persons/m²]
//
// Below that density agents walk at full speed; beyond it the speed factor
// decays as ratio^-DecayExponent, floored at MinFactor.
type CongestionModel struct {
	FreeFlowSpeed float64 // nominal unimpeded walking speed, m/s
	MinFactor     float64 // lower bound of the speed multiplier
	DecayExponent float64 // decay power applied beyond the threshold
}

// NewCongestionModel returns the model with standard constants
// (1.35 m/s free-flow walking speed, factor bounded to [0.1, 1.0],
// ratio^-1.5 decay).
func NewCongestionModel() CongestionModel {
	return CongestionModel{
		FreeFlowSpeed: 1.35,
		MinFactor:     0.1,
		DecayExponent: 1.5,
	}
}

// thresholdDensity returns the capacity-implied free-flow density threshold
// in persons/m². Errors on a non-positive denominator.
func (m CongestionModel) thresholdDensity(width, capacityPPS float64) (float64, error) {
	denom := width * m.FreeFlowSpeed
	if denom <= 0 {
		return 0, fmt.Errorf("congestion threshold: non-positive denominator (width=%v, free-flow speed=%v)", width, m.FreeFlowSpeed)
	}
	if capacityPPS <= 0 {
		return 0, fmt.Errorf("congestion threshold: capacity_pps must be > 0, got %v", capacityPPS)
	}
	return capacityPPS / denom, nil
}

// DensitySpeedFactor maps the occupancy of an edge to a speed multiplier.
// Returns 1.0 while density stays at or below the capacity-implied
// threshold; beyond it, max(MinFactor, ratio^-DecayExponent) where
// ratio = density/threshold. Monotonically non-increasing in count.
func (m CongestionModel) DensitySpeedFactor(count int, length, width, capacityPPS float64) (float64, error) {
	area := length * width
	if area <= 0 {
		return 0, fmt.Errorf("density speed factor: non-positive edge area (length=%v, width=%v)", length, width)
	}
	threshold, err := m.thresholdDensity(width, capacityPPS)
	if err != nil {
		return 0, err
	}
	density := float64(count) / area
	ratio := density / threshold
	if ratio <= 1 {
		return 1.0, nil
	}
	return math.Max(m.MinFactor, math.Pow(ratio, -m.DecayExponent)), nil
}

// CanEnterEdge gates admission: the prospective occupancy (start-of-tick
// snapshot + entrants admitted this tick + the candidate itself) must not
// push density past the same free-flow threshold the speed factor uses.
// Over-threshold densities still arise from mid-tick edge transitions, which
// are deliberately not re-gated until the following tick.
func (m CongestionModel) CanEnterEdge(prospectiveOccupancy int, length, width, capacityPPS float64) (bool, error) {
	area := length * width
	if area <= 0 {
		return false, fmt.Errorf("admission gate: non-positive edge area (length=%v, width=%v)", length, width)
	}
	threshold, err := m.thresholdDensity(width, capacityPPS)
	if err != nil {
		return false, err
	}
	return float64(prospectiveOccupancy)/area <= threshold, nil
}
